package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// withIdempotency оборачивает мутирующий handler поддержкой Idempotency-Key.
// Повтор запроса с тем же ключом и телом возвращает сохранённый ответ;
// тот же ключ с другим телом отклоняется. Без заголовка (или без хранилища
// ключей) запрос обрабатывается как обычно.
func (h *Handler) withIdempotency(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.idemRepo == nil {
			next(c)
			return
		}
		key := c.GetHeader(idempotencyKeyHeader)
		if key == "" {
			next(c)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			h.writeFailure(c, http.StatusBadRequest, "Invalid request body.", err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		requestHash := hashRequest(c.Request.Method, c.FullPath(), body)

		record, err := h.idemRepo.CreateProcessing(key, requestHash, time.Now().UTC().Add(idempotencyTTL))
		if err != nil {
			h.replayIdempotency(c, key, record, err)
			return
		}

		capture := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = capture

		next(c)

		status := capture.Status()
		stored := capture.body.Bytes()
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			if markErr := h.idemRepo.MarkDone(key, stored, status); markErr != nil {
				h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
			}
		} else {
			if markErr := h.idemRepo.MarkFailed(key, stored, status); markErr != nil {
				h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent failure response")
			}
		}
	}
}

func (h *Handler) replayIdempotency(c *gin.Context, key string, record domain.IdempotencyRecord, createErr error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		h.writeFailure(c, http.StatusConflict, "Idempotency key conflict.",
			domain.ErrIdempotencyHashMismatch)
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if len(record.ResponseBody) == 0 {
				h.writeFailure(c, http.StatusInternalServerError, "Idempotency cache is empty.", createErr)
				return
			}
			c.Data(record.HTTPStatus, "application/json; charset=utf-8", record.ResponseBody)
		default:
			h.writeFailure(c, http.StatusConflict, "Request is already processing.", createErr)
		}
	default:
		h.logger.WithError(createErr).WithField("idempotency_key", key).Error("idempotency store failed")
		h.writeFailure(c, http.StatusInternalServerError, "Failed to initialize idempotent request.", createErr)
	}
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{0})
	sum.Write([]byte(path))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

// captureWriter дублирует записанное тело ответа для idempotency-кеша.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
