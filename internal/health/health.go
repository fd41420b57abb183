package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status представляет статус компонента
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check представляет результат проверки компонента
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response представляет ответ health check
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker интерфейс для проверки здоровья компонента
type Checker interface {
	Check() Check
}

type registration struct {
	checker  Checker
	critical bool
}

// Handler обрабатывает health check запросы
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]registration
	version   string
	startTime time.Time
}

// NewHandler создаёт новый health handler
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]registration),
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterChecker регистрирует критичную зависимость: её отказ делает сервис
// unhealthy и не готовым принимать трафик.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.register(name, checker, true)
}

// RegisterOptionalChecker регистрирует некритичную зависимость, например кеш.
// Её отказ понижает статус до degraded, но readiness не блокирует.
func (h *Handler) RegisterOptionalChecker(name string, checker Checker) {
	h.register(name, checker, false)
}

func (h *Handler) register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = registration{checker: checker, critical: critical}
}

func (h *Handler) snapshot() map[string]registration {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checkers := make(map[string]registration, len(h.checkers))
	for name, reg := range h.checkers {
		checkers[name] = reg
	}
	return checkers
}

// ServeHTTP отдаёт полный отчёт по всем зарегистрированным проверкам
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]Check)
	overallStatus := StatusHealthy

	for name, reg := range h.snapshot() {
		check := reg.checker.Check()
		checks[name] = check

		status := check.Status
		if status == StatusUnhealthy && !reg.critical {
			status = StatusDegraded
		}
		overallStatus = worstStatus(overallStatus, status)
	}

	response := Response{
		Status:        overallStatus,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func worstStatus(current, next Status) Status {
	if current == StatusUnhealthy || next == StatusUnhealthy {
		return StatusUnhealthy
	}
	if current == StatusDegraded || next == StatusDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// LivenessHandler простой liveness probe (всегда возвращает 200)
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler проверяет готовность принимать трафик: смотрит только на
// критичные зависимости
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	for _, reg := range h.snapshot() {
		if !reg.critical {
			continue
		}
		if check := reg.checker.Check(); check.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// SimpleChecker простая проверка с функцией
type SimpleChecker struct {
	name    string
	checkFn func() error
}

// NewSimpleChecker создаёт простую проверку
func NewSimpleChecker(name string, checkFn func() error) *SimpleChecker {
	return &SimpleChecker{
		name:    name,
		checkFn: checkFn,
	}
}

// Check выполняет проверку
func (c *SimpleChecker) Check() Check {
	start := time.Now()
	err := c.checkFn()
	duration := time.Since(start)

	if err != nil {
		return Check{
			Name:       c.name,
			Status:     StatusUnhealthy,
			Message:    err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}

	return Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: duration.Milliseconds(),
	}
}
