package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

const defaultTimeout = 5 * time.Second

// productDTO — формат товара во внешнем товарном сервисе.
type productDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ManufacturerID string `json:"manufacturerId"`
	Quantity       int32  `json:"quantity"`
	PriceMinor     int64  `json:"priceMinor"`
}

type setQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

// Client — HTTP-клиент товарного сервиса.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Entry
}

// NewClient создаёт клиента товарного сервиса.
// Пустой timeout заменяется значением по умолчанию.
func NewClient(baseURL string, timeout time.Duration, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithField("component", "inventory_client"),
	}
}

// GetProduct возвращает снимок товара или ErrProductNotFound.
func (c *Client) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	endpoint := fmt.Sprintf("%s/api/products/%s", c.baseURL, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build product request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Product{}, domain.NewDependencyError("product service call failed", productID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.Product{}, domain.NewNotFoundError("product not found", productID, domain.ErrProductNotFound)
	default:
		return domain.Product{}, domain.NewDependencyError(
			fmt.Sprintf("product service returned status %d", resp.StatusCode), productID, nil)
	}

	var dto productDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return domain.Product{}, domain.NewDependencyError("decode product response", productID, err)
	}

	return toProduct(dto), nil
}

// GetProductsByIds запрашивает товары пачкой; отсутствующие идентификаторы
// просто не попадают в ответ.
func (c *Client) GetProductsByIds(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	endpoint := fmt.Sprintf("%s/api/products?ids=%s", c.baseURL, url.QueryEscape(strings.Join(productIDs, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build products request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewDependencyError("product service call failed", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDependencyError(
			fmt.Sprintf("product service returned status %d", resp.StatusCode), "", nil)
	}

	var dtos []productDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, domain.NewDependencyError("decode products response", "", err)
	}

	for _, dto := range dtos {
		result[dto.ID] = toProduct(dto)
	}
	return result, nil
}

// SetQuantity перезаписывает доступное количество товара.
func (c *Client) SetQuantity(ctx context.Context, productID string, quantity int32) error {
	endpoint := fmt.Sprintf("%s/api/products/%s/quantity", c.baseURL, url.PathEscape(productID))

	body, err := json.Marshal(setQuantityRequest{Quantity: quantity})
	if err != nil {
		return fmt.Errorf("encode quantity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build quantity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewDependencyError("product service call failed", productID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return domain.NewNotFoundError("product not found", productID, domain.ErrProductNotFound)
	default:
		c.logger.WithFields(log.Fields{
			"product_id": productID,
			"status":     resp.StatusCode,
		}).Warn("set quantity rejected by product service")
		return domain.NewDependencyError(
			fmt.Sprintf("product service returned status %d", resp.StatusCode), productID, nil)
	}
}

func toProduct(dto productDTO) domain.Product {
	return domain.Product{
		ID:             dto.ID,
		Name:           dto.Name,
		ManufacturerID: dto.ManufacturerID,
		Quantity:       dto.Quantity,
		PriceMinor:     dto.PriceMinor,
	}
}

var _ domain.InventoryClient = (*Client)(nil)
