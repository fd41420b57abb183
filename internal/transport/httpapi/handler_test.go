package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/inventory"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/users"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router    *gin.Engine
	inventory *inventory.MockClient
}

func newAPIFixture(products []domain.Product, directory []domain.User) *apiFixture {
	inventoryMock := inventory.NewMockClient(products...)
	engine := lifecycle.NewEngineWithoutMetrics(
		memory.NewOrderRepository(),
		memory.NewCartRepository(),
		memory.NewOutboxRepository(),
		memory.NewTimelineRepository(),
		inventoryMock,
		users.NewMockDirectory(directory...),
		nil,
	)

	handler := NewHandler(engine, memory.NewIdempotencyRepository(), nil)
	return &apiFixture{
		router:    NewRouter(handler),
		inventory: inventoryMock,
	}
}

type testEnvelope struct {
	Message      string          `json:"message"`
	ErrorMessage string          `json:"errorMessage"`
	Data         json.RawMessage `json:"data"`
}

func (fx *apiFixture) do(t *testing.T, method, path string, payload interface{}, headers map[string]string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	fx.router.ServeHTTP(recorder, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &env))
	return recorder, env
}

func apiRetailers() []domain.User {
	return []domain.User{{ID: "retailer-1", Name: "Acme Retail"}}
}

func apiProducts() []domain.Product {
	return []domain.Product{
		{ID: "product-a", Name: "Widget A", ManufacturerID: "manufacturer-1", Quantity: 10, PriceMinor: 1000},
		{ID: "product-b", Name: "Widget B", ManufacturerID: "manufacturer-1", Quantity: 10, PriceMinor: 2500},
	}
}

func validOrderPayload() createOrderRequest {
	return createOrderRequest{
		RetailerID:      "retailer-1",
		ManufacturerID:  "manufacturer-1",
		CreatedBy:       "retailer-1",
		PaymentCurrency: "USD",
		ShippingAddress: "Main st 1",
		OrderDetails: []createOrderDetailRequest{
			{ProductID: "product-a", Quantity: 5, ProductPrice: 1000},
			{ProductID: "product-b", Quantity: 2, ProductPrice: 2500},
		},
	}
}

func (fx *apiFixture) createOrder(t *testing.T) orderResponse {
	t.Helper()

	recorder, env := fx.do(t, http.MethodPost, "/api/orders", validOrderPayload(), nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var order orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	return order
}

func TestAPI_CreateOrder(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())

	order := fx.createOrder(t)
	require.NotEmpty(t, order.OrderID)
	require.Equal(t, int64(10000), order.TotalPrice)
	require.Equal(t, "New", order.OrderStatus)
	require.Equal(t, "cash", order.PaymentMode)
	require.Len(t, order.OrderDetails, 2)
}

func TestAPI_CreateOrder_Validation(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())

	payload := validOrderPayload()
	payload.OrderDetails = nil

	recorder, env := fx.do(t, http.MethodPost, "/api/orders", payload, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.NotEmpty(t, env.ErrorMessage)
}

func TestAPI_CreateOrder_UnknownRetailer(t *testing.T) {
	fx := newAPIFixture(apiProducts(), nil)

	recorder, _ := fx.do(t, http.MethodPost, "/api/orders", validOrderPayload(), nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAPI_GetOrder(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())
	created := fx.createOrder(t)

	recorder, env := fx.do(t, http.MethodGet, "/api/orders/"+created.OrderID, nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var order orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.Equal(t, created.OrderID, order.OrderID)

	recorder, _ = fx.do(t, http.MethodGet, "/api/orders/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAPI_UpdateOrder(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())
	created := fx.createOrder(t)

	recorder, env := fx.do(t, http.MethodPut, "/api/orders", updateOrderRequest{
		OrderID:     created.OrderID,
		OrderStatus: "Submitted",
		UpdatedBy:   "retailer-1",
	}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var order orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.Equal(t, "Submitted", order.OrderStatus)

	recorder, _ = fx.do(t, http.MethodPut, "/api/orders", updateOrderRequest{OrderID: created.OrderID}, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAPI_ReviewOrder(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())
	created := fx.createOrder(t)

	_, _ = fx.do(t, http.MethodPut, "/api/orders", updateOrderRequest{
		OrderID:     created.OrderID,
		OrderStatus: "Submitted",
		UpdatedBy:   "retailer-1",
	}, nil)

	review := reviewOrderRequest{ReviewedBy: "manufacturer-1"}
	for _, detail := range created.OrderDetails {
		review.Decisions = append(review.Decisions, reviewDecisionRequest{
			OrderDetailID: detail.OrderDetailID,
			IsAccepted:    true,
		})
	}

	recorder, env := fx.do(t, http.MethodPost, "/api/orders/"+created.OrderID+"/review", review, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var order orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.Equal(t, "Accepted", order.OrderStatus)
	require.Equal(t, int32(5), fx.inventory.Quantity("product-a"))
}

func TestAPI_ReviewOrder_InsufficientStock(t *testing.T) {
	products := apiProducts()
	products[0].Quantity = 1
	fx := newAPIFixture(products, apiRetailers())
	created := fx.createOrder(t)

	_, _ = fx.do(t, http.MethodPut, "/api/orders", updateOrderRequest{
		OrderID:     created.OrderID,
		OrderStatus: "Submitted",
		UpdatedBy:   "retailer-1",
	}, nil)

	review := reviewOrderRequest{ReviewedBy: "manufacturer-1"}
	for _, detail := range created.OrderDetails {
		review.Decisions = append(review.Decisions, reviewDecisionRequest{
			OrderDetailID: detail.OrderDetailID,
			IsAccepted:    true,
		})
	}

	recorder, env := fx.do(t, http.MethodPost, "/api/orders/"+created.OrderID+"/review", review, nil)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Contains(t, env.ErrorMessage, "insufficient stock")
}

func TestAPI_GetOrdersByManufacturer(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())
	fx.createOrder(t)

	recorder, env := fx.do(t, http.MethodGet, "/api/orders/manufacturer/manufacturer-1", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var orders []orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders, 1)
}

func TestAPI_SearchOrders(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())
	fx.createOrder(t)

	recorder, env := fx.do(t, http.MethodGet,
		"/api/orders/search?retailerName=acme&pageNumber=1&pageSize=5", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result searchOrdersResponse
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, 1, result.TotalCount)
	require.Equal(t, 1, result.TotalPages)
	require.Len(t, result.Orders, 1)
	require.Equal(t, "Acme Retail", result.Orders[0].RetailerName)

	recorder, env = fx.do(t, http.MethodGet, "/api/orders/search?orderStatus=Accepted", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Empty(t, result.Orders)
}

func TestAPI_CartLifecycle(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())

	recorder, env := fx.do(t, http.MethodPost, "/api/carts", addCartItemRequest{
		RetailerID:   "retailer-1",
		ProductID:    "product-a",
		Quantity:     3,
		ProductPrice: 1000,
		CreatedBy:    "retailer-1",
	}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var cart cartItemResponse
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	require.NotEmpty(t, cart.CartID)
	require.True(t, cart.IsActive)

	recorder, env = fx.do(t, http.MethodGet, "/api/carts?retailerId=retailer-1", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var carts []cartItemResponse
	require.NoError(t, json.Unmarshal(env.Data, &carts))
	require.Len(t, carts, 1)

	recorder, _ = fx.do(t, http.MethodDelete, "/api/carts/"+cart.CartID+"?updatedBy=retailer-1", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, env = fx.do(t, http.MethodGet, "/api/carts/"+cart.CartID, nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	require.False(t, cart.IsActive)

	recorder, _ = fx.do(t, http.MethodGet, "/api/carts/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAPI_CartValidation(t *testing.T) {
	fx := newAPIFixture(apiProducts(), apiRetailers())

	recorder, _ := fx.do(t, http.MethodPost, "/api/carts", addCartItemRequest{
		RetailerID: "retailer-1",
	}, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
