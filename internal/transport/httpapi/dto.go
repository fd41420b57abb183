package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/lifecycle"
)

// envelope — форма ответа API: сообщение, текст ошибки и полезная нагрузка.
type envelope struct {
	Message      string      `json:"message"`
	ErrorMessage string      `json:"errorMessage"`
	Data         interface{} `json:"data,omitempty"`
}

type createOrderDetailRequest struct {
	ProductID      string `json:"productId"`
	ManufacturerID string `json:"manufacturerId"`
	Quantity       int32  `json:"quantity"`
	ProductPrice   int64  `json:"productPrice"`
	CartID         string `json:"cartId"`
}

type createOrderRequest struct {
	RetailerID       string                     `json:"retailerId"`
	ManufacturerID   string                     `json:"manufacturerId"`
	CreatedBy        string                     `json:"createdBy"`
	PaymentMode      string                     `json:"paymentMode"`
	PaymentCurrency  string                     `json:"paymentCurrency"`
	ShippingCost     int64                      `json:"shippingCost"`
	ShippingCurrency string                     `json:"shippingCurrency"`
	ShippingAddress  string                     `json:"shippingAddress"`
	OrderDetails     []createOrderDetailRequest `json:"orderDetails"`
}

func (r createOrderRequest) toEngine() lifecycle.CreateOrderRequest {
	req := lifecycle.CreateOrderRequest{
		RetailerID:        r.RetailerID,
		ManufacturerID:    r.ManufacturerID,
		CreatedBy:         r.CreatedBy,
		PaymentMode:       domain.PaymentMode(r.PaymentMode),
		PaymentCurrency:   r.PaymentCurrency,
		ShippingCostMinor: r.ShippingCost,
		ShippingCurrency:  r.ShippingCurrency,
		ShippingAddress:   r.ShippingAddress,
	}
	for _, detail := range r.OrderDetails {
		req.Lines = append(req.Lines, lifecycle.OrderLineRequest{
			ProductID:      detail.ProductID,
			ManufacturerID: detail.ManufacturerID,
			Qty:            detail.Quantity,
			PriceMinor:     detail.ProductPrice,
			CartID:         detail.CartID,
		})
	}
	return req
}

type updateOrderRequest struct {
	OrderID             string `json:"orderId"`
	OrderStatus         string `json:"orderStatus"`
	DeliveryPersonnelID string `json:"deliveryPersonnelId"`
	UpdatedBy           string `json:"updatedBy"`
}

type reviewDecisionRequest struct {
	OrderDetailID string `json:"orderDetailId"`
	IsAccepted    bool   `json:"isAccepted"`
}

type reviewOrderRequest struct {
	Decisions  []reviewDecisionRequest `json:"decisions"`
	ReviewedBy string                  `json:"reviewedBy"`
}

type addCartItemRequest struct {
	RetailerID     string `json:"retailerId"`
	ProductID      string `json:"productId"`
	ManufacturerID string `json:"manufacturerId"`
	Quantity       int32  `json:"quantity"`
	ProductPrice   int64  `json:"productPrice"`
	CreatedBy      string `json:"createdBy"`
}

type orderDetailResponse struct {
	OrderDetailID   string `json:"orderDetailId"`
	ProductID       string `json:"productId"`
	ManufacturerID  string `json:"manufacturerId"`
	Quantity        int32  `json:"quantity"`
	ProductPrice    int64  `json:"productPrice"`
	OrderItemStatus string `json:"orderItemStatus"`
	ProductName     string `json:"productName,omitempty"`
}

type orderResponse struct {
	OrderID             string                `json:"orderId"`
	RetailerID          string                `json:"retailerId"`
	ManufacturerID      string                `json:"manufacturerId"`
	DeliveryPersonnelID string                `json:"deliveryPersonnelId,omitempty"`
	OrderStatus         string                `json:"orderStatus"`
	TotalPrice          int64                 `json:"totalPrice"`
	PaymentMode         string                `json:"paymentMode"`
	PaymentCurrency     string                `json:"paymentCurrency"`
	ShippingCost        int64                 `json:"shippingCost"`
	ShippingCurrency    string                `json:"shippingCurrency,omitempty"`
	ShippingAddress     string                `json:"shippingAddress,omitempty"`
	RetailerName        string                `json:"retailerName,omitempty"`
	ManufacturerName    string                `json:"manufacturerName,omitempty"`
	CreatedOn           time.Time             `json:"createdOn"`
	CreatedBy           string                `json:"createdBy"`
	UpdatedOn           time.Time             `json:"updatedOn"`
	UpdatedBy           string                `json:"updatedBy"`
	OrderDetails        []orderDetailResponse `json:"orderDetails"`
}

type cartItemResponse struct {
	CartID         string    `json:"cartId"`
	RetailerID     string    `json:"retailerId"`
	ProductID      string    `json:"productId"`
	ManufacturerID string    `json:"manufacturerId,omitempty"`
	Quantity       int32     `json:"quantity"`
	ProductPrice   int64     `json:"productPrice"`
	Status         string    `json:"status"`
	IsActive       bool      `json:"isActive"`
	CreatedOn      time.Time `json:"createdOn"`
	CreatedBy      string    `json:"createdBy"`
}

type searchOrdersResponse struct {
	Orders     []orderResponse `json:"orders"`
	PageNumber int             `json:"pageNumber"`
	PageSize   int             `json:"pageSize"`
	TotalCount int             `json:"totalCount"`
	TotalPages int             `json:"totalPages"`
}

func toOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:             order.ID,
		RetailerID:          order.RetailerID,
		ManufacturerID:      order.ManufacturerID,
		DeliveryPersonnelID: order.DeliveryPersonnelID,
		OrderStatus:         order.Status.DisplayName(),
		TotalPrice:          order.TotalPriceMinor,
		PaymentMode:         string(order.PaymentMode),
		PaymentCurrency:     order.PaymentCurrency,
		ShippingCost:        order.ShippingCostMinor,
		ShippingCurrency:    order.ShippingCurrency,
		ShippingAddress:     order.ShippingAddress,
		CreatedOn:           order.CreatedOn,
		CreatedBy:           order.CreatedBy,
		UpdatedOn:           order.UpdatedOn,
		UpdatedBy:           order.UpdatedBy,
	}
	for _, detail := range order.Details {
		resp.OrderDetails = append(resp.OrderDetails, orderDetailResponse{
			OrderDetailID:   detail.ID,
			ProductID:       detail.ProductID,
			ManufacturerID:  detail.ManufacturerID,
			Quantity:        detail.Qty,
			ProductPrice:    detail.PriceMinor,
			OrderItemStatus: detail.ItemStatus.DisplayName(),
		})
	}
	return resp
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order))
	}
	return result
}

func toOrderViewResponse(view lifecycle.OrderView) orderResponse {
	resp := toOrderResponse(view.Order)
	resp.RetailerName = view.RetailerName
	resp.ManufacturerName = view.ManufacturerName
	for i := range resp.OrderDetails {
		resp.OrderDetails[i].ProductName = view.ProductNames[resp.OrderDetails[i].ProductID]
	}
	return resp
}

func toCartItemResponse(cart domain.ShoppingCart) cartItemResponse {
	return cartItemResponse{
		CartID:         cart.ID,
		RetailerID:     cart.RetailerID,
		ProductID:      cart.ProductID,
		ManufacturerID: cart.ManufacturerID,
		Quantity:       cart.Qty,
		ProductPrice:   cart.PriceMinor,
		Status:         string(cart.Status),
		IsActive:       cart.IsActive,
		CreatedOn:      cart.CreatedOn,
		CreatedBy:      cart.CreatedBy,
	}
}

func toCartItemResponses(carts []domain.ShoppingCart) []cartItemResponse {
	result := make([]cartItemResponse, 0, len(carts))
	for _, cart := range carts {
		result = append(result, toCartItemResponse(cart))
	}
	return result
}
