package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/lifecycle"
)

// Handler — REST-слой над движком жизненного цикла.
type Handler struct {
	engine   *lifecycle.Engine
	idemRepo domain.IdempotencyRepository // опционально, nil отключает idempotency-key
	logger   *log.Entry
}

// NewHandler создаёт REST handler. idemRepo может быть nil.
func NewHandler(engine *lifecycle.Engine, idemRepo domain.IdempotencyRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handler{engine: engine, idemRepo: idemRepo, logger: logger}
}

// NewRouter собирает gin-роутер со всеми маршрутами API.
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")

	orders := api.Group("/orders")
	orders.POST("", handler.withIdempotency(handler.CreateOrder))
	orders.GET("/search", handler.SearchOrders)
	orders.GET("/manufacturer/:manufacturerId", handler.GetOrdersByManufacturer)
	orders.GET("/:id", handler.GetOrder)
	orders.PUT("", handler.UpdateOrder)
	orders.POST("/:id/review", handler.ReviewOrder)

	carts := api.Group("/carts")
	carts.POST("", handler.AddCartItem)
	carts.GET("", handler.ListCartItems)
	carts.GET("/:id", handler.GetCartItem)
	carts.DELETE("/:id", handler.RemoveCartItem)

	return router
}

// CreateOrder обрабатывает POST /api/orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeFailure(c, http.StatusBadRequest, "Invalid order data.", err)
		return
	}

	order, err := h.engine.CreateOrder(c.Request.Context(), req.toEngine())
	if err != nil {
		h.writeDomainError(c, "Order creation failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Order created successfully.",
		Data:    toOrderResponse(order),
	})
}

// UpdateOrder обрабатывает PUT /api/orders.
func (h *Handler) UpdateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeFailure(c, http.StatusBadRequest, "Invalid order update data.", err)
		return
	}

	order, err := h.engine.UpdateOrder(c.Request.Context(), lifecycle.UpdateOrderRequest{
		OrderID:             req.OrderID,
		StatusDisplayName:   req.OrderStatus,
		DeliveryPersonnelID: req.DeliveryPersonnelID,
		UpdatedBy:           req.UpdatedBy,
	})
	if err != nil {
		h.writeDomainError(c, "Order update failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Order updated successfully.",
		Data:    toOrderResponse(order),
	})
}

// ReviewOrder обрабатывает POST /api/orders/:id/review.
func (h *Handler) ReviewOrder(c *gin.Context) {
	var req reviewOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeFailure(c, http.StatusBadRequest, "Invalid review data.", err)
		return
	}

	engineReq := lifecycle.ReviewOrderRequest{
		OrderID:    c.Param("id"),
		ReviewedBy: req.ReviewedBy,
	}
	for _, decision := range req.Decisions {
		engineReq.Decisions = append(engineReq.Decisions, lifecycle.ReviewDecision{
			DetailID: decision.OrderDetailID,
			Accepted: decision.IsAccepted,
		})
	}

	order, err := h.engine.ReviewOrder(c.Request.Context(), engineReq)
	if err != nil {
		h.writeDomainError(c, "Order review failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Order reviewed successfully.",
		Data:    toOrderResponse(order),
	})
}

// GetOrder обрабатывает GET /api/orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeDomainError(c, "Order lookup failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Order fetched successfully.",
		Data:    toOrderResponse(order),
	})
}

// GetOrdersByManufacturer обрабатывает GET /api/orders/manufacturer/:manufacturerId.
func (h *Handler) GetOrdersByManufacturer(c *gin.Context) {
	orders, err := h.engine.ListOrdersByManufacturer(c.Request.Context(), c.Param("manufacturerId"))
	if err != nil {
		h.writeDomainError(c, "Order lookup failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Orders fetched successfully.",
		Data:    toOrderResponses(orders),
	})
}

// SearchOrders обрабатывает GET /api/orders/search.
func (h *Handler) SearchOrders(c *gin.Context) {
	req := lifecycle.SearchOrdersRequest{
		Filter: domain.OrderFilter{
			OrderID:             c.Query("orderId"),
			RetailerID:          c.Query("retailerId"),
			ManufacturerID:      c.Query("manufacturerId"),
			DeliveryPersonnelID: c.Query("deliveryPersonnelId"),
		},
		RetailerName:     c.Query("retailerName"),
		ManufacturerName: c.Query("manufacturerName"),
		ProductName:      c.Query("productName"),
	}
	if status := c.Query("orderStatus"); status != "" {
		req.Filter.Status = domain.ParseOrderStatusDisplayName(status)
	}
	if itemStatus := c.Query("orderItemStatus"); itemStatus != "" {
		req.Filter.ItemStatus = domain.ParseOrderStatusDisplayName(itemStatus)
	}
	req.PageNumber, _ = strconv.Atoi(c.Query("pageNumber"))
	req.PageSize, _ = strconv.Atoi(c.Query("pageSize"))

	result, err := h.engine.SearchOrders(c.Request.Context(), req)
	if err != nil {
		h.writeDomainError(c, "Order search failed.", err)
		return
	}

	resp := searchOrdersResponse{
		Orders:     make([]orderResponse, 0, len(result.Orders)),
		PageNumber: result.PageNumber,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
	}
	for _, view := range result.Orders {
		resp.Orders = append(resp.Orders, toOrderViewResponse(view))
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Orders fetched successfully.",
		Data:    resp,
	})
}

// AddCartItem обрабатывает POST /api/carts.
func (h *Handler) AddCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeFailure(c, http.StatusBadRequest, "Invalid cart data.", err)
		return
	}

	cart, err := h.engine.AddCartItem(c.Request.Context(), lifecycle.AddCartItemRequest{
		RetailerID:     req.RetailerID,
		ProductID:      req.ProductID,
		ManufacturerID: req.ManufacturerID,
		Qty:            req.Quantity,
		PriceMinor:     req.ProductPrice,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		h.writeDomainError(c, "Cart item creation failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Cart item created successfully.",
		Data:    toCartItemResponse(cart),
	})
}

// GetCartItem обрабатывает GET /api/carts/:id.
func (h *Handler) GetCartItem(c *gin.Context) {
	cart, err := h.engine.GetCartItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeDomainError(c, "Cart item lookup failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Cart item fetched successfully.",
		Data:    toCartItemResponse(cart),
	})
}

// ListCartItems обрабатывает GET /api/carts?retailerId=.
func (h *Handler) ListCartItems(c *gin.Context) {
	carts, err := h.engine.ListCartItems(c.Request.Context(), c.Query("retailerId"))
	if err != nil {
		h.writeDomainError(c, "Cart lookup failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Cart items fetched successfully.",
		Data:    toCartItemResponses(carts),
	})
}

// RemoveCartItem обрабатывает DELETE /api/carts/:id.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	if err := h.engine.RemoveCartItem(c.Request.Context(), c.Param("id"), c.Query("updatedBy")); err != nil {
		h.writeDomainError(c, "Cart item removal failed.", err)
		return
	}

	c.JSON(http.StatusOK, envelope{
		Message: "Cart item removed successfully.",
	})
}

// writeDomainError переводит классификацию доменной ошибки в HTTP-статус.
func (h *Handler) writeDomainError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.ErrorKindValidation:
		status = http.StatusBadRequest
	case domain.ErrorKindNotFound:
		status = http.StatusNotFound
	case domain.ErrorKindConflict:
		status = http.StatusConflict
	case domain.ErrorKindDependency, domain.ErrorKindPersistence:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	h.writeFailure(c, status, message, err)
}

func (h *Handler) writeFailure(c *gin.Context, status int, message string, err error) {
	c.JSON(status, envelope{
		Message:      message,
		ErrorMessage: err.Error(),
	})
}
