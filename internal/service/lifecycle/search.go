package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

const (
	defaultPageSize = 10

	unknownRetailerName     = "Unknown Retailer"
	unknownManufacturerName = "Unknown Manufacturer"
	unknownProductName      = "Unknown Product"
)

// SearchOrdersRequest описывает фильтрованный постраничный поиск заказов.
// ID- и статус-фильтры разрешает хранилище; фильтры по именам движок
// применяет сам после разрешения справочников.
type SearchOrdersRequest struct {
	Filter domain.OrderFilter

	RetailerName     string
	ManufacturerName string
	ProductName      string

	PageNumber int
	PageSize   int
}

// OrderView — заказ с денормализованными отображаемыми именами сторон и товаров.
type OrderView struct {
	Order            domain.Order
	RetailerName     string
	ManufacturerName string
	// ProductNames отображает ProductID позиции в имя товара.
	ProductNames map[string]string
}

// SearchOrdersResult — страница результатов поиска.
type SearchOrdersResult struct {
	Orders     []OrderView
	PageNumber int
	PageSize   int
	TotalCount int
	TotalPages int
}

// SearchOrders возвращает страницу заказов с применёнными фильтрами и
// денормализованными именами. Страницы нумеруются с единицы;
// TotalPages = ceil(совпавших / размер страницы).
func (e *Engine) SearchOrders(ctx context.Context, req SearchOrdersRequest) (SearchOrdersResult, error) {
	start := time.Now()
	defer e.observeOperation("search_orders", start)

	if req.PageNumber <= 0 {
		req.PageNumber = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}

	orders, err := e.orders.Search(ctx, req.Filter)
	if err != nil {
		if domain.KindOf(err) != "" {
			return SearchOrdersResult{}, err
		}
		return SearchOrdersResult{}, domain.NewPersistenceError("order search failed", err)
	}

	views, err := e.resolveOrderViews(ctx, orders)
	if err != nil {
		return SearchOrdersResult{}, err
	}

	views = filterByNames(views, req.RetailerName, req.ManufacturerName, req.ProductName)

	total := len(views)
	totalPages := (total + req.PageSize - 1) / req.PageSize

	from := (req.PageNumber - 1) * req.PageSize
	if from > total {
		from = total
	}
	to := from + req.PageSize
	if to > total {
		to = total
	}

	return SearchOrdersResult{
		Orders:     views[from:to],
		PageNumber: req.PageNumber,
		PageSize:   req.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// resolveOrderViews батчево разрешает имена сторон и товаров.
// Неразрешимые идентификаторы получают "Unknown ..." вместо ошибки.
func (e *Engine) resolveOrderViews(ctx context.Context, orders []domain.Order) ([]OrderView, error) {
	if len(orders) == 0 {
		return []OrderView{}, nil
	}

	userIDs := make([]string, 0, len(orders)*2)
	productIDs := make([]string, 0, len(orders))
	for _, order := range orders {
		userIDs = append(userIDs, order.RetailerID, order.ManufacturerID)
		for _, detail := range order.Details {
			productIDs = append(productIDs, detail.ProductID)
		}
	}

	usersByID, err := e.users.GetUsersByIds(ctx, userIDs)
	if err != nil {
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.NewDependencyError("user directory lookup failed", "", err)
	}
	productsByID, err := e.inventory.GetProductsByIds(ctx, productIDs)
	if err != nil {
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.NewDependencyError("inventory lookup failed", "", err)
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		view := OrderView{
			Order:            order,
			RetailerName:     unknownRetailerName,
			ManufacturerName: unknownManufacturerName,
			ProductNames:     make(map[string]string, len(order.Details)),
		}
		if user, ok := usersByID[order.RetailerID]; ok {
			view.RetailerName = user.Name
		}
		if user, ok := usersByID[order.ManufacturerID]; ok {
			view.ManufacturerName = user.Name
		}
		for _, detail := range order.Details {
			name := unknownProductName
			if product, ok := productsByID[detail.ProductID]; ok {
				name = product.Name
			}
			view.ProductNames[detail.ProductID] = name
		}
		views = append(views, view)
	}
	return views, nil
}

// filterByNames оставляет заказы, имена которых содержат заданные подстроки
// без учёта регистра. Пустой фильтр пропускает всё.
func filterByNames(views []OrderView, retailerName, manufacturerName, productName string) []OrderView {
	if retailerName == "" && manufacturerName == "" && productName == "" {
		return views
	}

	result := make([]OrderView, 0, len(views))
	for _, view := range views {
		if !containsFold(view.RetailerName, retailerName) {
			continue
		}
		if !containsFold(view.ManufacturerName, manufacturerName) {
			continue
		}
		if productName != "" && !anyProductMatches(view.ProductNames, productName) {
			continue
		}
		result = append(result, view)
	}
	return result
}

func anyProductMatches(names map[string]string, substr string) bool {
	for _, name := range names {
		if containsFold(name, substr) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
