package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderColumns = `
		id, retailer_id, manufacturer_id, delivery_personnel_id, status,
		total_price_minor, payment_mode, payment_currency,
		shipping_cost_minor, shipping_currency, shipping_address,
		is_active, created_on, created_by, updated_on, updated_by`

	detailColumns = `
		id, order_id, product_id, manufacturer_id, qty, price_minor,
		item_status, is_active, created_on, created_by, updated_on, updated_by`
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// InsertOrder сохраняет шапку заказа. Позиции вставляются отдельными
// вызовами InsertDetail, без общей транзакции.
func (r *orderRepository) InsertOrder(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		order.ID, order.RetailerID, order.ManufacturerID, order.DeliveryPersonnelID,
		string(order.Status), order.TotalPriceMinor, string(order.PaymentMode),
		order.PaymentCurrency, order.ShippingCostMinor, order.ShippingCurrency,
		order.ShippingAddress, order.IsActive,
		order.CreatedOn, order.CreatedBy, order.UpdatedOn, order.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewPersistenceError("order already exists", err)
		}
		return domain.NewPersistenceError("insert order", err)
	}

	return nil
}

func (r *orderRepository) InsertDetail(ctx context.Context, detail domain.OrderDetail) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_details (`+detailColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		detail.ID, detail.OrderID, detail.ProductID, detail.ManufacturerID,
		detail.Qty, detail.PriceMinor, string(detail.ItemStatus), detail.IsActive,
		detail.CreatedOn, detail.CreatedBy, detail.UpdatedOn, detail.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewPersistenceError("order detail already exists", err)
		}
		return domain.NewPersistenceError("insert order detail", err)
	}

	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, orderID string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.scanOneOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	details, err := r.loadDetails(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Details = details

	return order, nil
}

func (r *orderRepository) GetDetailsByOrderID(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.loadDetails(ctx, orderID)
}

func (r *orderRepository) ListByManufacturer(ctx context.Context, manufacturerID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Заказ попадает в выборку, если производитель указан в шапке
	// или хотя бы в одной позиции.
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.manufacturer_id = $1
		   OR EXISTS (
			SELECT 1 FROM order_details d
			WHERE d.order_id = o.id AND d.manufacturer_id = $1
		   )
		ORDER BY o.created_on DESC, o.id DESC
	`, manufacturerID)
}

func (r *orderRepository) UpdateMutableFields(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    delivery_personnel_id = $2,
		    updated_on = $3,
		    updated_by = $4
		WHERE id = $5
	`,
		string(order.Status), order.DeliveryPersonnelID,
		order.UpdatedOn, order.UpdatedBy, order.ID,
	)
	if err != nil {
		return domain.NewPersistenceError("update order", err)
	}

	return requireAffected(res, domain.ErrOrderNotFound)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedBy string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_on = $2, updated_by = $3
		WHERE id = $4
	`, string(status), time.Now().UTC(), updatedBy, orderID)
	if err != nil {
		return domain.NewPersistenceError("update order status", err)
	}

	return requireAffected(res, domain.ErrOrderNotFound)
}

func (r *orderRepository) UpdateDetailStatus(ctx context.Context, detailID string, status domain.OrderStatus, updatedBy string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE order_details
		SET item_status = $1, updated_on = $2, updated_by = $3
		WHERE id = $4
	`, string(status), time.Now().UTC(), updatedBy, detailID)
	if err != nil {
		return domain.NewPersistenceError("update order detail status", err)
	}

	return requireAffected(res, domain.ErrOrderDetailNotFound)
}

func (r *orderRepository) Search(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.OrderID != "" {
		add("o.id = $%d", filter.OrderID)
	}
	if filter.RetailerID != "" {
		add("o.retailer_id = $%d", filter.RetailerID)
	}
	if filter.DeliveryPersonnelID != "" {
		add("o.delivery_personnel_id = $%d", filter.DeliveryPersonnelID)
	}
	if filter.Status != "" {
		add("o.status = $%d", string(filter.Status))
	}
	if filter.ManufacturerID != "" {
		add(`(o.manufacturer_id = $%[1]d OR EXISTS (
			SELECT 1 FROM order_details d
			WHERE d.order_id = o.id AND d.manufacturer_id = $%[1]d
		))`, filter.ManufacturerID)
	}
	if filter.ItemStatus != "" {
		add(`EXISTS (
			SELECT 1 FROM order_details d
			WHERE d.order_id = o.id AND d.item_status = $%d
		)`, string(filter.ItemStatus))
	}

	query := `SELECT ` + orderColumns + ` FROM orders o`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY o.created_on DESC, o.id DESC"

	return r.queryOrders(ctx, query, args...)
}

func (r *orderRepository) scanOneOrder(ctx context.Context, query string, args ...any) (domain.Order, error) {
	var (
		order       domain.Order
		status      string
		paymentMode string
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&order.ID, &order.RetailerID, &order.ManufacturerID, &order.DeliveryPersonnelID,
		&status, &order.TotalPriceMinor, &paymentMode, &order.PaymentCurrency,
		&order.ShippingCostMinor, &order.ShippingCurrency, &order.ShippingAddress,
		&order.IsActive, &order.CreatedOn, &order.CreatedBy, &order.UpdatedOn, &order.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.NewPersistenceError("select order", err)
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentMode = domain.PaymentMode(paymentMode)
	return order, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewPersistenceError("query orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var (
			order       domain.Order
			status      string
			paymentMode string
		)
		if err := rows.Scan(
			&order.ID, &order.RetailerID, &order.ManufacturerID, &order.DeliveryPersonnelID,
			&status, &order.TotalPriceMinor, &paymentMode, &order.PaymentCurrency,
			&order.ShippingCostMinor, &order.ShippingCurrency, &order.ShippingAddress,
			&order.IsActive, &order.CreatedOn, &order.CreatedBy, &order.UpdatedOn, &order.UpdatedBy,
		); err != nil {
			return nil, domain.NewPersistenceError("scan order row", err)
		}
		order.Status = domain.OrderStatus(status)
		order.PaymentMode = domain.PaymentMode(paymentMode)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("iterate order rows", err)
	}

	for i := range orders {
		details, err := r.loadDetails(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Details = details
	}

	return orders, nil
}

func (r *orderRepository) loadDetails(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+detailColumns+`
		FROM order_details
		WHERE order_id = $1
		ORDER BY created_on ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, domain.NewPersistenceError("load order details", err)
	}
	defer rows.Close()

	details := make([]domain.OrderDetail, 0)
	for rows.Next() {
		var (
			detail     domain.OrderDetail
			itemStatus string
		)
		if err := rows.Scan(
			&detail.ID, &detail.OrderID, &detail.ProductID, &detail.ManufacturerID,
			&detail.Qty, &detail.PriceMinor, &itemStatus, &detail.IsActive,
			&detail.CreatedOn, &detail.CreatedBy, &detail.UpdatedOn, &detail.UpdatedBy,
		); err != nil {
			return nil, domain.NewPersistenceError("scan order detail", err)
		}
		detail.ItemStatus = domain.OrderStatus(itemStatus)
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("iterate order details", err)
	}

	return details, nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.NewPersistenceError("rows affected", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
