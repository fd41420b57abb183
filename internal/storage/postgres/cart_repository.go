package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

const cartColumns = `
	id, retailer_id, product_id, manufacturer_id, qty, price_minor,
	status, is_active, created_on, created_by, updated_on, updated_by`

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Insert(ctx context.Context, cart domain.ShoppingCart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shopping_carts (`+cartColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		cart.ID, cart.RetailerID, cart.ProductID, cart.ManufacturerID,
		cart.Qty, cart.PriceMinor, string(cart.Status), cart.IsActive,
		cart.CreatedOn, cart.CreatedBy, cart.UpdatedOn, cart.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewPersistenceError("cart entry already exists", err)
		}
		return domain.NewPersistenceError("insert cart entry", err)
	}

	return nil
}

func (r *cartRepository) GetByID(ctx context.Context, cartID string) (domain.ShoppingCart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		cart   domain.ShoppingCart
		status string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT `+cartColumns+`
		FROM shopping_carts
		WHERE id = $1
	`, cartID).Scan(
		&cart.ID, &cart.RetailerID, &cart.ProductID, &cart.ManufacturerID,
		&cart.Qty, &cart.PriceMinor, &status, &cart.IsActive,
		&cart.CreatedOn, &cart.CreatedBy, &cart.UpdatedOn, &cart.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ShoppingCart{}, domain.ErrCartNotFound
		}
		return domain.ShoppingCart{}, domain.NewPersistenceError("select cart entry", err)
	}

	cart.Status = domain.CartStatus(status)
	return cart, nil
}

// ListByRetailer возвращает только активные записи: деактивированные
// остаются в таблице как история.
func (r *cartRepository) ListByRetailer(ctx context.Context, retailerID string) ([]domain.ShoppingCart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cartColumns+`
		FROM shopping_carts
		WHERE retailer_id = $1 AND is_active
		ORDER BY created_on DESC, id DESC
	`, retailerID)
	if err != nil {
		return nil, domain.NewPersistenceError("list cart entries", err)
	}
	defer rows.Close()

	carts := make([]domain.ShoppingCart, 0)
	for rows.Next() {
		var (
			cart   domain.ShoppingCart
			status string
		)
		if err := rows.Scan(
			&cart.ID, &cart.RetailerID, &cart.ProductID, &cart.ManufacturerID,
			&cart.Qty, &cart.PriceMinor, &status, &cart.IsActive,
			&cart.CreatedOn, &cart.CreatedBy, &cart.UpdatedOn, &cart.UpdatedBy,
		); err != nil {
			return nil, domain.NewPersistenceError("scan cart entry", err)
		}
		cart.Status = domain.CartStatus(status)
		carts = append(carts, cart)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("iterate cart entries", err)
	}

	return carts, nil
}

func (r *cartRepository) Update(ctx context.Context, cart domain.ShoppingCart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE shopping_carts
		SET status = $1,
		    is_active = $2,
		    qty = $3,
		    updated_on = $4,
		    updated_by = $5
		WHERE id = $6
	`,
		string(cart.Status), cart.IsActive, cart.Qty,
		cart.UpdatedOn, cart.UpdatedBy, cart.ID,
	)
	if err != nil {
		return domain.NewPersistenceError("update cart entry", err)
	}

	return requireAffected(res, domain.ErrCartNotFound)
}

var _ domain.CartRepository = (*cartRepository)(nil)
