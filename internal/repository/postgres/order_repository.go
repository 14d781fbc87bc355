package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/domain/order"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository reads orders for evaluation diagnostics.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	o := &order.Order{}
	var orderID int64
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT id, status, total::text, created_at FROM orders WHERE id = $1`, id,
	).Scan(&orderID, &o.Status, &o.Total, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.ID = &orderID
	return o, nil
}
