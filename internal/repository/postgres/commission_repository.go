package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const commissionColumns = `id, order_id, order_item_id, vendor_id, product_id,
		        total_commission_amount::text, commission_status, paid_date, created_at`

// CommissionRepository implements commission.Repository using PostgreSQL.
type CommissionRepository struct {
	pool *pgxpool.Pool
}

func NewCommissionRepository(pool *pgxpool.Pool) *CommissionRepository {
	return &CommissionRepository{pool: pool}
}

func (r *CommissionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a commission and sets its ID and creation time.
func (r *CommissionRepository) Create(ctx context.Context, c *commission.Record) error {
	var amount *string
	if c.Amount != nil {
		n, err := normalizeNumeric(*c.Amount)
		if err != nil {
			return domainErrors.NewDomainError("invalid_amount", err.Error(), domainErrors.ErrInvalidAmount)
		}
		amount = &n
	}
	var status *string
	if c.Status != nil {
		s := string(*c.Status)
		status = &s
	}

	var (
		id        int64
		createdAt time.Time
	)
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO commissions
		 (order_id, order_item_id, vendor_id, product_id, total_commission_amount, commission_status, paid_date)
		 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)
		 RETURNING id, created_at`,
		c.OrderID, c.OrderItemID, c.VendorID, c.ProductID, amount, status, c.PaidDate,
	).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}
	c.ID = &id
	c.CreatedAt = &createdAt
	return nil
}

// GetByID loads one commission row.
func (r *CommissionRepository) GetByID(ctx context.Context, id int64) (*commission.Record, error) {
	return r.scanCommission(r.db(ctx).QueryRow(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE id = $1`, id))
}

func (r *CommissionRepository) List(ctx context.Context, f commission.ListFilter) ([]*commission.Record, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Status != nil {
		query += fmt.Sprintf(" AND commission_status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.OrderID != nil {
		query += fmt.Sprintf(" AND order_id = $%d", argIdx)
		args = append(args, *f.OrderID)
		argIdx++
	}
	if f.OrderItemID != nil {
		query += fmt.Sprintf(" AND order_item_id = $%d", argIdx)
		args = append(args, *f.OrderItemID)
		argIdx++
	}
	if f.VendorID != nil {
		query += fmt.Sprintf(" AND vendor_id = $%d", argIdx)
		args = append(args, *f.VendorID)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	var out []*commission.Record
	for rows.Next() {
		c, err := r.scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus sets commission_status on one row, or on every row of an
// order item when commissionID is 0. paid_date is only written when paidAt is set.
func (r *CommissionRepository) UpdateStatus(ctx context.Context, commissionID, orderItemID int64, status commission.Status, paidAt *time.Time) (int64, error) {
	column, key := "id", commissionID
	if commissionID == 0 {
		if orderItemID == 0 {
			return 0, domainErrors.ErrInvalidCommissionID
		}
		column, key = "order_item_id", orderItemID
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE commissions
		 SET commission_status = $1, paid_date = COALESCE($2::timestamptz, paid_date)
		 WHERE `+column+` = $3`,
		string(status), paidAt, key,
	)
	if err != nil {
		return 0, fmt.Errorf("update commission status: %w", err)
	}
	if tag.RowsAffected() == 0 && commissionID != 0 {
		return 0, domainErrors.ErrCommissionNotFound
	}
	return tag.RowsAffected(), nil
}

func (r *CommissionRepository) scanCommission(s scanner) (*commission.Record, error) {
	c := &commission.Record{}
	var (
		id        int64
		status    *string
		createdAt time.Time
	)
	err := s.Scan(
		&id, &c.OrderID, &c.OrderItemID, &c.VendorID, &c.ProductID,
		&c.Amount, &status, &c.PaidDate, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrCommissionNotFound
		}
		return nil, fmt.Errorf("scan commission: %w", err)
	}
	c.ID = &id
	c.CreatedAt = &createdAt
	if status != nil {
		st := commission.Status(*status)
		c.Status = &st
	}
	return c, nil
}
