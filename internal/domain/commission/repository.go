package commission

import (
	"context"
	"time"
)

// Repository defines the interface for commission persistence
type Repository interface {
	// Create inserts a new commission and sets its ID
	Create(ctx context.Context, r *Record) error

	// GetByID retrieves a commission by ID
	GetByID(ctx context.Context, id int64) (*Record, error)

	// List lists commissions with filters
	List(ctx context.Context, filter ListFilter) ([]*Record, error)

	// UpdateStatus sets the status of one commission, or of every commission
	// belonging to orderItemID when commissionID is 0. Returns rows affected.
	UpdateStatus(ctx context.Context, commissionID, orderItemID int64, status Status, paidAt *time.Time) (int64, error)
}

// ListFilter defines filters for listing commissions
type ListFilter struct {
	Status      *Status
	OrderID     *int64
	OrderItemID *int64
	VendorID    *int64
	Limit       int
	Offset      int
}
