package testutil

import (
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	"github.com/cassiomorais/commissions/internal/domain/order"
)

// NewTestCommission returns a complete commission record.
func NewTestCommission(id int64, amount string, status commission.Status) *commission.Record {
	created := time.Now()
	return &commission.Record{
		ID:        Int64Ptr(id),
		OrderID:   Int64Ptr(7),
		VendorID:  Int64Ptr(3),
		Amount:    StringPtr(amount),
		Status:    StatusPtr(status),
		CreatedAt: &created,
	}
}

// NewPartialCommission returns a record that only carries its ID.
func NewPartialCommission(id int64) *commission.Record {
	return &commission.Record{ID: Int64Ptr(id)}
}

func NewTestOrder(id int64, status, total string) *order.Order {
	return &order.Order{
		ID:        Int64Ptr(id),
		Status:    status,
		Total:     total,
		CreatedAt: time.Now(),
	}
}

func Int64Ptr(v int64) *int64 {
	return &v
}

func StringPtr(v string) *string {
	return &v
}

func StatusPtr(s commission.Status) *commission.Status {
	return &s
}
