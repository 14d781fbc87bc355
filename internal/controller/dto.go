package controller

import (
	"encoding/json"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
)

// PayoutValidityRequest mirrors the commission_is_valid_to_pay arguments.
// Commission and order are taken as raw JSON: anything that is not an
// object reaches the filters as "not a record" instead of failing the request.
type PayoutValidityRequest struct {
	IsValid    *bool           `json:"is_valid" validate:"required"`
	Commission json.RawMessage `json:"commission"`
	Order      json.RawMessage `json:"order"`
}

type PayoutValidityResponse struct {
	IsValid bool `json:"is_valid"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=unpaid pending paid void"`
}

// CreateCommissionRequest registers a commission written by the order engine.
// The amount is kept as text and normalised by storage.
type CreateCommissionRequest struct {
	OrderID               *int64 `json:"order_id" validate:"omitempty,gt=0"`
	OrderItemID           *int64 `json:"order_item_id" validate:"omitempty,gt=0"`
	VendorID              *int64 `json:"vendor_id" validate:"omitempty,gt=0"`
	ProductID             *int64 `json:"product_id" validate:"omitempty,gt=0"`
	TotalCommissionAmount string `json:"total_commission_amount" validate:"required"`
	CommissionStatus      string `json:"commission_status" validate:"omitempty,oneof=unpaid pending paid void"`
}

func (r CreateCommissionRequest) toRecord() *commission.Record {
	amount := r.TotalCommissionAmount
	c := &commission.Record{
		OrderID:     r.OrderID,
		OrderItemID: r.OrderItemID,
		VendorID:    r.VendorID,
		ProductID:   r.ProductID,
		Amount:      &amount,
	}
	if r.CommissionStatus != "" {
		st := commission.Status(r.CommissionStatus)
		c.Status = &st
	}
	return c
}

type EvaluateRequest struct {
	IsValid *bool `json:"is_valid"`
}

type EvaluationQueuedResponse struct {
	CommissionID int64  `json:"commission_id"`
	MessageID    string `json:"message_id"`
	Status       string `json:"status"`
}

// CommissionResponse represents a commission in API responses. Amount and
// status are null when storage has none.
type CommissionResponse struct {
	ID                    int64      `json:"id"`
	OrderID               *int64     `json:"order_id"`
	OrderItemID           *int64     `json:"order_item_id,omitempty"`
	VendorID              *int64     `json:"vendor_id,omitempty"`
	ProductID             *int64     `json:"product_id,omitempty"`
	TotalCommissionAmount *string    `json:"total_commission_amount"`
	CommissionStatus      *string    `json:"commission_status"`
	PaidDate              *time.Time `json:"paid_date,omitempty"`
	CreatedAt             *time.Time `json:"created_at,omitempty"`
}

type ListCommissionsResponse struct {
	Commissions []CommissionResponse `json:"commissions"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func toCommissionResponse(c *commission.Record) CommissionResponse {
	resp := CommissionResponse{
		OrderID:               c.OrderID,
		OrderItemID:           c.OrderItemID,
		VendorID:              c.VendorID,
		ProductID:             c.ProductID,
		TotalCommissionAmount: c.Amount,
		PaidDate:              c.PaidDate,
		CreatedAt:             c.CreatedAt,
	}
	if c.ID != nil {
		resp.ID = *c.ID
	}
	if c.Status != nil {
		s := string(*c.Status)
		resp.CommissionStatus = &s
	}
	return resp
}
