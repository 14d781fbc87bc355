package commission

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/errors"
)

// Status represents the payout status of a vendor commission
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusVoid    Status = "void"
)

// Statuses lists every known commission status.
var Statuses = []Status{StatusUnpaid, StatusPending, StatusPaid, StatusVoid}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.NewDomainError("invalid_status", "commission_status must be one of unpaid pending paid void, got "+strconv.Quote(s), errors.ErrInvalidStatus)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Record is a vendor commission as seen by payout evaluation.
//
// Callers of the payout pipeline sometimes hand over a partially hydrated
// record (typically just the ID). Amount and Status are therefore optional; a
// record missing either one is Partial and has to be resolved from storage
// before a decision can be made.
type Record struct {
	ID          *int64
	RawID       string
	OrderID     *int64
	OrderItemID *int64
	VendorID    *int64
	ProductID   *int64
	Amount      *string
	Status      *Status
	PaidDate    *time.Time
	CreatedAt   *time.Time
}

// Complete reports whether both the amount and the status are present.
func (r *Record) Complete() bool {
	return r.Amount != nil && r.Status != nil
}

// IsVoid reports whether the record is already void.
func (r *Record) IsVoid() bool {
	return r.Status != nil && *r.Status == StatusVoid
}

// leadingNumber matches the numeric prefix of a raw amount: an optional sign,
// digits with an optional fraction, and an optional exponent.
var leadingNumber = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

// AmountValue converts the raw amount the way loosely typed payout callers do:
// leading whitespace is skipped, the longest numeric prefix is used and
// anything without one counts as 0. "12,50" is 12, "N/A" and "NaN" are 0.
func (r *Record) AmountValue() (float64, error) {
	if r.Amount == nil {
		return 0, errors.ErrMissingAmount
	}
	return parseAmount(*r.Amount), nil
}

func parseAmount(raw string) float64 {
	prefix := leadingNumber.FindString(strings.TrimLeft(raw, " \t\n\r\v\f"))
	if prefix == "" {
		return 0
	}
	// Out of range prefixes still yield ±Inf or 0, which is what we want.
	f, _ := strconv.ParseFloat(prefix, 64)
	return f
}

// IDString renders the ID for logs, falling back to whatever the caller sent.
func (r *Record) IDString() string {
	if r.ID != nil {
		return strconv.FormatInt(*r.ID, 10)
	}
	if r.RawID != "" {
		return r.RawID
	}
	return "N/A"
}

// OrderIDString renders the order ID for logs.
func (r *Record) OrderIDString() string {
	if r.OrderID != nil {
		return strconv.FormatInt(*r.OrderID, 10)
	}
	return "N/A"
}

// StatusString renders the status for logs.
func (r *Record) StatusString() string {
	if r.Status != nil {
		return string(*r.Status)
	}
	return "N/A"
}

// AmountString renders the raw amount for logs.
func (r *Record) AmountString() string {
	if r.Amount != nil {
		return *r.Amount
	}
	return "N/A"
}

// IsZeroAmount reports whether amount rounds to nothing payable. NaN is never zero.
func IsZeroAmount(amount, tolerance float64) bool {
	return math.Abs(amount) < tolerance
}
