package order

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/errors"
)

// Order is the purchase a commission was earned on. It is only ever read.
type Order struct {
	ID        *int64
	Status    string
	Total     string
	CreatedAt time.Time
}

// Repository defines read access to orders
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
}

// IDString renders the ID for logs.
func (o *Order) IDString() string {
	if o.ID == nil {
		return "N/A"
	}
	return strconv.FormatInt(*o.ID, 10)
}

// StatusString renders the status for logs.
func (o *Order) StatusString() string {
	if o.Status == "" {
		return "N/A"
	}
	return o.Status
}

// TotalString renders the total for logs.
func (o *Order) TotalString() string {
	if o.Total == "" {
		return "N/A"
	}
	return o.Total
}

type payload struct {
	ID     json.RawMessage `json:"id"`
	Status json.RawMessage `json:"status"`
	Total  json.RawMessage `json:"total"`
}

// Decode builds an Order from a loosely typed JSON object. Anything other
// than an object yields ErrNotAnOrderRecord.
func Decode(raw json.RawMessage) (*Order, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.ErrNotAnOrderRecord
	}
	var p payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, errors.ErrNotAnOrderRecord
	}

	o := &Order{
		Status: scalar(p.Status),
		Total:  scalar(p.Total),
	}
	if id := scalar(p.ID); id != "" {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			o.ID = &n
		}
	}
	return o, nil
}

func scalar(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	if v[0] == '{' || v[0] == '[' {
		return ""
	}
	return string(v)
}
