package commission

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cassiomorais/commissions/internal/domain/errors"
)

// DecodeRecord builds a Record from a loosely typed JSON value.
//
// Anything other than a JSON object yields ErrNotACommissionRecord. Fields that
// are absent or null stay nil. IDs may be JSON numbers or numeric strings; a
// non-numeric id is kept in RawID only. The amount may be a string or a number
// and is kept verbatim.
func DecodeRecord(raw json.RawMessage) (*Record, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	r := &Record{}
	if v, ok := fields["id"]; ok {
		r.ID, r.RawID = decodeInt(v)
	}
	if v, ok := fields["order_id"]; ok {
		r.OrderID, _ = decodeInt(v)
	}
	if v, ok := fields["order_item_id"]; ok {
		r.OrderItemID, _ = decodeInt(v)
	}
	if v, ok := fields["vendor_id"]; ok {
		r.VendorID, _ = decodeInt(v)
	}
	if v, ok := fields["product_id"]; ok {
		r.ProductID, _ = decodeInt(v)
	}
	if v, ok := fields["total_commission_amount"]; ok {
		r.Amount = decodeScalar(v)
	}
	if v, ok := fields["commission_status"]; ok {
		if s := decodeScalar(v); s != nil {
			st := Status(*s)
			r.Status = &st
		}
	}
	return r, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.ErrNotACommissionRecord
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, errors.ErrNotACommissionRecord
	}
	return fields, nil
}

// decodeScalar returns a string or number literal as text; null, objects,
// arrays and booleans are treated as absent.
func decodeScalar(v json.RawMessage) *string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return nil
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil
		}
		return &s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		s := string(v)
		return &s
	}
	return nil
}

func decodeInt(v json.RawMessage) (*int64, string) {
	s := decodeScalar(v)
	if s == nil {
		return nil, ""
	}
	raw := strings.TrimSpace(*s)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &n, raw
	}
	// Numeric strings such as "42.0" are still usable identifiers.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
		n := int64(f)
		return &n, raw
	}
	return nil, raw
}
