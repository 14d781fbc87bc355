package service

import (
	"context"
	"sort"
	"sync"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	"github.com/cassiomorais/commissions/internal/domain/order"
)

const (
	// CommissionIsValidToPay names the decision point payout pipelines consult
	// before disbursing a commission.
	CommissionIsValidToPay = "commission_is_valid_to_pay"

	// VoiderPriority runs the zero-commission voider ahead of other filters.
	VoiderPriority = 1
)

// ValidityFilter takes the verdict so far and returns the next one.
type ValidityFilter interface {
	Handle(ctx context.Context, isValid bool, c *commission.Record, o *order.Order) bool
}

type ValidityFilterFunc func(ctx context.Context, isValid bool, c *commission.Record, o *order.Order) bool

func (f ValidityFilterFunc) Handle(ctx context.Context, isValid bool, c *commission.Record, o *order.Order) bool {
	return f(ctx, isValid, c, o)
}

// RegisteredFilter is one entry of a chain, in run order.
type RegisteredFilter struct {
	Name     string
	Priority int
	Filter   ValidityFilter
}

// ValidityChain runs filters in ascending priority; filters sharing a
// priority run in registration order. Safe for concurrent use.
type ValidityChain struct {
	mu      sync.RWMutex
	filters []RegisteredFilter
}

func NewValidityChain() *ValidityChain {
	return &ValidityChain{}
}

func (c *ValidityChain) Register(name string, priority int, f ValidityFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// copy on write so Apply can iterate a snapshot without holding the lock
	next := make([]RegisteredFilter, 0, len(c.filters)+1)
	next = append(next, c.filters...)
	next = append(next, RegisteredFilter{Name: name, Priority: priority, Filter: f})
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Priority < next[j].Priority
	})
	c.filters = next
}

// Apply threads isValid through every filter and returns the final verdict.
func (c *ValidityChain) Apply(ctx context.Context, isValid bool, rec *commission.Record, o *order.Order) bool {
	c.mu.RLock()
	filters := c.filters
	c.mu.RUnlock()

	for _, f := range filters {
		isValid = f.Filter.Handle(ctx, isValid, rec, o)
	}
	return isValid
}

// Filters returns a copy of the chain in run order.
func (c *ValidityChain) Filters() []RegisteredFilter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]RegisteredFilter, len(c.filters))
	copy(out, c.filters)
	return out
}
