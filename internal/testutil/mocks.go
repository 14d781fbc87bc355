package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/domain/idempotency"
	"github.com/cassiomorais/commissions/internal/domain/order"
	"github.com/cassiomorais/commissions/internal/domain/outbox"
	"github.com/google/uuid"
)

// StatusUpdateCall records one status update request.
type StatusUpdateCall struct {
	CommissionID int64
	OrderItemID  int64
	Status       commission.Status
	PaidAt       *time.Time
}

// --- Commission Repository Mock ---

// MockCommissionRepository is a mock implementation of commission.Repository.
type MockCommissionRepository struct {
	mu          sync.Mutex
	commissions map[int64]*commission.Record
	nextID      int64
	updates     []StatusUpdateCall
	lookups     int

	CreateFunc       func(ctx context.Context, c *commission.Record) error
	GetByIDFunc      func(ctx context.Context, id int64) (*commission.Record, error)
	ListFunc         func(ctx context.Context, filter commission.ListFilter) ([]*commission.Record, error)
	UpdateStatusFunc func(ctx context.Context, commissionID, orderItemID int64, status commission.Status, paidAt *time.Time) (int64, error)
}

func NewMockCommissionRepository() *MockCommissionRepository {
	return &MockCommissionRepository{commissions: make(map[int64]*commission.Record)}
}

// AddCommission pre-populates the mock. The record must carry an ID.
func (m *MockCommissionRepository) AddCommission(c *commission.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commissions[*c.ID] = c
	if *c.ID > m.nextID {
		m.nextID = *c.ID
	}
}

func (m *MockCommissionRepository) Create(ctx context.Context, c *commission.Record) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	c.ID = &id
	m.commissions[id] = c
	return nil
}

func (m *MockCommissionRepository) GetByID(ctx context.Context, id int64) (*commission.Record, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commissions[id]
	if !ok {
		return nil, domainErrors.ErrCommissionNotFound
	}
	return c, nil
}

func (m *MockCommissionRepository) List(ctx context.Context, filter commission.ListFilter) ([]*commission.Record, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*commission.Record, 0, len(m.commissions))
	for _, c := range m.commissions {
		if filter.Status != nil && (c.Status == nil || *c.Status != *filter.Status) {
			continue
		}
		if filter.OrderID != nil && (c.OrderID == nil || *c.OrderID != *filter.OrderID) {
			continue
		}
		if filter.OrderItemID != nil && (c.OrderItemID == nil || *c.OrderItemID != *filter.OrderItemID) {
			continue
		}
		if filter.VendorID != nil && (c.VendorID == nil || *c.VendorID != *filter.VendorID) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return *result[i].ID < *result[j].ID })
	if filter.Offset >= len(result) {
		return nil, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockCommissionRepository) UpdateStatus(ctx context.Context, commissionID, orderItemID int64, status commission.Status, paidAt *time.Time) (int64, error) {
	m.mu.Lock()
	m.updates = append(m.updates, StatusUpdateCall{commissionID, orderItemID, status, paidAt})
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, commissionID, orderItemID, status, paidAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows int64
	for _, c := range m.commissions {
		match := commissionID != 0 && *c.ID == commissionID
		if commissionID == 0 {
			match = c.OrderItemID != nil && *c.OrderItemID == orderItemID
		}
		if !match {
			continue
		}
		st := status
		c.Status = &st
		if paidAt != nil {
			c.PaidDate = paidAt
		}
		rows++
	}
	if rows == 0 && commissionID != 0 {
		return 0, domainErrors.ErrCommissionNotFound
	}
	return rows, nil
}

// Updates returns every UpdateStatus call seen so far.
func (m *MockCommissionRepository) Updates() []StatusUpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusUpdateCall(nil), m.updates...)
}

// Lookups returns how many times GetByID was called.
func (m *MockCommissionRepository) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// --- Status Updater Mock ---

// MockStatusUpdater is a mock implementation of service.StatusUpdater.
type MockStatusUpdater struct {
	mu    sync.Mutex
	calls []StatusUpdateCall

	UpdateStatusFunc func(ctx context.Context, commissionID, orderItemID int64, status commission.Status) error
}

func (m *MockStatusUpdater) UpdateStatus(ctx context.Context, commissionID, orderItemID int64, status commission.Status) error {
	m.mu.Lock()
	m.calls = append(m.calls, StatusUpdateCall{CommissionID: commissionID, OrderItemID: orderItemID, Status: status})
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, commissionID, orderItemID, status)
	}
	return nil
}

func (m *MockStatusUpdater) Calls() []StatusUpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusUpdateCall(nil), m.calls...)
}

// --- Order Repository Mock ---

// MockOrderRepository is a mock implementation of order.Repository.
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[int64]*order.Order

	GetByIDFunc func(ctx context.Context, id int64) (*order.Order, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[int64]*order.Order)}
}

func (m *MockOrderRepository) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[*o.ID] = o
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	return o, nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu       sync.Mutex
	inserted []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, entry)
	return nil
}

// Inserted returns the entries stored through the default Insert.
func (m *MockOutboxRepository) Inserted() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.inserted...)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	return nil
}

// --- Idempotency Store Mock ---

// MockIdempotencyStore is an in-memory idempotency.Store.
type MockIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotency.Entry

	GetFunc func(ctx context.Context, key string) (*idempotency.Entry, error)
	SetFunc func(ctx context.Context, entry *idempotency.Entry) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{entries: make(map[string]*idempotency.Entry)}
}

func (m *MockIdempotencyStore) Get(ctx context.Context, key string) (*idempotency.Entry, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.Expired(time.Now()) {
		return nil, nil
	}
	return e, nil
}

func (m *MockIdempotencyStore) Set(ctx context.Context, entry *idempotency.Entry) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

func (m *MockIdempotencyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
