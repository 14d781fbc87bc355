package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/domain/outbox"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CommissionService owns commission reads and status transitions. Every
// transition is written together with an outbox entry.
type CommissionService struct {
	repo       commission.Repository
	outboxRepo outbox.Repository
	txManager  TransactionManager
	logger     zerolog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	tolerance  float64
}

type CommissionServiceOption func(*CommissionService)

// WithPaidZeroTolerance sets the amount below which a commission may not be
// marked paid. Non-positive values are ignored.
func WithPaidZeroTolerance(tolerance float64) CommissionServiceOption {
	return func(s *CommissionService) {
		if tolerance > 0 {
			s.tolerance = tolerance
		}
	}
}

func NewCommissionService(
	repo commission.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	opts ...CommissionServiceOption,
) *CommissionService {
	s := &CommissionService{
		repo:       repo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		tolerance:  DefaultZeroTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new commission, unpaid unless a status is given, and
// records a commission.created event in the same transaction.
func (s *CommissionService) Create(ctx context.Context, c *commission.Record) error {
	if c.Amount == nil {
		return domainErrors.NewValidationError("total_commission_amount", "is required")
	}
	if c.Status == nil {
		st := commission.StatusUnpaid
		c.Status = &st
	}
	if !c.Status.Valid() {
		return domainErrors.NewDomainError("invalid_status", "unknown commission status "+strconv.Quote(string(*c.Status)), domainErrors.ErrInvalidStatus)
	}
	if *c.Status == commission.StatusPaid {
		if amount, _ := c.AmountValue(); commission.IsZeroAmount(amount, s.tolerance) {
			return domainErrors.NewValidationError("commission_status", "a zero-amount commission cannot be paid")
		}
	}
	c.ID = nil

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, c); err != nil {
			return err
		}
		return s.outboxRepo.Insert(txCtx, outbox.NewEntry("commission", strconv.FormatInt(*c.ID, 10), outbox.EventCommissionCreated, map[string]any{
			"commission_id":           *c.ID,
			"order_id":                c.OrderID,
			"vendor_id":               c.VendorID,
			"total_commission_amount": c.AmountString(),
			"status":                  string(*c.Status),
		}))
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("commission_id", *c.ID).
		Str("amount", c.AmountString()).
		Str("status", string(*c.Status)).
		Msg("Commission created")
	return nil
}

func (s *CommissionService) Get(ctx context.Context, id int64) (*commission.Record, error) {
	if id <= 0 {
		return nil, domainErrors.ErrInvalidCommissionID
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domainErrors.ErrCommissionNotFound
	}
	return c, nil
}

// List clamps the page size to [1, 100], defaulting to 20.
func (s *CommissionService) List(ctx context.Context, filter commission.ListFilter) ([]*commission.Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, domainErrors.NewValidationError("status", "unknown commission status")
	}
	return s.repo.List(ctx, filter)
}

// UpdateStatus sets status on commissionID, or on every commission of
// orderItemID when commissionID is 0. Moving to paid stamps the paid date.
func (s *CommissionService) UpdateStatus(ctx context.Context, commissionID, orderItemID int64, status commission.Status) error {
	if !status.Valid() {
		s.countUpdate(status, "invalid")
		return domainErrors.NewDomainError("invalid_status", "unknown commission status "+strconv.Quote(string(status)), domainErrors.ErrInvalidStatus)
	}
	if commissionID < 0 || orderItemID < 0 || (commissionID == 0 && orderItemID == 0) {
		s.countUpdate(status, "invalid")
		return domainErrors.ErrInvalidCommissionID
	}

	now := s.now().UTC()
	var paidAt *time.Time
	if status == commission.StatusPaid {
		paidAt = &now
	}

	var affected int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if status == commission.StatusPaid {
			if err := s.ensurePayable(txCtx, commissionID, orderItemID); err != nil {
				return err
			}
		}
		n, err := s.repo.UpdateStatus(txCtx, commissionID, orderItemID, status, paidAt)
		if err != nil {
			return err
		}
		affected = n
		if n == 0 {
			return nil
		}
		return s.outboxRepo.Insert(txCtx, statusEvent(commissionID, orderItemID, status, n, now))
	})
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, domainErrors.ErrCommissionNotFound):
			result = "not_found"
		case errors.Is(err, domainErrors.ErrValidationFailed):
			result = "rejected"
		}
		s.countUpdate(status, result)
		return err
	}

	s.countUpdate(status, "success")
	s.logger.Info().
		Int64("commission_id", commissionID).
		Int64("order_item_id", orderItemID).
		Str("status", string(status)).
		Int64("rows", affected).
		Msg("Commission status updated")
	return nil
}

// ensurePayable rejects a move to paid when any targeted commission has a
// zero amount. Rows without an amount are left to the caller.
func (s *CommissionService) ensurePayable(ctx context.Context, commissionID, orderItemID int64) error {
	var targets []*commission.Record
	if commissionID != 0 {
		c, err := s.repo.GetByID(ctx, commissionID)
		if err != nil {
			return err
		}
		if c == nil {
			return domainErrors.ErrCommissionNotFound
		}
		targets = []*commission.Record{c}
	} else {
		var err error
		targets, err = s.repo.List(ctx, commission.ListFilter{OrderItemID: &orderItemID, Limit: maxListLimit})
		if err != nil {
			return err
		}
	}

	for _, c := range targets {
		amount, err := c.AmountValue()
		if err != nil {
			continue
		}
		if commission.IsZeroAmount(amount, s.tolerance) {
			s.logger.Warn().
				Str("commission_id", c.IDString()).
				Str("amount", c.AmountString()).
				Msg("Refusing to mark zero commission paid")
			return domainErrors.NewValidationError("status", "commission "+c.IDString()+" has a zero amount and cannot be paid")
		}
	}
	return nil
}

func statusEvent(commissionID, orderItemID int64, status commission.Status, rows int64, at time.Time) *outbox.Entry {
	eventType := outbox.EventCommissionStatusChanged
	switch status {
	case commission.StatusVoid:
		eventType = outbox.EventCommissionVoided
	case commission.StatusPaid:
		eventType = outbox.EventCommissionPaid
	}

	aggregateID := strconv.FormatInt(commissionID, 10)
	if commissionID == 0 {
		aggregateID = "order_item:" + strconv.FormatInt(orderItemID, 10)
	}

	return outbox.NewEntry("commission", aggregateID, eventType, map[string]any{
		"commission_id": commissionID,
		"order_item_id": orderItemID,
		"status":        string(status),
		"rows":          rows,
		"changed_at":    at.Format(time.RFC3339),
	})
}

func (s *CommissionService) countUpdate(status commission.Status, result string) {
	if s.metrics != nil {
		s.metrics.StatusUpdates.WithLabelValues(string(status), result).Inc()
	}
}
