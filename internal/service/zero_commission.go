package service

import (
	"context"
	"errors"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/domain/order"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

const (
	// ZeroCommissionSource tags the voider's log entries.
	ZeroCommissionSource = "zero-commission-voider"

	// DefaultZeroTolerance is one cent.
	DefaultZeroTolerance = 0.01
)

// CommissionReader loads a full commission row. A miss may be reported as
// either (nil, nil) or domainErrors.ErrCommissionNotFound.
type CommissionReader interface {
	GetByID(ctx context.Context, id int64) (*commission.Record, error)
}

// StatusUpdater moves a commission, or every commission of an order item when
// commissionID is 0, to a new status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, commissionID, orderItemID int64, status commission.Status) error
}

// ZeroCommissionVoider keeps zero-amount commissions out of payouts. It voids
// them in storage and answers not valid to pay. It never returns an error:
// trouble before a zero amount is established leaves the caller's verdict
// untouched, trouble after it still yields false.
type ZeroCommissionVoider struct {
	reader    CommissionReader
	updater   StatusUpdater
	logger    zerolog.Logger
	tolerance float64
	metrics   *observability.Metrics
}

type VoiderOption func(*ZeroCommissionVoider)

// WithZeroTolerance sets the absolute amount below which a commission counts
// as zero. Non-positive values are ignored.
func WithZeroTolerance(tolerance float64) VoiderOption {
	return func(v *ZeroCommissionVoider) {
		if tolerance > 0 {
			v.tolerance = tolerance
		}
	}
}

func WithVoiderMetrics(m *observability.Metrics) VoiderOption {
	return func(v *ZeroCommissionVoider) {
		v.metrics = m
	}
}

func NewZeroCommissionVoider(reader CommissionReader, updater StatusUpdater, logger zerolog.Logger, opts ...VoiderOption) *ZeroCommissionVoider {
	v := &ZeroCommissionVoider{
		reader:    reader,
		updater:   updater,
		logger:    observability.WithSource(logger, ZeroCommissionSource),
		tolerance: DefaultZeroTolerance,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Tolerance returns the zero threshold in use.
func (v *ZeroCommissionVoider) Tolerance() float64 {
	return v.tolerance
}

// Handle decides whether c may be paid. A nil c means the caller did not
// hand over a commission record at all.
func (v *ZeroCommissionVoider) Handle(ctx context.Context, isValid bool, c *commission.Record, o *order.Order) (valid bool) {
	zero := false
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error().Interface("panic", r).Bool("zero_amount", zero).Msg("Recovered while evaluating commission")
			valid = isValid && !zero
		}
	}()

	if c == nil {
		v.logger.Debug().Msg("Commission is not a record, leaving verdict unchanged")
		return isValid
	}

	v.logOrder(o)

	rec := c
	if !c.Complete() {
		rec = v.resolve(ctx, c)
		if rec == nil {
			return isValid
		}
	}

	if rec.Amount == nil || (rec.ID == nil && rec.RawID == "") {
		v.logger.Debug().
			Str("commission_id", rec.IDString()).
			Msg("Commission has no amount or id after lookup, leaving verdict unchanged")
		return isValid
	}

	amount, err := rec.AmountValue()
	if err != nil {
		return isValid
	}
	v.logger.Debug().
		Str("commission_id", rec.IDString()).
		Str("amount", rec.AmountString()).
		Float64("amount_value", amount).
		Msg("Checking commission amount")

	if !commission.IsZeroAmount(amount, v.tolerance) {
		return isValid
	}
	zero = true

	if rec.ID == nil {
		v.countZero("unusable_id")
		v.logger.Warn().
			Str("commission_id", rec.IDString()).
			Str("amount", rec.AmountString()).
			Msg("Zero commission has a non-numeric id, blocking payout without voiding")
		return false
	}

	log := v.logger.With().
		Int64("commission_id", *rec.ID).
		Str("order_id", rec.OrderIDString()).
		Str("amount", rec.AmountString()).
		Str("status", rec.StatusString()).
		Logger()

	if rec.IsVoid() {
		v.countZero("already_void")
		log.Info().Msg("Zero commission already void, blocking payout")
		return false
	}

	if err := v.updater.UpdateStatus(ctx, *rec.ID, 0, commission.StatusVoid); err != nil {
		v.countZero("update_failed")
		log.Error().Err(err).Msg("Failed to void zero commission, blocking payout anyway")
		return false
	}

	v.countZero("voided")
	log.Info().Msg("Voided zero commission")
	return false
}

// resolve re-reads a partially hydrated record. It returns nil when the
// record cannot be completed.
func (v *ZeroCommissionVoider) resolve(ctx context.Context, c *commission.Record) *commission.Record {
	if c.ID == nil {
		v.logger.Warn().
			Str("commission_id", c.IDString()).
			Msg("Partial commission without a numeric id, leaving verdict unchanged")
		return nil
	}

	full, err := v.reader.GetByID(ctx, *c.ID)
	switch {
	case errors.Is(err, domainErrors.ErrCommissionNotFound) || (err == nil && full == nil):
		v.countLookup("not_found")
		v.logger.Warn().Int64("commission_id", *c.ID).Msg("Commission not found in storage, leaving verdict unchanged")
		return nil
	case err != nil:
		v.countLookup("error")
		v.logger.Error().Err(err).Int64("commission_id", *c.ID).Msg("Commission lookup failed, leaving verdict unchanged")
		return nil
	}

	v.countLookup("found")
	return full
}

func (v *ZeroCommissionVoider) logOrder(o *order.Order) {
	if o == nil {
		v.logger.Warn().Msg("Order is not a valid record")
		return
	}
	v.logger.Debug().
		Str("order_id", o.IDString()).
		Str("order_status", o.StatusString()).
		Str("order_total", o.TotalString()).
		Msg("Evaluating commission for order")
}

func (v *ZeroCommissionVoider) countZero(outcome string) {
	if v.metrics != nil {
		v.metrics.ZeroCommissions.WithLabelValues(outcome).Inc()
	}
}

func (v *ZeroCommissionVoider) countLookup(result string) {
	if v.metrics != nil {
		v.metrics.CommissionLookups.WithLabelValues(result).Inc()
	}
}
