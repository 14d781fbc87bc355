package service

import (
	"context"
	"testing"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	"github.com/cassiomorais/commissions/internal/domain/order"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	"github.com/cassiomorais/commissions/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPayoutValidity(t *testing.T) (*PayoutValidityService, *testutil.MockCommissionRepository, *testutil.MockOrderRepository, *testutil.MockStatusUpdater, *observability.Metrics) {
	t.Helper()
	repo := testutil.NewMockCommissionRepository()
	orders := testutil.NewMockOrderRepository()
	updater := &testutil.MockStatusUpdater{}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	chain := NewValidityChain()
	chain.Register("zero-commission", VoiderPriority, NewZeroCommissionVoider(repo, updater, zerolog.Nop()))

	return NewPayoutValidityService(chain, orders, zerolog.Nop(), metrics), repo, orders, updater, metrics
}

func TestPayoutValidity_Evaluate(t *testing.T) {
	svc, _, _, updater, metrics := setupPayoutValidity(t)
	ctx := context.Background()

	assert.False(t, svc.Evaluate(ctx, SourceHTTP, true, testutil.NewTestCommission(42, "0.00", commission.StatusPending), nil))
	assert.True(t, svc.Evaluate(ctx, SourceHTTP, true, testutil.NewTestCommission(43, "15.50", commission.StatusPending), nil))

	assert.Len(t, updater.Calls(), 1)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ValidityEvaluations.WithLabelValues(SourceHTTP, "invalid")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ValidityEvaluations.WithLabelValues(SourceHTTP, "valid")))
}

func TestPayoutValidity_EvaluateByID(t *testing.T) {
	svc, repo, _, updater, metrics := setupPayoutValidity(t)
	repo.AddCommission(testutil.NewTestCommission(42, "0.00", commission.StatusPending))

	assert.False(t, svc.EvaluateByID(context.Background(), SourceWorker, 42, true))
	assert.True(t, svc.EvaluateByID(context.Background(), SourceWorker, 404, true))

	require.Len(t, updater.Calls(), 1)
	assert.Equal(t, int64(42), updater.Calls()[0].CommissionID)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ValidityEvaluations.WithLabelValues(SourceWorker, "valid")))
}

func TestPayoutValidity_LoadsMissingOrder(t *testing.T) {
	svc, _, orders, _, _ := setupPayoutValidity(t)
	orders.AddOrder(testutil.NewTestOrder(7, "completed", "120.00"))

	var seen *order.Order
	svc.chain.Register("observer", 10, ValidityFilterFunc(func(ctx context.Context, isValid bool, c *commission.Record, o *order.Order) bool {
		seen = o
		return isValid
	}))

	c := testutil.NewTestCommission(43, "15.50", commission.StatusPending)
	c.OrderID = testutil.Int64Ptr(7)
	assert.True(t, svc.Evaluate(context.Background(), SourceHTTP, true, c, nil))
	require.NotNil(t, seen)
	assert.Equal(t, "completed", seen.Status)

	c.OrderID = testutil.Int64Ptr(8)
	seen = nil
	assert.True(t, svc.Evaluate(context.Background(), SourceHTTP, true, c, nil))
	assert.Nil(t, seen)
}
