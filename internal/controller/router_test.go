package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	"github.com/cassiomorais/commissions/internal/infrastructure/config"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	"github.com/cassiomorais/commissions/internal/service"
	"github.com/cassiomorais/commissions/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerSecret = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T, secret string, db Pinger) (http.Handler, *testutil.MockCommissionRepository, *testutil.MockIdempotencyStore) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	repo := testutil.NewMockCommissionRepository()
	store := testutil.NewMockIdempotencyStore()

	commissions := service.NewCommissionService(repo, &testutil.MockOutboxRepository{}, testutil.NewMockTransactionManager(), zerolog.Nop(), metrics)
	chain := service.NewValidityChain()
	chain.Register("zero-commission", service.VoiderPriority, service.NewZeroCommissionVoider(repo, commissions, zerolog.Nop()))

	r := NewRouter(RouterDeps{
		ServiceName:       "commissions-test",
		Database:          db,
		CommissionService: commissions,
		Evaluator:         service.NewPayoutValidityService(chain, testutil.NewMockOrderRepository(), zerolog.Nop(), metrics),
		Publisher:         &fakePublisher{},
		IdempotencyStore:  store,
		IdempotencyTTL:    time.Hour,
		Metrics:           metrics,
		Gatherer:          reg,
		Logger:            zerolog.Nop(),
		ServerConfig:      config.ServerConfig{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}},
		JWTSecret:         secret,
	})
	return r, repo, store
}

func TestRouter_Health(t *testing.T) {
	r, _, _ := newTestRouter(t, "", nil)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"), path)
	}
}

func TestRouter_ReadinessFailsWhenDatabaseDown(t *testing.T) {
	r, _, _ := newTestRouter(t, "", PingFunc(func(ctx context.Context) error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database unavailable")
}

func TestRouter_MetricsExposed(t *testing.T) {
	r, _, _ := newTestRouter(t, "", nil)

	body := `{"is_valid":true,"commission":{"id":43,"total_commission_amount":"1.00","commission_status":"unpaid"}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/commissions/payout-validity", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_validity_evaluations_total")
	assert.Contains(t, rec.Body.String(), `path="/api/v1/commissions/payout-validity"`)
}

func TestRouter_StatusRequiresOperator(t *testing.T) {
	r, repo, _ := newTestRouter(t, routerSecret, nil)
	repo.AddCommission(testutil.NewTestCommission(42, "0.00", commission.StatusPending))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/commissions/42/status", strings.NewReader(`{"status":"void"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.Updates())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/commissions", strings.NewReader(`{"total_commission_amount":"1.00"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// reads stay public
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/commissions/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_StatusIsIdempotent(t *testing.T) {
	r, repo, store := newTestRouter(t, "", nil)
	repo.AddCommission(testutil.NewTestCommission(42, "0.00", commission.StatusPending))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/commissions/42/status", strings.NewReader(`{"status":"void"}`))
		req.Header.Set("Idempotency-Key", "void-42")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusOK, first.Code)
	second := send()
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Len(t, repo.Updates(), 1)
	assert.Equal(t, 1, store.Len())
}
