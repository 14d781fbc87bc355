package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/commissions/internal/infrastructure/redis"
	"github.com/cassiomorais/commissions/internal/service"
	"github.com/cassiomorais/commissions/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []infraRedis.EvaluationRequest
}

func (p *fakePublisher) PublishEvaluationRequest(ctx context.Context, req infraRedis.EvaluationRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, req)
	return fmt.Sprintf("%d-0", len(p.sent)), nil
}

type controllerFixture struct {
	repo      *testutil.MockCommissionRepository
	outbox    *testutil.MockOutboxRepository
	publisher *fakePublisher
	router    http.Handler
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		repo:      testutil.NewMockCommissionRepository(),
		outbox:    &testutil.MockOutboxRepository{},
		publisher: &fakePublisher{},
	}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	commissions := service.NewCommissionService(f.repo, f.outbox, testutil.NewMockTransactionManager(), zerolog.Nop(), metrics)
	chain := service.NewValidityChain()
	chain.Register("zero-commission", service.VoiderPriority,
		service.NewZeroCommissionVoider(f.repo, commissions, zerolog.Nop(), service.WithVoiderMetrics(metrics)))
	evaluator := service.NewPayoutValidityService(chain, testutil.NewMockOrderRepository(), zerolog.Nop(), metrics)

	h := NewCommissionController(commissions, evaluator, f.publisher)
	r := chi.NewRouter()
	r.Post("/api/v1/commissions/payout-validity", h.EvaluatePayoutValidity)
	r.Get("/api/v1/commissions", h.ListCommissions)
	r.Post("/api/v1/commissions", h.CreateCommission)
	r.Get("/api/v1/commissions/{id}", h.GetCommission)
	r.Post("/api/v1/commissions/{id}/status", h.UpdateStatus)
	r.Post("/api/v1/commissions/{id}/evaluate", h.EnqueueEvaluation)
	f.router = r
	return f
}

func (f *controllerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeValidity(t *testing.T, rec *httptest.ResponseRecorder) bool {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PayoutValidityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.IsValid
}

func TestCommissionController_EvaluatePayoutValidity(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      bool
		wantVoids int
	}{
		{
			name:      "zero commission is voided",
			body:      `{"is_valid":true,"commission":{"id":42,"order_id":7,"total_commission_amount":"0.00","commission_status":"pending"}}`,
			want:      false,
			wantVoids: 1,
		},
		{
			name: "positive commission passes",
			body: `{"is_valid":true,"commission":{"id":43,"total_commission_amount":"15.50","commission_status":"pending"}}`,
			want: true,
		},
		{
			name: "prior false verdict is kept",
			body: `{"is_valid":false,"commission":{"id":43,"total_commission_amount":"15.50","commission_status":"pending"}}`,
			want: false,
		},
		{
			name: "non-record commission passes through",
			body: `{"is_valid":true,"commission":"not-a-record"}`,
			want: true,
		},
		{
			name: "missing commission passes through",
			body: `{"is_valid":true}`,
			want: true,
		},
		{
			name:      "partial record resolved from storage",
			body:      `{"is_valid":true,"commission":{"id":"42"},"order":{"id":7,"status":"completed","total":"120.00"}}`,
			want:      false,
			wantVoids: 1,
		},
		{
			name: "already void returns false without update",
			body: `{"is_valid":true,"commission":{"id":44,"total_commission_amount":"0","commission_status":"void"}}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t)
			f.repo.AddCommission(testutil.NewTestCommission(42, "0.00", commission.StatusPending))
			f.repo.AddCommission(testutil.NewTestCommission(43, "15.50", commission.StatusPending))

			rec := f.do(http.MethodPost, "/api/v1/commissions/payout-validity", tt.body)

			assert.Equal(t, tt.want, decodeValidity(t, rec))
			assert.Len(t, f.repo.Updates(), tt.wantVoids)
			for _, u := range f.repo.Updates() {
				assert.Equal(t, commission.StatusVoid, u.Status)
				assert.Equal(t, int64(42), u.CommissionID)
			}
		})
	}
}

func TestCommissionController_EvaluatePayoutValidity_BadRequest(t *testing.T) {
	f := newControllerFixture(t)

	for _, body := range []string{`{"commission":{"id":1}}`, `not json`} {
		rec := f.do(http.MethodPost, "/api/v1/commissions/payout-validity", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestCommissionController_GetCommission(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.AddCommission(testutil.NewTestCommission(5, "12.3400", commission.StatusUnpaid))

	rec := f.do(http.MethodGet, "/api/v1/commissions/5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CommissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(5), resp.ID)
	require.NotNil(t, resp.TotalCommissionAmount)
	assert.Equal(t, "12.3400", *resp.TotalCommissionAmount)
	require.NotNil(t, resp.CommissionStatus)
	assert.Equal(t, "unpaid", *resp.CommissionStatus)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/commissions/6", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/commissions/abc", "").Code)
}

func TestCommissionController_GetCommission_NullFields(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.AddCommission(testutil.NewPartialCommission(9))

	rec := f.do(http.MethodGet, "/api/v1/commissions/9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_commission_amount":null`)
	assert.Contains(t, rec.Body.String(), `"commission_status":null`)
}

func TestCommissionController_ListCommissions(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.AddCommission(testutil.NewTestCommission(1, "0.00", commission.StatusVoid))
	f.repo.AddCommission(testutil.NewTestCommission(2, "5.00", commission.StatusUnpaid))
	f.repo.AddCommission(testutil.NewTestCommission(3, "6.00", commission.StatusUnpaid))

	rec := f.do(http.MethodGet, "/api/v1/commissions?status=unpaid&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListCommissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Commissions, 1)
	assert.Equal(t, int64(2), resp.Commissions[0].ID)
	assert.Equal(t, 1, resp.Limit)

	rec = f.do(http.MethodGet, "/api/v1/commissions?vendor_id=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Commissions, 3)
}

func TestCommissionController_ListCommissions_BadQuery(t *testing.T) {
	f := newControllerFixture(t)

	for _, q := range []string{"status=refunded", "limit=ten", "order_id=x"} {
		rec := f.do(http.MethodGet, "/api/v1/commissions?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec := f.do(http.MethodGet, "/api/v1/commissions?status=refunded", "")
	assert.Contains(t, rec.Body.String(), `"code":"invalid_status"`)
}

func TestCommissionController_UpdateStatus(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.AddCommission(testutil.NewTestCommission(42, "0.00", commission.StatusPending))

	rec := f.do(http.MethodPost, "/api/v1/commissions/42/status", `{"status":"void"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CommissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "void", *resp.CommissionStatus)
	assert.Len(t, f.outbox.Inserted(), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/commissions/42/status", `{"status":"refunded"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/v1/commissions/404/status", `{"status":"void"}`).Code)
}

func TestCommissionController_UpdateStatus_ZeroCannotBePaid(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.AddCommission(testutil.NewTestCommission(42, "0.00", commission.StatusPending))

	rec := f.do(http.MethodPost, "/api/v1/commissions/42/status", `{"status":"paid"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"code":"validation_error"`)

	c, err := f.repo.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, commission.StatusPending, *c.Status)
	assert.Empty(t, f.outbox.Inserted())
}

func TestCommissionController_CreateCommission(t *testing.T) {
	f := newControllerFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/commissions", `{"order_id":7,"vendor_id":3,"total_commission_amount":"12.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CommissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.ID)
	assert.Equal(t, "12.50", *resp.TotalCommissionAmount)
	assert.Equal(t, "unpaid", *resp.CommissionStatus)
	assert.Len(t, f.outbox.Inserted(), 1)
}

func TestCommissionController_CreateCommission_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing amount", `{"order_id":7}`, "validation_error"},
		{"unknown status", `{"total_commission_amount":"1.00","commission_status":"refunded"}`, "validation_error"},
		{"negative order", `{"order_id":-1,"total_commission_amount":"1.00"}`, "validation_error"},
		{"zero paid", `{"total_commission_amount":"0.00","commission_status":"paid"}`, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t)
			rec := f.do(http.MethodPost, "/api/v1/commissions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"code":"`+tt.code+`"`)
			assert.Empty(t, f.outbox.Inserted())
		})
	}
}

func TestCommissionController_CreateCommission_InvalidAmount(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.CreateFunc = func(ctx context.Context, c *commission.Record) error {
		return domainErrors.NewDomainError("invalid_amount", "too many fractional digits", domainErrors.ErrInvalidAmount)
	}

	rec := f.do(http.MethodPost, "/api/v1/commissions", `{"total_commission_amount":"1.00001"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_amount"`)
}

func TestCommissionController_EnqueueEvaluation(t *testing.T) {
	f := newControllerFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/commissions/42/evaluate", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var queued EvaluationQueuedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))
	assert.Equal(t, EvaluationQueuedResponse{CommissionID: 42, MessageID: "1-0", Status: "queued"}, queued)

	rec = f.do(http.MethodPost, "/api/v1/commissions/43/evaluate", `{"is_valid":false}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.publisher.sent, 2)
	assert.Equal(t, infraRedis.EvaluationRequest{CommissionID: 42, IsValid: true}, f.publisher.sent[0])
	assert.Equal(t, infraRedis.EvaluationRequest{CommissionID: 43, IsValid: false}, f.publisher.sent[1])
}

func TestCommissionController_EnqueueEvaluation_PublishFails(t *testing.T) {
	f := newControllerFixture(t)
	f.publisher.err = errors.New("redis down")

	rec := f.do(http.MethodPost, "/api/v1/commissions/42/evaluate", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "redis down"))
}

func TestCommissionController_EnqueueEvaluation_NoPublisher(t *testing.T) {
	h := NewCommissionController(nil, nil, nil)
	rec := httptest.NewRecorder()
	h.EnqueueEvaluation(rec, httptest.NewRequest(http.MethodPost, "/api/v1/commissions/1/evaluate", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
