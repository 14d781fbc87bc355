package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/domain/order"
	infraRedis "github.com/cassiomorais/commissions/internal/infrastructure/redis"
	"github.com/cassiomorais/commissions/internal/service"
)

// CommissionService is the commission read/write surface the controller needs.
type CommissionService interface {
	Create(ctx context.Context, c *commission.Record) error
	Get(ctx context.Context, id int64) (*commission.Record, error)
	List(ctx context.Context, filter commission.ListFilter) ([]*commission.Record, error)
	UpdateStatus(ctx context.Context, commissionID, orderItemID int64, status commission.Status) error
}

// PayoutEvaluator runs the payout validity chain.
type PayoutEvaluator interface {
	Evaluate(ctx context.Context, source string, isValid bool, c *commission.Record, o *order.Order) bool
}

// EvaluationPublisher queues an asynchronous evaluation.
type EvaluationPublisher interface {
	PublishEvaluationRequest(ctx context.Context, req infraRedis.EvaluationRequest) (string, error)
}

// CommissionController handles commission-related HTTP requests.
type CommissionController struct {
	commissions CommissionService
	evaluator   PayoutEvaluator
	publisher   EvaluationPublisher
}

// NewCommissionController creates a new CommissionController. publisher may be
// nil, in which case asynchronous evaluation is unavailable.
func NewCommissionController(
	commissions CommissionService,
	evaluator PayoutEvaluator,
	publisher EvaluationPublisher,
) *CommissionController {
	return &CommissionController{
		commissions: commissions,
		evaluator:   evaluator,
		publisher:   publisher,
	}
}

// EvaluatePayoutValidity handles POST /api/v1/commissions/payout-validity
func (h *CommissionController) EvaluatePayoutValidity(w http.ResponseWriter, r *http.Request) {
	var req PayoutValidityRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := commission.DecodeRecord(req.Commission)
	if err != nil && !errors.Is(err, domainErrors.ErrNotACommissionRecord) {
		writeError(w, err)
		return
	}
	o, err := order.Decode(req.Order)
	if err != nil && !errors.Is(err, domainErrors.ErrNotAnOrderRecord) {
		writeError(w, err)
		return
	}

	valid := h.evaluator.Evaluate(r.Context(), service.SourceHTTP, *req.IsValid, c, o)
	writeJSON(w, http.StatusOK, PayoutValidityResponse{IsValid: valid})
}

// CreateCommission handles POST /api/v1/commissions
func (h *CommissionController) CreateCommission(w http.ResponseWriter, r *http.Request) {
	var req CreateCommissionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c := req.toRecord()
	if err := h.commissions.Create(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommissionResponse(c))
}

// GetCommission handles GET /api/v1/commissions/{id}
func (h *CommissionController) GetCommission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := h.commissions.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionResponse(c))
}

// ListCommissions handles GET /api/v1/commissions
func (h *CommissionController) ListCommissions(w http.ResponseWriter, r *http.Request) {
	var filter commission.ListFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := commission.ParseStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Status = &st
	}

	ints := map[string]**int64{"order_id": &filter.OrderID, "vendor_id": &filter.VendorID}
	for name, dst := range ints {
		v, err := queryInt(r, name)
		if err != nil {
			writeError(w, err)
			return
		}
		*dst = v
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	if limit != nil {
		filter.Limit = int(*limit)
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}
	if offset != nil {
		filter.Offset = int(*offset)
	}

	records, err := h.commissions.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ListCommissionsResponse{
		Commissions: make([]CommissionResponse, 0, len(records)),
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	for _, c := range records {
		resp.Commissions = append(resp.Commissions, toCommissionResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles POST /api/v1/commissions/{id}/status
func (h *CommissionController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateStatusRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.commissions.UpdateStatus(r.Context(), id, 0, commission.Status(req.Status)); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.commissions.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionResponse(c))
}

// EnqueueEvaluation handles POST /api/v1/commissions/{id}/evaluate
func (h *CommissionController) EnqueueEvaluation(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "evaluation queue not configured", Code: "unavailable"})
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	isValid := true
	if r.ContentLength != 0 {
		var req EvaluateRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.IsValid != nil {
			isValid = *req.IsValid
		}
	}

	messageID, err := h.publisher.PublishEvaluationRequest(r.Context(), infraRedis.EvaluationRequest{
		CommissionID: id,
		IsValid:      isValid,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EvaluationQueuedResponse{
		CommissionID: id,
		MessageID:    messageID,
		Status:       "queued",
	})
}
