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
	"testing"

	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{
			name:         "simple map",
			status:       http.StatusOK,
			payload:      map[string]string{"message": "hello"},
			expectedBody: `{"message":"hello"}`,
		},
		{
			name:         "validity response",
			status:       http.StatusOK,
			payload:      PayoutValidityResponse{IsValid: false},
			expectedBody: `{"is_valid":false}`,
		},
		{
			name:         "error response",
			status:       http.StatusBadRequest,
			payload:      ErrorResponse{Error: "bad request", Code: "invalid_input"},
			expectedBody: `{"error":"bad request","code":"invalid_input"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeJSON(rec, tt.status, tt.payload)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
	}{
		{"commission not found", domainErrors.ErrCommissionNotFound, http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("get: %w", domainErrors.ErrCommissionNotFound), http.StatusNotFound, "not_found"},
		{"order not found", domainErrors.ErrOrderNotFound, http.StatusNotFound, "not_found"},
		{"invalid id", domainErrors.ErrInvalidCommissionID, http.StatusBadRequest, "invalid_id"},
		{"invalid amount", domainErrors.NewDomainError("INVALID_AMOUNT", "bad amount", domainErrors.ErrInvalidAmount), http.StatusBadRequest, "invalid_amount"},
		{"invalid status", domainErrors.NewDomainError("invalid_status", "bad status", domainErrors.ErrInvalidStatus), http.StatusBadRequest, "invalid_status"},
		{"storage unavailable", fmt.Errorf("%w: circuit breaker is open", domainErrors.ErrStorageUnavailable), http.StatusServiceUnavailable, "storage_unavailable"},
		{"validation", domainErrors.NewValidationError("status", "bad"), http.StatusBadRequest, "validation_error"},
		{"unmapped domain error", domainErrors.NewDomainError("SOMETHING", "odd", nil), http.StatusUnprocessableEntity, "SOMETHING"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.expectedCode, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedBody, resp.Code)
		})
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: password authentication failed"))

	assert.NotContains(t, rec.Body.String(), "password")
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"status":"void"}`, ""},
		{"invalid json", `{"status":`, "invalid JSON"},
		{"missing field", `{}`, "required"},
		{"unknown status", `{"status":"cancelled"}`, "oneof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst UpdateStatusRequest
			err := decodeAndValidate(rec, req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "void", dst.Status)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeAndValidate_BodyTooLarge(t *testing.T) {
	body := bytes.Repeat([]byte("a"), maxRequestBody+1)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(append([]byte(`{"status":"`), body...)))
	rec := httptest.NewRecorder()

	var dst UpdateStatusRequest
	assert.Error(t, decodeAndValidate(rec, req, &dst))
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			id, err := pathID(req, "id")
			if tt.wantErr {
				assert.ErrorIs(t, err, domainErrors.ErrInvalidCommissionID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}
