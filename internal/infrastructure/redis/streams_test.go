package redis

import (
	"testing"

	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluationRequest(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    EvaluationRequest
		wantErr bool
	}{
		{
			name:   "id and verdict",
			values: map[string]any{"commission_id": "42", "is_valid": "false"},
			want:   EvaluationRequest{CommissionID: 42, IsValid: false},
		},
		{
			name:   "verdict defaults to valid",
			values: map[string]any{"commission_id": "43"},
			want:   EvaluationRequest{CommissionID: 43, IsValid: true},
		},
		{
			name:   "padded id",
			values: map[string]any{"commission_id": " 7 ", "is_valid": "1"},
			want:   EvaluationRequest{CommissionID: 7, IsValid: true},
		},
		{name: "missing id", values: map[string]any{"is_valid": "true"}, wantErr: true},
		{name: "empty id", values: map[string]any{"commission_id": ""}, wantErr: true},
		{name: "non-numeric id", values: map[string]any{"commission_id": "abc"}, wantErr: true},
		{name: "zero id", values: map[string]any{"commission_id": "0"}, wantErr: true},
		{name: "bad verdict", values: map[string]any{"commission_id": "42", "is_valid": "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvaluationRequest(tt.values)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommissionLockName(t *testing.T) {
	assert.Equal(t, "commission:42", CommissionLockName(42))
}

func TestLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	l := NewLock(nil, CommissionLockName(1), 0)
	assert.False(t, l.Held())
	assert.NoError(t, l.Release(t.Context()))
	assert.ErrorIs(t, l.Refresh(t.Context()), domainErrors.ErrLockNotHeld)
}
