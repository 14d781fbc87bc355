package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	payload := map[string]any{
		"commission_id": int64(42),
		"status":        "void",
	}

	entry := NewEntry("commission", "42", EventCommissionVoided, payload)

	require.NotNil(t, entry)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "commission", entry.AggregateType)
	assert.Equal(t, "42", entry.AggregateID)
	assert.Equal(t, EventCommissionVoided, entry.EventType)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, 5, entry.MaxRetries)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Nil(t, entry.PublishedAt)
}

func TestNewEntry_UniqueIDs(t *testing.T) {
	a := NewEntry("commission", "42", EventCommissionPaid, nil)
	b := NewEntry("commission", "42", EventCommissionPaid, nil)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.AggregateID, b.AggregateID)
}

func TestEntry_Exhausted(t *testing.T) {
	e := NewEntry("commission", "1", EventCommissionStatusChanged, nil)
	assert.False(t, e.Exhausted())

	e.RetryCount = 3
	assert.False(t, e.Exhausted())

	e.RetryCount = 4
	assert.True(t, e.Exhausted())
}

func TestStatus_Constants(t *testing.T) {
	assert.Equal(t, Status("pending"), StatusPending)
	assert.Equal(t, Status("published"), StatusPublished)
	assert.Equal(t, Status("failed"), StatusFailed)
}
