package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Event types written alongside commission writes.
const (
	EventCommissionCreated       = "commission.created"
	EventCommissionVoided        = "commission.voided"
	EventCommissionPaid          = "commission.paid"
	EventCommissionStatusChanged = "commission.status_changed"
)

// Entry is a transactional outbox row relayed to the event stream by the worker.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID string, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    5,
		CreatedAt:     time.Now(),
	}
}

// Exhausted reports whether another publish failure would mark the entry failed.
func (e *Entry) Exhausted() bool {
	return e.RetryCount+1 >= e.MaxRetries
}
