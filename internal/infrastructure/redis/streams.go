package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/domain/outbox"
	"github.com/cassiomorais/commissions/pkg/retry"
	"github.com/redis/go-redis/v9"
)

const (
	EvaluationStream = "commissions:evaluation"
	EventStream      = "commissions:events"
	DLQStream        = "commissions:dlq"
)

// EvaluationRequest asks the worker to run the payout validity chain for one
// commission. IsValid is the verdict of whatever ran before us, true if absent.
type EvaluationRequest struct {
	CommissionID int64
	IsValid      bool
}

// ParseEvaluationRequest reads a stream message's values. A missing or
// non-numeric commission_id is an input error; the message belongs on the DLQ.
func ParseEvaluationRequest(values map[string]any) (EvaluationRequest, error) {
	raw := strings.TrimSpace(fmt.Sprint(values["commission_id"]))
	if _, ok := values["commission_id"]; !ok || raw == "" {
		return EvaluationRequest{}, domainErrors.NewValidationError("commission_id", "is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return EvaluationRequest{}, domainErrors.NewValidationError("commission_id", "must be a positive integer")
	}

	req := EvaluationRequest{CommissionID: id, IsValid: true}
	if v, ok := values["is_valid"]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(fmt.Sprint(v)))
		if err != nil {
			return EvaluationRequest{}, domainErrors.NewValidationError("is_valid", "must be a boolean")
		}
		req.IsValid = b
	}
	return req, nil
}

type StreamProducer struct {
	client *redis.Client
}

var publishRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     500 * time.Millisecond,
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client}
}

// PublishEvent relays one outbox entry to the event stream.
func (p *StreamProducer) PublishEvent(ctx context.Context, entry *outbox.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: EventStream,
		Values: map[string]any{
			"event_id":       entry.ID.String(),
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
			"payload":        string(payload),
			"timestamp":      time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s event: %w", entry.EventType, err)
	}
	return nil
}

// PublishEvaluationRequest enqueues a commission for asynchronous evaluation
// and returns the stream message ID. Transient Redis errors are retried.
func (p *StreamProducer) PublishEvaluationRequest(ctx context.Context, req EvaluationRequest) (string, error) {
	id, err := retry.DoWithResult(ctx, publishRetry, func() (string, error) {
		return p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: EvaluationStream,
			Values: map[string]any{
				"commission_id": strconv.FormatInt(req.CommissionID, 10),
				"is_valid":      strconv.FormatBool(req.IsValid),
			},
		}).Result()
	})
	if err != nil {
		return "", fmt.Errorf("publish evaluation request: %w", err)
	}
	return id, nil
}

// PublishToDLQ parks a message the worker could not handle.
func (p *StreamProducer) PublishToDLQ(ctx context.Context, messageID string, reason string, original map[string]any) error {
	payload, err := json.Marshal(original)
	if err != nil {
		return fmt.Errorf("marshal DLQ data: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DLQStream,
		Values: map[string]any{
			"message_id": messageID,
			"reason":     reason,
			"payload":    string(payload),
			"timestamp":  time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to DLQ: %w", err)
	}
	return nil
}

// StreamConsumer reads one stream as a member of a consumer group.
type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) Stream() string {
	return c.stream
}

// CreateGroup creates the stream and group, tolerating an existing group.
func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Read blocks for up to the configured duration and returns new messages.
func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read from %s: %w", c.stream, err)
	}

	var messages []redis.XMessage
	for _, s := range streams {
		messages = append(messages, s.Messages...)
	}
	return messages, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", messageID, err)
	}
	return nil
}

// ClaimStale takes over messages another consumer read but never acked.
func (c *StreamConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim stale messages: %w", err)
	}
	return messages, nil
}
