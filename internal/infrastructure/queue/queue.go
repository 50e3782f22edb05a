package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Queue names. Every message on a queue is the JSON envelope below.
const (
	AccountSync    = "account-sync"
	RunningBalance = "calculate-running-balance"
)

var (
	queueMeter     = otel.Meter("nestegg/queue")
	msgEnqueued, _ = queueMeter.Int64Counter("queue.message.enqueued", metric.WithDescription("Messages pushed per queue"))
	msgDequeued, _ = queueMeter.Int64Counter("queue.message.dequeued", metric.WithDescription("Messages popped per queue"))
	msgRequeued, _ = queueMeter.Int64Counter("queue.message.requeued", metric.WithDescription("Messages pushed back after a failed attempt"))
)

// Message is one dequeued unit of work. Attempts counts deliveries so
// far, so a freshly enqueued message arrives with Attempts == 1.
type Message struct {
	Queue    string
	Attempts int
	Body     json.RawMessage
}

type envelope struct {
	Attempts int             `json:"attempts"`
	Body     json.RawMessage `json:"body"`
}

// Queue is a Redis-list backed work queue. Delivery is at-least-once:
// a message popped by a crashing worker is lost only if the crash
// happens mid-handling, and handlers are written to be idempotent.
type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue marshals the payload and pushes it onto the named queue.
func (q *Queue) Enqueue(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", queue, err)
	}
	return q.push(ctx, queue, envelope{Attempts: 0, Body: body})
}

// Dequeue blocks up to timeout for the next message. Returns nil, nil
// when the timeout elapses with the queue empty.
func (q *Queue) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Message, error) {
	res, err := q.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from %s: %w", queue, err)
	}
	// BRPop returns [key, value].
	var env envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return nil, fmt.Errorf("malformed message on %s: %w", queue, err)
	}

	msgDequeued.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
	return &Message{Queue: queue, Attempts: env.Attempts + 1, Body: env.Body}, nil
}

// Requeue pushes a failed message back with its attempt count kept, so
// the retry limit holds across deliveries.
func (q *Queue) Requeue(ctx context.Context, msg *Message) error {
	msgRequeued.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", msg.Queue)))
	return q.push(ctx, msg.Queue, envelope{Attempts: msg.Attempts, Body: msg.Body})
}

// Depth returns the number of waiting messages.
func (q *Queue) Depth(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, queue).Result()
}

func (q *Queue) push(ctx context.Context, queue string, env envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope for %s: %w", queue, err)
	}
	if err := q.client.LPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", queue, err)
	}
	msgEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
	return nil
}
