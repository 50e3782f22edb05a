package worker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"nestegg/internal/infrastructure/queue"
)

var (
	jobTracer      = otel.Tracer("nestegg/worker")
	jobMeter       = otel.Meter("nestegg/worker")
	jobDuration, _ = jobMeter.Float64Histogram("worker.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _    = jobMeter.Int64Counter("worker.job.total", metric.WithDescription("Jobs executed by queue and status"))
	jobDropped, _  = jobMeter.Int64Counter("worker.job.dropped", metric.WithDescription("Jobs dropped after exhausting retries"))
)

// Subscription binds a queue to its handler. Key, when set, returns a
// serialization key for the message: two messages with the same key
// never run concurrently.
type Subscription struct {
	Queue  string
	Handle func(ctx context.Context, body json.RawMessage) error
	Key    func(body json.RawMessage) string
}

// Consumer runs a pool of goroutines draining the Redis queues. Failed
// jobs go back on their queue until the attempt limit, then get
// dropped with a metric.
type Consumer struct {
	queue       *queue.Queue
	subs        []Subscription
	concurrency int
	maxAttempts int
	jobTimeout  time.Duration
	popTimeout  time.Duration

	inflight keyedLock
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewConsumer(q *queue.Queue, concurrency, maxAttempts int, jobTimeout time.Duration, subs ...Subscription) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		queue:       q,
		subs:        subs,
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		jobTimeout:  jobTimeout,
		popTimeout:  2 * time.Second,
		inflight:    keyedLock{keys: make(map[string]struct{})},
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutines, concurrency per subscription.
func (c *Consumer) Start() {
	for _, sub := range c.subs {
		for i := 1; i <= c.concurrency; i++ {
			c.wg.Add(1)
			go c.worker(i, sub)
		}
	}
	log.Printf("worker consumer started: %d queues x %d workers", len(c.subs), c.concurrency)
}

// Shutdown stops dequeuing and waits for in-flight jobs to finish.
func (c *Consumer) Shutdown() {
	log.Println("worker consumer: shutting down")
	c.cancel()
	c.wg.Wait()
	log.Println("worker consumer: shutdown complete")
}

func (c *Consumer) worker(id int, sub Subscription) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msg, err := c.queue.Dequeue(c.ctx, sub.Queue, c.popTimeout)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			log.Printf("worker %d: dequeue from %s failed: %v", id, sub.Queue, err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue // queue empty
		}

		c.process(id, sub, msg)
	}
}

func (c *Consumer) process(workerID int, sub Subscription, msg *queue.Message) {
	if k := c.serializationKey(sub, msg); k != "" {
		if !c.inflight.tryAcquire(k) {
			// Same entity already being worked on; retry later.
			msg.Attempts--
			if err := c.queue.Requeue(c.ctx, msg); err != nil {
				log.Printf("worker %d: failed to requeue busy message on %s: %v", workerID, msg.Queue, err)
			}
			time.Sleep(100 * time.Millisecond)
			return
		}
		defer c.inflight.release(k)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.queue", msg.Queue),
			attribute.Int("job.attempt", msg.Attempts),
		),
	)
	defer span.End()

	start := time.Now()
	err := sub.Handle(ctx, msg.Body)
	jobDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("queue", msg.Queue)))

	if err == nil {
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", msg.Queue), attribute.String("status", "success")))
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", msg.Queue), attribute.String("status", "error")))
	log.Printf("worker %d: job on %s failed (attempt %d/%d): %v", workerID, msg.Queue, msg.Attempts, c.maxAttempts, err)

	if msg.Attempts >= c.maxAttempts {
		jobDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", msg.Queue)))
		log.Printf("worker %d: dropping message from %s after %d attempts", workerID, msg.Queue, msg.Attempts)
		return
	}
	if err := c.queue.Requeue(c.ctx, msg); err != nil {
		log.Printf("worker %d: failed to requeue message on %s: %v", workerID, msg.Queue, err)
	}
}

func (c *Consumer) serializationKey(sub Subscription, msg *queue.Message) string {
	if sub.Key == nil {
		return ""
	}
	key := sub.Key(msg.Body)
	if key == "" {
		return ""
	}
	return sub.Queue + ":" + key
}

// keyedLock is a set of held keys. tryAcquire is non-blocking.
type keyedLock struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (l *keyedLock) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.keys[key]; held {
		return false
	}
	l.keys[key] = struct{}{}
	return true
}

func (l *keyedLock) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}
