package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nearwave/geocampaign/pkg/redis"
)

// Stream field names. Metadata entries are stored flattened under metaPrefix
// so one XAdd carries the whole message.
const (
	fieldData      = "data"
	fieldTimestamp = "timestamp"
	fieldAttempts  = "attempts"
	metaPrefix     = "meta_"
)

type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
	acked     bool
	nacked    bool
	queue     *Queue
}

// Ack marks the message as successfully processed.
func (m *Message) Ack() error {
	if m.acked {
		return fmt.Errorf("message already acknowledged")
	}
	if m.nacked {
		return fmt.Errorf("message already rejected")
	}
	m.acked = true
	return m.queue.ack(m.ID)
}

// Nack leaves the message pending so it will be reclaimed and retried.
func (m *Message) Nack() error {
	if m.acked {
		return fmt.Errorf("message already acknowledged")
	}
	if m.nacked {
		return fmt.Errorf("message already rejected")
	}
	m.nacked = true
	return nil
}

// MessageHandler processes one queue message. Returning nil acks the
// message; returning an error leaves it pending for retry.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

func (c *QueueConfig) normalize() error {
	if c.Name == "" {
		return fmt.Errorf("queue name is required")
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "default-group"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	return nil
}

// Queue is a redis-streams backed work queue with consumer groups, a
// visibility timeout for crashed consumers, and an optional dead letter
// stream for messages that exhaust their retries.
type Queue struct {
	adapter redis.RedisAdapter
	config  QueueConfig
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.RWMutex
	inFlight map[string]*Message
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
}

func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter:  adapter,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]*Message),
	}

	// BUSYGROUP when the group already exists, which is fine.
	_ = q.adapter.XGroupCreateMkStream(q.config.Name, q.config.ConsumerGroup, "0")

	return q, nil
}

// Publish adds a message to the stream.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		fieldData:      string(data),
		fieldTimestamp: time.Now().Unix(),
		fieldAttempts:  0,
	}
	for k, v := range metadata {
		values[metaPrefix+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}
	return id, nil
}

// PublishJSON publishes a JSON-encoded message.
func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, payload, metadata)
}

// Consume starts the polling loop feeding handler.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)
	go q.loop()
	return nil
}

func (q *Queue) loop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.pollNew()
			q.reclaimIdle()
		}
	}
}

func (q *Queue) pollNew() {
	entries, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		return
	}

	for _, entry := range entries {
		q.dispatch(q.decode(entry))
	}
}

// reclaimIdle takes over entries that sat pending beyond the visibility
// timeout, e.g. after a consumer crash. Each reclaim counts as an attempt.
func (q *Queue) reclaimIdle() {
	summary, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || summary == nil || summary.Count == 0 {
		return
	}

	pending, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil {
		return
	}

	var stuck []string
	for _, p := range pending {
		if p.Idle >= q.config.VisibilityTimeout {
			stuck = append(stuck, p.ID)
		}
	}
	if len(stuck) == 0 {
		return
	}

	entries, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		stuck...,
	)
	if err != nil {
		return
	}

	for _, entry := range entries {
		msg := q.decode(entry)
		msg.Attempts++
		q.dispatch(msg)
	}
}

func (q *Queue) dispatch(msg *Message) {
	q.mu.Lock()
	q.inFlight[msg.ID] = msg
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.inFlight, msg.ID)
		q.mu.Unlock()
	}()

	if msg.Attempts >= q.config.MaxRetries {
		q.deadLetter(msg)
		q.ack(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		// Not acked; the entry stays pending and will be reclaimed.
		return
	}
	q.ack(msg.ID)
}

func (q *Queue) ack(id string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, id)
}

func (q *Queue) deadLetter(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		fieldData:        string(msg.Data),
		fieldAttempts:    msg.Attempts,
		"original_id":    msg.ID,
		"original_queue": q.config.Name,
		"failed_at":      time.Now().Unix(),
	}
	for k, v := range msg.Metadata {
		values[metaPrefix+k] = v
	}

	_, _ = q.adapter.XAdd(q.config.Name+":dlq", values)
}

func (q *Queue) decode(entry redis.StreamMessage) *Message {
	msg := &Message{
		ID:       entry.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}

	for k, v := range entry.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case fieldData:
			msg.Data = []byte(s)
		case fieldTimestamp:
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				msg.Timestamp = time.Unix(unix, 0)
			}
		case fieldAttempts:
			if n, err := strconv.Atoi(s); err == nil {
				msg.Attempts = n
			}
		default:
			if len(k) > len(metaPrefix) && k[:len(metaPrefix)] == metaPrefix {
				msg.Metadata[k[len(metaPrefix):]] = s
			}
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

// Stop cancels the consume loop and waits for in-flight handlers.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*QueueStats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{TotalMessages: total}
	if summary, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && summary != nil {
		stats.PendingMessages = summary.Count
		stats.ConsumerCount = int64(len(summary.Consumers))
	}
	return stats, nil
}
