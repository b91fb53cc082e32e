package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedHandler struct {
	topic string
	fails int
	err   error
	mu    sync.Mutex
	calls int
}

func (h *scriptedHandler) Topic() string { return h.topic }

func (h *scriptedHandler) Handle(context.Context, []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.fails {
		if h.err != nil {
			return h.err
		}
		return errors.New("transient")
	}
	return nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (r *recorder) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recorder) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return r.CommitMessages(ctx, msgs...)
}

func newTestConsumer(t *testing.T, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(nil, opts...)
	require.NoError(t, err)
	return c
}

func TestProcessRetriesThenCommits(t *testing.T) {
	c := newTestConsumer(t)
	h := &scriptedHandler{topic: "requests", fails: 2}
	c.RegisterHandler(h)

	commits := &recorder{}
	c.process(kafka.Message{Topic: "requests", Value: []byte("{}")}, commits)

	assert.Equal(t, 3, h.calls)
	assert.Len(t, commits.msgs, 1)
}

func TestProcessExhaustedGoesToDLQ(t *testing.T) {
	c := newTestConsumer(t, WithConsumerDLQ("requests.dlq"))
	dlq := &recorder{}
	c.dlq = dlq
	h := &scriptedHandler{topic: "requests", fails: 100}
	c.RegisterHandler(h)

	commits := &recorder{}
	c.process(kafka.Message{Topic: "requests", Key: []byte("k"), Value: []byte("bad")}, commits)

	assert.Equal(t, 3, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "requests.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, []byte("bad"), dlq.msgs[0].Value)
	assert.Len(t, commits.msgs, 1)
}

func TestProcessWithoutDLQDoesNotCommitFailures(t *testing.T) {
	c := newTestConsumer(t)
	c.RegisterHandler(&scriptedHandler{topic: "requests", fails: 100})

	commits := &recorder{}
	c.process(kafka.Message{Topic: "requests"}, commits)
	assert.Empty(t, commits.msgs)
}

func TestProcessPermanentErrorIsNotRetried(t *testing.T) {
	c := newTestConsumer(t, WithConsumerDLQ("requests.dlq"))
	dlq := &recorder{}
	c.dlq = dlq
	h := &scriptedHandler{topic: "requests", fails: 100, err: Permanent(errors.New("values must be finite"))}
	c.RegisterHandler(h)

	commits := &recorder{}
	c.process(kafka.Message{Topic: "requests", Value: []byte("bad")}, commits)

	assert.Equal(t, 1, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Len(t, commits.msgs, 1)
}

func TestProcessPermanentErrorWithoutDLQCommits(t *testing.T) {
	c := newTestConsumer(t)
	h := &scriptedHandler{topic: "requests", fails: 100, err: Permanent(errors.New("bad payload"))}
	c.RegisterHandler(h)

	commits := &recorder{}
	c.process(kafka.Message{Topic: "requests"}, commits)

	assert.Equal(t, 1, h.calls)
	assert.Len(t, commits.msgs, 1)
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "boom", err.Error())
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", err)))
	assert.Same(t, err, Permanent(err))

	assert.False(t, IsPermanent(base))
	assert.NoError(t, Permanent(nil))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.Error(t, err)
}
