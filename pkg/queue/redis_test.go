package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"FinCast/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainPayload struct {
	Symbol string `json:"symbol"`
	N      int    `json:"n"`
}

type recordingJob struct {
	calls atomic.Int32
	err   error
	last  atomic.Value
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "train" }
func (j *recordingJob) Handle(_ context.Context, payload json.RawMessage) error {
	j.calls.Add(1)
	p, err := ParsePayload[trainPayload](payload)
	if err != nil {
		return err
	}
	j.last.Store(*p)
	return j.err
}

func newQueue(t *testing.T, cfg Config) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisQueue(logger.Nop(), client, cfg, WithKeyPrefix("test:queue"))
}

func TestEnqueueAndHandle(t *testing.T) {
	mr, q := newQueue(t, Config{PollTimeout: 50 * time.Millisecond})
	job := &recordingJob{}
	q.Register(job)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "train", trainPayload{Symbol: "AAPL", N: 300})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	items, err := mr.List("test:queue:messages")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.True(t, q.pollOnce(ctx))
	assert.Equal(t, int32(1), job.calls.Load())
	assert.Equal(t, trainPayload{Symbol: "AAPL", N: 300}, job.last.Load())
}

func TestFailedJobIsRetriedThenDeadLettered(t *testing.T) {
	mr, q := newQueue(t, Config{MaxRetries: 1, RetryDelay: time.Second, PollTimeout: 50 * time.Millisecond})
	job := &recordingJob{err: errors.New("store down")}
	q.Register(job)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "train", trainPayload{Symbol: "MSFT"})
	require.NoError(t, err)
	require.True(t, q.pollOnce(ctx))

	members, err := mr.ZMembers("test:queue:retry")
	require.NoError(t, err)
	require.Len(t, members, 1)

	assert.Equal(t, 0, q.promoteDue(ctx))
	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, q.promoteDue(ctx))

	require.True(t, q.pollOnce(ctx))
	assert.Equal(t, int32(2), job.calls.Load())

	dlq, err := mr.List("test:queue:dlq")
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(dlq[0]), &msg))
	assert.Equal(t, 1, msg.Attempts)
	assert.Equal(t, "store down", msg.LastError)
}

func TestUnknownTypeGoesToDeadLetter(t *testing.T) {
	mr, q := newQueue(t, Config{PollTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "mystery", map[string]int{"x": 1})
	require.NoError(t, err)
	require.True(t, q.pollOnce(ctx))

	dlq, err := mr.List("test:queue:dlq")
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
}

func TestStartStop(t *testing.T) {
	_, q := newQueue(t, Config{Workers: 2, PollTimeout: 20 * time.Millisecond})
	job := &recordingJob{}
	q.Register(job)
	ctx := context.Background()

	require.NoError(t, q.Start(ctx))
	assert.Error(t, q.Start(ctx))

	_, err := q.Enqueue(ctx, "train", trainPayload{Symbol: "BTC"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return job.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))
}

func TestParsePayloadEmpty(t *testing.T) {
	_, err := ParsePayload[trainPayload](nil)
	assert.Error(t, err)
}
