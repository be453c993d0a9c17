package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/gateway"
)

func startQueue(t *testing.T, gw gateway.Gateway, interval time.Duration, opts ...Option) *Queue {
	t.Helper()
	q := New(gw, interval, opts...)
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q
}

func waitAll(t *testing.T, futures []*Future) []Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out := make([]Result, len(futures))
	for i, f := range futures {
		res, err := f.Wait(ctx)
		require.NoError(t, err, "job %d", i)
		out[i] = res
	}
	return out
}

func TestQueue_ConcurrentProducersObserveSubmissionOrder(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	q := startQueue(t, gw, time.Millisecond)

	const producers, perProducer = 8, 5
	var mu sync.Mutex
	var futures []*Future
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				f := q.Enqueue(Post(gateway.Message{Channel: "C1", Text: fmt.Sprintf("p%d-%d", p, i)}))
				mu.Lock()
				futures = append(futures, f)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	waitAll(t, futures)

	seqByText := make(map[string]uint64, len(futures))
	for _, f := range futures {
		seqByText[f.Job().Message.Text] = f.Job().Seq
	}

	calls := gw.Calls()
	require.Len(t, calls, producers*perProducer)
	for i, c := range calls {
		assert.Equal(t, uint64(i+1), seqByText[c.Message.Text], "call %d ran out of order", i)
	}
}

func TestQueue_StartsAreSpacedByInterval(t *testing.T) {
	const interval = 30 * time.Millisecond
	q := startQueue(t, gateway.NewMemoryGateway(), interval)

	var futures []*Future
	for i := 0; i < 5; i++ {
		futures = append(futures, q.Enqueue(React("C1", "T1", "bank")))
	}
	results := waitAll(t, futures)

	for i := 1; i < len(results); i++ {
		gap := results[i].StartedAt.Sub(results[i-1].StartedAt)
		assert.GreaterOrEqual(t, gap, interval, "gap between job %d and %d", i-1, i)
	}
}

func TestQueue_SlowJobIsFollowedImmediately(t *testing.T) {
	const interval = 200 * time.Millisecond
	gw := gateway.NewMemoryGateway()
	gw.Fail = func(c gateway.Call) error {
		if c.Message.Text == "slow" {
			time.Sleep(300 * time.Millisecond)
		}
		return nil
	}
	q := startQueue(t, gw, interval)

	results := waitAll(t, []*Future{
		q.Enqueue(Post(gateway.Message{Channel: "C1", Text: "slow"})),
		q.Enqueue(Post(gateway.Message{Channel: "C1", Text: "next"})),
	})

	assert.GreaterOrEqual(t, results[1].StartedAt.Sub(results[0].StartedAt), interval)
	assert.Less(t, results[1].StartedAt.Sub(results[0].FinishedAt), interval/2,
		"next job should not wait a full interval after a slow one")
}

func TestQueue_FailedJobDoesNotHaltQueue(t *testing.T) {
	const interval = 20 * time.Millisecond
	gw := gateway.NewMemoryGateway()
	gw.Fail = func(c gateway.Call) error {
		if c.Method == "delete" {
			return assert.AnError
		}
		return nil
	}
	stats := NewMemoryStatsStore()
	q := startQueue(t, gw, interval, WithStats(stats))

	bad := q.Enqueue(Delete("C1", "T1"))
	good := q.Enqueue(Post(gateway.Message{Channel: "C2", Text: "after"}))

	_, err := bad.Result()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindDelete, gerr.Kind)

	res, err := good.Result()
	require.NoError(t, err)
	assert.Equal(t, "T1", res.MessageID)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "after", calls[0].Message.Text)

	require.Eventually(t, func() bool {
		return stats.Total() == Counters{Succeeded: 1, Failed: 1}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Counters{Failed: 1}, stats.ByKind()[KindDelete])
	assert.Equal(t, Counters{Succeeded: 1}, stats.ByKind()[KindPost])
}

type slowStats struct {
	delay time.Duration

	mu       sync.Mutex
	events   int
	deadline bool
}

func (s *slowStats) Record(ctx context.Context, _ StatsEvent) error {
	_, hasDeadline := ctx.Deadline()
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events++
	s.deadline = hasDeadline
	return ctx.Err()
}

func TestQueue_SlowStatsStoreDoesNotDelayJobs(t *testing.T) {
	const interval = 20 * time.Millisecond
	stats := &slowStats{delay: 150 * time.Millisecond}
	q := New(gateway.NewMemoryGateway(), interval, WithStats(stats))
	q.Start(context.Background())

	var futures []*Future
	for i := 0; i < 4; i++ {
		futures = append(futures, q.Enqueue(React("C1", "T1", "bank")))
	}
	results := waitAll(t, futures)

	for i := 1; i < len(results); i++ {
		gap := results[i].StartedAt.Sub(results[i-1].StartedAt)
		assert.GreaterOrEqual(t, gap, interval)
		assert.Less(t, gap, 100*time.Millisecond, "job %d waited on the stats store", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))

	stats.mu.Lock()
	defer stats.mu.Unlock()
	assert.Equal(t, 4, stats.events, "Close waits for queued stats")
	assert.True(t, stats.deadline, "each record call is bounded")
}

func TestQueue_ConcurrentStartAndClose(t *testing.T) {
	q := New(gateway.NewMemoryGateway(), time.Millisecond)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		q.Start(context.Background())
	}()
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Close(ctx)
	}()
	wg.Wait()

	_, err := q.Enqueue(React("C1", "T1", "a")).Result()
	assert.ErrorIs(t, err, ErrQueueClosed)
}

type panicGateway struct{ gateway.Gateway }

func (panicGateway) React(context.Context, string, string, string) error { panic("boom") }

func TestQueue_PanickingGatewayResolvesWithError(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	q := startQueue(t, panicGateway{Gateway: mem}, time.Millisecond)

	_, err := q.Enqueue(React("C1", "T1", "x")).Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")

	_, err = q.Enqueue(Post(gateway.Message{Channel: "C1"})).Result()
	require.NoError(t, err)
}

func TestQueue_CloseDrainsThenRejects(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	q := New(gw, 5*time.Millisecond)
	q.Start(context.Background())

	futures := []*Future{
		q.Enqueue(Post(gateway.Message{Channel: "C1", Text: "a"})),
		q.Enqueue(Post(gateway.Message{Channel: "C1", Text: "b"})),
		q.Enqueue(Post(gateway.Message{Channel: "C1", Text: "c"})),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))

	for _, f := range futures {
		select {
		case <-f.Done():
		default:
			t.Fatalf("job %d not resolved after Close", f.Job().Seq)
		}
		_, err := f.Result()
		assert.NoError(t, err)
	}
	assert.Len(t, gw.Calls(), 3)

	_, err := q.Enqueue(Post(gateway.Message{Channel: "C1"})).Result()
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_CloseTimeoutResolvesRemainder(t *testing.T) {
	q := New(gateway.NewMemoryGateway(), time.Hour)
	q.Start(context.Background())

	first := q.Enqueue(React("C1", "T1", "a"))
	second := q.Enqueue(React("C1", "T1", "b"))
	third := q.Enqueue(React("C1", "T1", "c"))

	_, err := first.Result()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = q.Close(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = second.Result()
	assert.ErrorIs(t, err, ErrQueueClosed)
	_, err = third.Result()
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_CloseBeforeStartFailsPending(t *testing.T) {
	q := New(gateway.NewMemoryGateway(), time.Millisecond)
	f := q.Enqueue(Delete("C1", "T1"))
	require.NoError(t, q.Close(context.Background()))

	_, err := f.Result()
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_EnqueueAssignsIdentity(t *testing.T) {
	q := New(gateway.NewMemoryGateway(), time.Millisecond)
	a := q.Enqueue(Delete("C1", "T1"))
	b := q.Enqueue(Delete("C1", "T2"))

	assert.Equal(t, uint64(1), a.Job().Seq)
	assert.Equal(t, uint64(2), b.Job().Seq)
	assert.NotEqual(t, a.Job().ID, b.Job().ID)
	assert.False(t, a.Job().SubmittedAt.IsZero())
	assert.Equal(t, 2, q.Depth())
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	q := New(gateway.NewMemoryGateway(), time.Millisecond)
	f := q.Enqueue(Delete("C1", "T1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, q.Depth(), "giving up on a future leaves the job queued")
}

func TestNew_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(gateway.NewMemoryGateway(), 0).Interval())
	assert.Equal(t, time.Duration(0), New(gateway.NewMemoryGateway(), -1).Interval())
}

func TestMemoryStatsStore_LastExecuted(t *testing.T) {
	s := NewMemoryStatsStore()
	assert.True(t, s.LastExecuted().IsZero())

	times := []time.Time{time.Unix(200, 0), time.Unix(100, 0)}
	for _, at := range times {
		require.NoError(t, s.Record(context.Background(), StatsEvent{Kind: KindPost, OK: true, At: at}))
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	assert.Equal(t, times[1], s.LastExecuted())
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	assert.NoError(t, s.Record(context.Background(), StatsEvent{Kind: KindPost}))
}
