package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/gateway"
	"github.com/google/uuid"
)

// DefaultInterval matches the chat API's one-call-per-second ceiling.
const DefaultInterval = time.Second

const (
	statsBuffer  = 256
	statsTimeout = 500 * time.Millisecond
)

// Queue runs Gateway jobs one at a time in submission order. Consecutive
// executions start at least interval apart; a job that runs longer than the
// interval is followed immediately.
type Queue struct {
	gw       gateway.Gateway
	interval time.Duration
	logger   *slog.Logger
	stats    []StatsStore

	mu      sync.Mutex
	pending []*Future
	seq     uint64
	closed  bool
	wake    chan struct{}
	cancel  context.CancelFunc

	// owned by the worker goroutine
	lastStart time.Time

	// stats are recorded off the worker so a slow store never delays a job
	events    chan StatsEvent
	statsDone chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type Option func(*Queue)

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithStats adds a store that receives one event per executed job.
func WithStats(s StatsStore) Option {
	return func(q *Queue) { q.stats = append(q.stats, s) }
}

func New(gw gateway.Gateway, interval time.Duration, opts ...Option) *Queue {
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 {
		interval = 0
	}
	q := &Queue{
		gw:        gw,
		interval:  interval,
		wake:      make(chan struct{}, 1),
		events:    make(chan StatsEvent, statsBuffer),
		statsDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// log resolves the default logger lazily so a queue built before logging is
// fully wired still reaches every handler.
func (q *Queue) log() *slog.Logger {
	l := q.logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "dispatch")
}

// Start launches the worker. Cancelling ctx stops it; jobs still queued then
// resolve with ErrQueueClosed. Use Close for an orderly drain.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		q.mu.Lock()
		q.cancel = cancel
		q.mu.Unlock()
		go q.recordLoop()
		go q.run(runCtx)
		q.log().Info("dispatch queue started", "interval", q.interval.String())
	})
}

// Enqueue appends job and returns immediately.
func (q *Queue) Enqueue(job Job) *Future {
	job.ID = uuid.New()
	job.SubmittedAt = time.Now()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		f := newFuture(job)
		f.resolve(Result{}, ErrQueueClosed)
		return f
	}
	q.seq++
	job.Seq = q.seq
	f := newFuture(job)
	q.pending = append(q.pending, f)
	depth := len(q.pending)
	q.mu.Unlock()

	queueDepth.Set(float64(depth))
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return f
}

// Depth is the number of jobs waiting to run.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Interval() time.Duration { return q.interval }

// Close stops accepting jobs and waits for queued ones to run. If ctx ends
// first the worker is stopped and the remainder resolve with ErrQueueClosed.
func (q *Queue) Close(ctx context.Context) error {
	var err error
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		cancel := q.cancel
		q.mu.Unlock()
		select {
		case q.wake <- struct{}{}:
		default:
		}

		if cancel == nil {
			// never started
			q.failPending()
			return
		}
		select {
		case <-q.done:
		case <-ctx.Done():
			cancel()
			<-q.done
			err = ctx.Err()
		}
		cancel()

		select {
		case <-q.statsDone:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	})
	return err
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	defer close(q.events)
	for {
		f, closed := q.next()
		if f == nil {
			if closed {
				return
			}
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				q.failPending()
				return
			}
		}

		if err := q.waitTurn(ctx); err != nil {
			f.resolve(Result{}, ErrQueueClosed)
			q.failPending()
			return
		}
		q.execute(ctx, f)
	}
}

func (q *Queue) next() (*Future, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, q.closed
	}
	f := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	queueDepth.Set(float64(len(q.pending)))
	return f, q.closed
}

// waitTurn blocks until interval has passed since the previous start.
func (q *Queue) waitTurn(ctx context.Context) error {
	if q.lastStart.IsZero() {
		return nil
	}
	for {
		wait := q.interval - time.Since(q.lastStart)
		if wait <= 0 {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

func (q *Queue) execute(ctx context.Context, f *Future) {
	job := f.job
	start := time.Now()
	q.lastStart = start
	queueWait.WithLabelValues(string(job.Kind)).Observe(start.Sub(job.SubmittedAt).Seconds())

	res := Result{StartedAt: start}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		res.MessageID, err = q.call(ctx, job)
	}()
	res.FinishedAt = time.Now()

	status := "success"
	if err != nil {
		status = "error"
		err = &GatewayError{Kind: job.Kind, Err: err}
		q.log().Error("dispatch job failed",
			"job_id", job.ID.String(),
			"seq", job.Seq,
			"kind", string(job.Kind),
			"channel", job.channel(),
			"error", err,
		)
	}
	jobsTotal.WithLabelValues(string(job.Kind), status).Inc()
	jobDuration.WithLabelValues(string(job.Kind)).Observe(res.FinishedAt.Sub(start).Seconds())
	q.record(StatsEvent{Kind: job.Kind, OK: err == nil, At: start, Duration: res.FinishedAt.Sub(start)})

	f.resolve(res, err)
}

func (q *Queue) call(ctx context.Context, job Job) (string, error) {
	switch job.Kind {
	case KindPost:
		return q.gw.Post(ctx, job.Message)
	case KindUpdate:
		return "", q.gw.Update(ctx, job.MessageID, job.Message)
	case KindDelete:
		return "", q.gw.Delete(ctx, job.Channel, job.MessageID)
	case KindReact:
		return "", q.gw.React(ctx, job.Channel, job.MessageID, job.Emoji)
	default:
		return "", fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// record hands ev to recordLoop without blocking. Events are dropped while
// the buffer is full.
func (q *Queue) record(ev StatsEvent) {
	if len(q.stats) == 0 {
		return
	}
	select {
	case q.events <- ev:
	default:
		statsDropped.Inc()
		q.log().Warn("dispatch stats buffer full, event dropped", "kind", string(ev.Kind))
	}
}

// recordLoop writes events to every store until the worker exits. Each write
// gets its own deadline; a broken stats store never fails a job.
func (q *Queue) recordLoop() {
	defer close(q.statsDone)
	for ev := range q.events {
		for _, s := range q.stats {
			ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
			if err := s.Record(ctx, ev); err != nil {
				q.log().Warn("dispatch stats record failed", "kind", string(ev.Kind), "error", err)
			}
			cancel()
		}
	}
}

func (q *Queue) failPending() {
	q.mu.Lock()
	rest := q.pending
	q.pending = nil
	q.closed = true
	q.mu.Unlock()
	queueDepth.Set(0)
	for _, f := range rest {
		f.resolve(Result{}, ErrQueueClosed)
	}
}

func (j Job) channel() string {
	if j.Channel != "" {
		return j.Channel
	}
	return j.Message.Channel
}
