package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/gateway"
	"github.com/google/uuid"
)

type Kind string

const (
	KindPost   Kind = "post"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindReact  Kind = "react"
)

var ErrQueueClosed = errors.New("dispatch queue closed")

// Job describes one outbound Gateway call. ID, Seq and SubmittedAt are
// assigned by Enqueue.
type Job struct {
	ID          uuid.UUID
	Seq         uint64
	Kind        Kind
	SubmittedAt time.Time

	Message   gateway.Message // post, update
	Channel   string          // delete, react
	MessageID string          // update, delete, react
	Emoji     string          // react
}

func Post(msg gateway.Message) Job {
	return Job{Kind: KindPost, Message: msg}
}

func Update(id string, msg gateway.Message) Job {
	return Job{Kind: KindUpdate, MessageID: id, Message: msg}
}

func Delete(channel, id string) Job {
	return Job{Kind: KindDelete, Channel: channel, MessageID: id}
}

func React(channel, id, emoji string) Job {
	return Job{Kind: KindReact, Channel: channel, MessageID: id, Emoji: emoji}
}

// Result is the outcome of an executed job. MessageID is set for posts.
type Result struct {
	MessageID  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// GatewayError wraps a failed Gateway call.
type GatewayError struct {
	Kind Kind
	Err  error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("gateway %s failed: %v", e.Kind, e.Err) }
func (e *GatewayError) Unwrap() error { return e.Err }

// Future resolves once its job has been attempted.
type Future struct {
	job  Job
	done chan struct{}
	res  Result
	err  error
}

func newFuture(job Job) *Future {
	return &Future{job: job, done: make(chan struct{})}
}

func (f *Future) resolve(res Result, err error) {
	f.res = res
	f.err = err
	close(f.done)
}

// Job returns the job as enqueued, including its assigned ID and Seq.
func (f *Future) Job() Job { return f.job }

// Done is closed once the job has been attempted.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result blocks until the job has been attempted.
func (f *Future) Result() (Result, error) {
	<-f.done
	return f.res, f.err
}

// Wait is Result bounded by ctx. Giving up does not cancel the job.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
