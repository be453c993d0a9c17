package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dispatch"
)

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []dispatch.Job
}

func (f *fakeEnqueuer) Enqueue(job dispatch.Job) *dispatch.Future {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeEnqueuer) Jobs() []dispatch.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatch.Job(nil), f.jobs...)
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandler_FansOutPastFailures(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&a, nil),
		failingHandler{Handler: slog.NewJSONHandler(&bytes.Buffer{}, nil)},
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("component", "review")

	logger.Info("domain classified", "domain", "phish-test.com")
	logger.Warn("scan failed")

	assert.Contains(t, a.String(), `"msg":"domain classified"`)
	assert.Contains(t, a.String(), `"component":"review"`)
	assert.Contains(t, a.String(), `"msg":"scan failed"`)
	assert.NotContains(t, b.String(), "domain classified")
	assert.Contains(t, b.String(), `"msg":"scan failed"`)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "x", 0))
	assert.EqualError(t, err, "sink down")
}

func TestSlackHandler_MirrorsRecords(t *testing.T) {
	q := &fakeEnqueuer{}
	h := NewSlackHandler(q, "CLOG", slog.LevelInfo, "production", BuildInfo{Version: "v1.2.0", GitSHA: "abc1234"})
	logger := slog.New(h)

	logger.Info("app starting")
	logger.Error("verdict rejected", "error", errors.New("status 500"))
	logger.Debug("too quiet")

	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, dispatch.KindPost, jobs[0].Kind)
	assert.Equal(t, "CLOG", jobs[0].Message.Channel)
	assert.Equal(t, "app starting", jobs[0].Message.Text)
	assert.Equal(t, "verdict rejected\nstatus 500", jobs[1].Message.Text)

	blocks := jobs[1].Message.Blocks
	require.Len(t, blocks, 5)
	section, ok := blocks[1].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Equal(t, "> verdict rejected\n> status 500", section.Text.Text)

	raw, err := json.Marshal(blocks[2])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "*Running environment:* _production_")
	assert.Contains(t, string(raw), "*Git SHA:* _abc1234_")
	assert.Contains(t, string(raw), "*Version:* _v1.2.0_")
}

func TestSlackHandler_SkipsDispatchComponent(t *testing.T) {
	q := &fakeEnqueuer{}
	logger := slog.New(NewSlackHandler(q, "CLOG", slog.LevelInfo, "development", ReadBuildInfo()))

	logger.With("component", "dispatch").Error("dispatch job failed")
	logger.Error("dispatch job failed", "component", "dispatch")
	logger.With("component", "review").Info("review requested")

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "review requested", jobs[0].Message.Text)
}

func TestSlackHandler_DisabledWithoutChannel(t *testing.T) {
	q := &fakeEnqueuer{}
	slog.New(NewSlackHandler(q, "", slog.LevelDebug, "development", BuildInfo{})).Error("boom")
	assert.Empty(t, q.Jobs())
}

func TestSystemLogFromRecord(t *testing.T) {
	h := &PGHandler{}
	child := h.WithAttrs([]slog.Attr{slog.String("component", "review")}).(*PGHandler)

	rec := slog.NewRecord(time.Unix(1700000000, 0), slog.LevelError, "verdict rejected", 0)
	rec.AddAttrs(
		slog.String("domain", "phish-test.com"),
		slog.String("user", "U1"),
		slog.String("error", "status 500"),
		slog.Float64("latency_ms", 12.6),
		slog.String("classification", "banking"),
	)

	entry := systemLogFromRecord(rec, child.attrs)
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "verdict rejected", entry.Message)
	assert.Equal(t, "review", entry.Component)
	assert.Equal(t, "phish-test.com", entry.Domain)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "U1", *entry.UserID)
	assert.Equal(t, "status 500", entry.Error)
	assert.Equal(t, 13, entry.LatencyMs)
	assert.JSONEq(t, `{"classification":"banking"}`, string(entry.Extra))
	assert.Empty(t, h.attrs, "WithAttrs must not mutate the parent")
}

func TestPGHandler_BuffersErrorsOnly(t *testing.T) {
	h := newPGHandler(nil, time.Hour)
	assert.False(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	require.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)))
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	require.Len(t, h.sink.buffer, 1)
	assert.Equal(t, "boom", h.sink.buffer[0].Message)
}

func TestReadBuildInfo(t *testing.T) {
	bi := ReadBuildInfo()
	assert.NotEmpty(t, bi.Version)
	assert.NotEmpty(t, bi.GitSHA)
	assert.LessOrEqual(t, len(bi.GitSHA), 7)
}
