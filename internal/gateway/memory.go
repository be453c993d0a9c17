package gateway

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Call is one recorded Gateway invocation.
type Call struct {
	Method  string // post, update, delete, react
	Channel string
	ID      string
	Message Message
	Emoji   string
	At      time.Time
}

// MemoryGateway records calls in memory for inspection/testing and for
// running the service without a Slack workspace.
type MemoryGateway struct {
	mu     sync.Mutex
	calls  []Call
	nextID int

	// Fail, when set, is consulted before a call is recorded; a non-nil
	// error fails the call.
	Fail func(Call) error
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{}
}

func (m *MemoryGateway) Post(_ context.Context, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := Call{Method: "post", Channel: msg.Channel, Message: msg, At: time.Now()}
	if err := m.check(call); err != nil {
		return "", err
	}
	m.nextID++
	call.ID = "T" + strconv.Itoa(m.nextID)
	m.calls = append(m.calls, call)
	return call.ID, nil
}

func (m *MemoryGateway) Update(_ context.Context, id string, msg Message) error {
	return m.record(Call{Method: "update", Channel: msg.Channel, ID: id, Message: msg})
}

func (m *MemoryGateway) Delete(_ context.Context, channel, id string) error {
	return m.record(Call{Method: "delete", Channel: channel, ID: id})
}

func (m *MemoryGateway) React(_ context.Context, channel, id, emoji string) error {
	return m.record(Call{Method: "react", Channel: channel, ID: id, Emoji: emoji})
}

func (m *MemoryGateway) record(call Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call.At = time.Now()
	if err := m.check(call); err != nil {
		return err
	}
	m.calls = append(m.calls, call)
	return nil
}

func (m *MemoryGateway) check(call Call) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(call)
}

// Calls returns a copy of the calls recorded so far.
func (m *MemoryGateway) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
