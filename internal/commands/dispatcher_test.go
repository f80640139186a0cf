package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpihub/internal/models"
)

type fakeForwarder struct {
	mu    sync.Mutex
	calls []models.UpstreamRef
	err   error
}

func (f *fakeForwarder) ForwardResult(_ context.Context, ref models.UpstreamRef, _ json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ref)
	return f.err
}

func (f *fakeForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestDispatcher(fwd Forwarder) (*Dispatcher, *Table) {
	table := NewTable()
	d := NewDispatcher(table, fwd, zerolog.Nop(), nil, time.Second)
	return d, table
}

func TestIssueGeneratesIDWhenEmpty(t *testing.T) {
	d, table := newTestDispatcher(&fakeForwarder{})

	rec := d.Issue(models.CommandReserveNow, "", json.RawMessage(`{}`), nil)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.CommandIssued, rec.State)

	got, ok := table.TryGet(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)
}

func TestIssueKeepsCallerID(t *testing.T) {
	d, _ := newTestDispatcher(&fakeForwarder{})
	rec := d.Issue(models.CommandStartSession, "cmd-1", json.RawMessage(`{}`), nil)
	assert.Equal(t, "cmd-1", rec.ID)
}

func TestReissueSameIDKeepsOriginal(t *testing.T) {
	d, _ := newTestDispatcher(&fakeForwarder{})
	first := d.Issue(models.CommandStartSession, "cmd-1", json.RawMessage(`{"a":1}`), nil)
	second := d.Issue(models.CommandStopSession, "cmd-1", json.RawMessage(`{"b":2}`), nil)
	assert.Equal(t, first.Kind, second.Kind)
	assert.JSONEq(t, `{"a":1}`, string(second.Payload))
}

func TestResultForwardedExactlyOnce(t *testing.T) {
	fwd := &fakeForwarder{}
	d, table := newTestDispatcher(fwd)

	upstream := &models.UpstreamRef{ResponseURL: "http://emsp.example/resp", RequestID: "req-1"}
	d.Issue(models.CommandReserveNow, "cmd-1", json.RawMessage(`{}`), upstream)

	result := json.RawMessage(`{"result":"ACCEPTED"}`)
	assert.Equal(t, Accepted, d.AcceptResult("cmd-1", result))
	for i := 0; i < 5; i++ {
		assert.Equal(t, Accepted, d.AcceptResult("cmd-1", result))
	}
	d.Drain()

	assert.Equal(t, 1, fwd.count())
	assert.Equal(t, "http://emsp.example/resp", fwd.calls[0].ResponseURL)

	rec, ok := table.TryGet("cmd-1")
	require.True(t, ok)
	assert.Equal(t, models.CommandForwarded, rec.State)
	assert.JSONEq(t, `{"result":"ACCEPTED"}`, string(rec.Result))
	require.NotNil(t, rec.ResultAt)
}

func TestResultWithoutUpstreamNotForwarded(t *testing.T) {
	fwd := &fakeForwarder{}
	d, table := newTestDispatcher(fwd)

	d.Issue(models.CommandUnlockConnector, "cmd-1", json.RawMessage(`{}`), nil)
	assert.Equal(t, Accepted, d.AcceptResult("cmd-1", json.RawMessage(`{"result":"ACCEPTED"}`)))
	d.Drain()

	assert.Zero(t, fwd.count())
	rec, _ := table.TryGet("cmd-1")
	assert.Equal(t, models.CommandResultReceived, rec.State)
}

func TestResultForUnknownCommand(t *testing.T) {
	fwd := &fakeForwarder{}
	d, _ := newTestDispatcher(fwd)
	assert.Equal(t, UnknownCommand, d.AcceptResult("ghost", json.RawMessage(`{}`)))
	d.Drain()
	assert.Zero(t, fwd.count())
}

func TestForwardFailureDoesNotFailAcceptance(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("upstream unreachable")}
	d, table := newTestDispatcher(fwd)

	d.Issue(models.CommandReserveNow, "cmd-1", json.RawMessage(`{}`), &models.UpstreamRef{ResponseURL: "http://emsp.example/resp"})
	assert.Equal(t, Accepted, d.AcceptResult("cmd-1", json.RawMessage(`{"result":"REJECTED"}`)))
	d.Drain()

	assert.Equal(t, 1, fwd.count())
	rec, _ := table.TryGet("cmd-1")
	assert.Equal(t, models.CommandResultReceived, rec.State, "failed forward stays out of terminal state")
}

func TestConcurrentDuplicateResultsForwardOnce(t *testing.T) {
	fwd := &fakeForwarder{}
	d, _ := newTestDispatcher(fwd)
	d.Issue(models.CommandStopSession, "cmd-1", json.RawMessage(`{}`), &models.UpstreamRef{ResponseURL: "http://emsp.example/resp"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.AcceptResult("cmd-1", json.RawMessage(`{"result":"ACCEPTED"}`))
		}()
	}
	wg.Wait()
	d.Drain()

	assert.Equal(t, 1, fwd.count())
}

func TestSweepExpiresUnresolvedCommands(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table := NewTableWithClock(func() time.Time { return now })

	table.Register("stale-pending", models.CommandReserveNow, nil, nil)
	table.Register("stale-done", models.CommandReserveNow, nil, nil)
	_, first, known := table.SetResult("stale-done", json.RawMessage(`{}`))
	require.True(t, first)
	require.True(t, known)

	now = now.Add(2 * time.Hour)
	table.Register("fresh", models.CommandStartSession, nil, nil)

	removed, expired := table.Sweep(now.Add(-time.Hour))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, expired, "only the command without a result expires")
	assert.Equal(t, 1, table.Len())
	_, ok := table.TryGet("fresh")
	assert.True(t, ok)
}
