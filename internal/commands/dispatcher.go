package commands

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ocpihub/internal/metrics"
	"ocpihub/internal/models"
)

// Outcome of accepting a command-result callback.
type Outcome string

const (
	Accepted       Outcome = "ACCEPTED"
	UnknownCommand Outcome = "UNKNOWN_COMMAND"
)

// Forwarder delivers a command result to the upstream response address.
// Implemented by the upstream client; fakes stand in for tests.
type Forwarder interface {
	ForwardResult(ctx context.Context, ref models.UpstreamRef, result json.RawMessage) error
}

// Dispatcher drives the command lifecycle: Issued, then ResultReceived once
// the callback lands, then Forwarded when the upstream relay succeeded, or
// Expired when no result arrived inside the retention window.
type Dispatcher struct {
	table   *Table
	fwd     Forwarder
	log     zerolog.Logger
	coll    *metrics.Collector
	timeout time.Duration

	inflight sync.WaitGroup
}

func NewDispatcher(table *Table, fwd Forwarder, log zerolog.Logger, coll *metrics.Collector, forwardTimeout time.Duration) *Dispatcher {
	if forwardTimeout <= 0 {
		forwardTimeout = 15 * time.Second
	}
	return &Dispatcher{table: table, fwd: fwd, log: log, coll: coll, timeout: forwardTimeout}
}

// Issue registers a new command. An empty id gets a generated one; callers
// relaying for an upstream party pass the response address so the eventual
// result can be matched back.
func (d *Dispatcher) Issue(kind models.CommandKind, id string, payload json.RawMessage, upstream *models.UpstreamRef) models.Command {
	if id == "" {
		id = uuid.NewString()
	}
	rec := d.table.Register(id, kind, payload, upstream)
	d.coll.CommandIssued(string(kind))
	d.log.Info().Str("command_id", rec.ID).Str("kind", string(kind)).Msg("command issued")
	return rec
}

// AcceptResult handles an inbound result callback. Unknown ids are rejected
// without side effects. The first delivery records the result and, when the
// command has an upstream address, triggers exactly one forwarding attempt
// on a background task bounded by the configured timeout. Forwarding
// failures are logged and counted, never surfaced to the inbound caller:
// the callback has already been acknowledged.
func (d *Dispatcher) AcceptResult(id string, result json.RawMessage) Outcome {
	rec, first, known := d.table.SetResult(id, result)
	if !known {
		d.log.Warn().Str("command_id", id).Msg("result for unknown command")
		return UnknownCommand
	}
	if !first {
		d.log.Debug().Str("command_id", id).Msg("duplicate command result, not re-forwarded")
		return Accepted
	}
	d.coll.CommandResultReceived(string(rec.Kind))
	if rec.Upstream == nil {
		return Accepted
	}

	ref := *rec.Upstream
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.fwd.ForwardResult(ctx, ref, result); err != nil {
			d.coll.ForwardFailed()
			d.log.Warn().
				Err(err).
				Str("command_id", id).
				Str("response_url", ref.ResponseURL).
				Msg("result forwarding failed")
			return
		}
		d.table.MarkForwarded(id)
		d.coll.Forwarded()
		d.log.Info().Str("command_id", id).Msg("result forwarded upstream")
	}()
	return Accepted
}

// Drain waits for in-flight forwarding tasks; used on shutdown and by
// tests that assert on forwarding behavior.
func (d *Dispatcher) Drain() { d.inflight.Wait() }

// StartSweeper expires and drops commands older than ttl every interval
// until ctx is done.
func (d *Dispatcher) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, expired := d.table.Sweep(now.Add(-ttl))
				if removed > 0 {
					d.log.Debug().Int("removed", removed).Int("expired", expired).Msg("command table swept")
				}
			}
		}
	}()
}
