// Package journal appends accepted mutations and command results to
// Postgres. Best effort by design: entries are queued on a bounded channel
// and written by a single background goroutine; a full queue drops the
// entry with a warning instead of blocking the write path.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"ocpihub/internal/models"
	"ocpihub/internal/store"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

type entry struct {
	occurredAt time.Time
	action     string
	kind       string
	party      string
	resourceID string
	payload    []byte
}

type Recorder struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	ch   chan entry
	done chan struct{}
}

const queueDepth = 1024

// NewRecorder starts the writer goroutine. Call Close to flush and stop.
func NewRecorder(pool *pgxpool.Pool, log zerolog.Logger) *Recorder {
	r := &Recorder{
		pool: pool,
		log:  log,
		ch:   make(chan entry, queueDepth),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		create table if not exists sync_journal (
		  id bigserial primary key,
		  occurred_at timestamptz not null,
		  action text not null,
		  kind text not null,
		  party text not null,
		  resource_id text not null,
		  payload jsonb
		)
	`)
	return err
}

// StoreObserver adapts the recorder to the store's observer contract.
func (r *Recorder) StoreObserver() store.Observer {
	return func(ev store.Event) {
		var payload []byte
		if ev.Resource != nil {
			payload, _ = json.Marshal(ev.Resource)
		}
		r.enqueue(entry{
			occurredAt: time.Now().UTC(),
			action:     string(ev.Action),
			kind:       string(ev.Key.Kind),
			party:      ev.Key.Party.String(),
			resourceID: ev.Key.ID,
			payload:    payload,
		})
	}
}

// CommandResult journals an accepted command-result callback.
func (r *Recorder) CommandResult(id string, kind models.CommandKind, result []byte) {
	r.enqueue(entry{
		occurredAt: time.Now().UTC(),
		action:     "command_result",
		kind:       string(kind),
		resourceID: id,
		payload:    result,
	})
}

func (r *Recorder) enqueue(e entry) {
	select {
	case r.ch <- e:
	default:
		r.log.Warn().Str("kind", e.kind).Str("resource_id", e.resourceID).Msg("journal queue full, entry dropped")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := r.pool.Exec(ctx, `
			insert into sync_journal (occurred_at, action, kind, party, resource_id, payload)
			values ($1,$2,$3,$4,$5,$6)
		`, e.occurredAt, e.action, e.kind, e.party, e.resourceID, e.payload)
		cancel()
		if err != nil {
			r.log.Warn().Err(err).Str("kind", e.kind).Msg("journal insert failed")
		}
	}
}

// Close flushes queued entries and stops the writer.
func (r *Recorder) Close() {
	close(r.ch)
	<-r.done
}
