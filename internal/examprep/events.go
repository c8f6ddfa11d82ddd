package examprep

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types emitted during a run.
const (
	EventRunStarted     = "run_started"
	EventStageStarted   = "stage_started"
	EventStageCompleted = "stage_completed"
	EventStageFailed    = "stage_failed"
	EventTopicCompleted = "topic_completed"
	EventRunCompleted   = "run_completed"
	EventRunFailed      = "run_failed"
)

const dbTimeout = 5 * time.Second

// Event is one progress record of a workflow run.
type Event struct {
	RunID     string         `json:"runId"`
	Type      string         `json:"type"`
	Stage     string         `json:"stage,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// EventSink receives run events. Sink errors never fail a run.
type EventSink interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventSink ignores all events.
type NopEventSink struct{}

func (NopEventSink) LogEvent(context.Context, Event) error {
	return nil
}

// FuncEventSink adapts a function to EventSink.
type FuncEventSink func(ctx context.Context, event Event) error

func (f FuncEventSink) LogEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// MemoryEventSink stores events in memory for tests.
type MemoryEventSink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{events: []Event{}}
}

func (s *MemoryEventSink) LogEvent(_ context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *MemoryEventSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

// Types returns the event types in emission order.
func (s *MemoryEventSink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

// PostgresEventSink inserts events into the workflow_events table.
type PostgresEventSink struct {
	pool *pgxpool.Pool
}

func NewPostgresEventSink(pool *pgxpool.Pool) *PostgresEventSink {
	return &PostgresEventSink{pool: pool}
}

func (s *PostgresEventSink) LogEvent(ctx context.Context, event Event) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("event sink pool is nil")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.RunID == "" {
		return fmt.Errorf("run_id is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO workflow_events (run_id, event_type, stage, subject, data, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		event.RunID,
		event.Type,
		nullIfEmpty(event.Stage),
		nullIfEmpty(event.Subject),
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged", "type", event.Type, "run_id", event.RunID, "stage", event.Stage)
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// run is the per-invocation state carried in the context.
type run struct {
	id      string
	subject string
	sinks   []EventSink
}

type runKey struct{}

func withRun(ctx context.Context, r *run) context.Context {
	return context.WithValue(ctx, runKey{}, r)
}

func runFrom(ctx context.Context) *run {
	r, _ := ctx.Value(runKey{}).(*run)
	return r
}

// emit sends an event to every sink of the current run.
func emit(ctx context.Context, typ, stage string, data map[string]any) {
	r := runFrom(ctx)
	if r == nil {
		return
	}
	ev := Event{
		RunID:     r.id,
		Type:      typ,
		Stage:     stage,
		Subject:   r.subject,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	for _, sink := range r.sinks {
		if err := sink.LogEvent(ctx, ev); err != nil {
			slog.Warn("failed to log workflow event", "type", typ, "run_id", r.id, "error", err)
		}
	}
}
