// Package telemetry records structured events emitted by the cognitive core
// and configures trace export.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder receives every belief change, goal and intention transition and
// completed cycle. Implementations must be safe for concurrent use and must
// not block the caller for long.
type Recorder interface {
	Record(ctx context.Context, e domain.Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, domain.Event) {}

// ZapRecorder writes events as structured log lines.
type ZapRecorder struct {
	logger *zap.Logger
}

func NewZapRecorder(logger *zap.Logger) *ZapRecorder {
	return &ZapRecorder{logger: logger}
}

func (r *ZapRecorder) Record(_ context.Context, e domain.Event) {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("tenant_id", e.TenantID.String()),
		zap.String("agent_id", e.AgentID.String()),
	}
	if e.SubjectID != nil {
		fields = append(fields, zap.String("subject_id", e.SubjectID.String()))
	}
	if e.From != "" || e.To != "" {
		fields = append(fields, zap.String("from", e.From), zap.String("to", e.To))
	}
	if e.CycleID != nil {
		fields = append(fields, zap.String("cycle_id", e.CycleID.String()))
	}
	if len(e.Data) > 0 {
		fields = append(fields, zap.Any("data", e.Data))
	}
	r.logger.Info("cognitive event", fields...)
}

// StoreRecorder persists events. Failures are logged and dropped so that
// telemetry never fails a cycle.
type StoreRecorder struct {
	store  domain.EventStore
	logger *zap.Logger
}

func NewStoreRecorder(store domain.EventStore, logger *zap.Logger) *StoreRecorder {
	return &StoreRecorder{store: store, logger: logger}
}

func (r *StoreRecorder) Record(ctx context.Context, e domain.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.Append(ctx, &e); err != nil {
		r.logger.Warn("failed to persist event", zap.String("kind", string(e.Kind)), zap.Error(err))
	}
}

// Fanout delivers each event to every recorder in order.
type Fanout []Recorder

func (f Fanout) Record(ctx context.Context, e domain.Event) {
	for _, r := range f {
		r.Record(ctx, e)
	}
}

// Journal keeps the most recent events per agent in memory.
type Journal struct {
	mu     sync.RWMutex
	size   int
	events map[uuid.UUID][]domain.Event
}

const DefaultJournalSize = 500

func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &Journal{size: size, events: make(map[uuid.UUID][]domain.Event)}
}

func (j *Journal) Record(_ context.Context, e domain.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	buf := append(j.events[e.AgentID], e)
	if len(buf) > j.size {
		buf = buf[len(buf)-j.size:]
	}
	j.events[e.AgentID] = buf
}

// Events returns up to limit most recent events for the agent, newest first,
// optionally filtered by kind.
func (j *Journal) Events(agentID uuid.UUID, kind domain.EventKind, limit int) []domain.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	buf := j.events[agentID]
	var out []domain.Event
	for i := len(buf) - 1; i >= 0; i-- {
		if kind != "" && buf[i].Kind != kind {
			continue
		}
		out = append(out, buf[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// NewEvent fills the envelope of an event. The cycle id is taken from ctx.
func NewEvent(ctx context.Context, scope domain.Scope, kind domain.EventKind, subject *uuid.UUID, from, to string, data map[string]any) domain.Event {
	return domain.Event{
		ID:        uuid.New(),
		TenantID:  scope.TenantID,
		AgentID:   scope.AgentID,
		Kind:      kind,
		SubjectID: subject,
		From:      from,
		To:        to,
		CycleID:   CycleIDFromContext(ctx),
		Data:      data,
		At:        time.Now(),
	}
}

type cycleKey struct{}

// WithCycleID tags ctx so events recorded within a cycle carry its id.
func WithCycleID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

func CycleIDFromContext(ctx context.Context) *uuid.UUID {
	id, ok := ctx.Value(cycleKey{}).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
