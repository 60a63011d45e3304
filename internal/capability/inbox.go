package capability

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
)

const (
	InboxName          = "inbox"
	DefaultOutboxLimit = 200
)

// DispatchedAction is an action the agent performed through the inbox.
type DispatchedAction struct {
	domain.Action
	At time.Time `json:"at"`
}

// Inbox is a push-based capability: observations are pushed in from outside
// (the HTTP API) and drained on perception, and every executed action is kept
// in a bounded outbox for the outside to read.
type Inbox struct {
	mu      sync.Mutex
	pending []domain.Observation
	outbox  []DispatchedAction
	limit   int
	now     func() time.Time
}

func NewInbox() *Inbox {
	return &Inbox{limit: DefaultOutboxLimit, now: time.Now}
}

func (i *Inbox) Name() string { return InboxName }

// Push queues observations for the next perception.
func (i *Inbox) Push(obs ...domain.Observation) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, o := range obs {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		if o.Source == "" {
			o.Source = InboxName
		}
		if o.ObservedAt.IsZero() {
			o.ObservedAt = i.now()
		}
		i.pending = append(i.pending, o)
	}
}

// Pending reports how many observations await perception.
func (i *Inbox) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}

func (i *Inbox) Perceive(ctx context.Context) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.pending
	i.pending = nil
	return out, nil
}

func (i *Inbox) Execute(ctx context.Context, action domain.Action) (*domain.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.outbox = append(i.outbox, DispatchedAction{Action: action, At: i.now()})
	if len(i.outbox) > i.limit {
		i.outbox = i.outbox[len(i.outbox)-i.limit:]
	}
	return &domain.ActionResult{
		Success: true,
		Output:  map[string]domain.Value{"queued": domain.Bool(true)},
	}, nil
}

// Actions returns up to limit most recent dispatched actions, newest first.
func (i *Inbox) Actions(limit int) []DispatchedAction {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []DispatchedAction
	for j := len(i.outbox) - 1; j >= 0; j-- {
		out = append(out, i.outbox[j])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Drain returns every dispatched action in order and empties the outbox.
func (i *Inbox) Drain() []DispatchedAction {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.outbox
	i.outbox = nil
	return out
}

// InboxHub owns one inbox per agent so the API and the agent's loop share it.
type InboxHub struct {
	mu      sync.Mutex
	inboxes map[uuid.UUID]*Inbox
}

func NewInboxHub() *InboxHub {
	return &InboxHub{inboxes: make(map[uuid.UUID]*Inbox)}
}

// For returns the agent's inbox, creating it on first use.
func (h *InboxHub) For(agentID uuid.UUID) *Inbox {
	h.mu.Lock()
	defer h.mu.Unlock()
	in, ok := h.inboxes[agentID]
	if !ok {
		in = NewInbox()
		h.inboxes[agentID] = in
	}
	return in
}

// Factory registers the hub's inboxes under the "inbox" capability name.
func (h *InboxHub) Factory() Factory {
	return func(agent domain.Agent) (domain.Capability, error) {
		return h.For(agent.ID), nil
	}
}
