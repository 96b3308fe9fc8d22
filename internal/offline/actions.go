package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curanote/curanote/internal/events"
	"github.com/curanote/curanote/internal/observe"
	"github.com/curanote/curanote/internal/remote"
)

// maxActionFailures is the per-action delivery budget. The action is
// permanently dropped on the failure that reaches it.
const maxActionFailures = 5

// ErrValidation is returned by [ActionQueue.Submit] for a malformed action.
// Malformed actions fail fast and are never enqueued.
var ErrValidation = errors.New("offline: invalid action")

// Backend is the subset of [remote.Client] the action queue needs.
type Backend interface {
	Ping(ctx context.Context) error
	Deliver(ctx context.Context, action remote.Action) error
}

var _ Backend = (*remote.Client)(nil)

// PendingAction is one deferred backend mutation.
type PendingAction struct {
	ID         string            `json:"id"`
	Type       remote.ActionType `json:"type"`
	EntityID   string            `json:"entityId,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
	RetryCount int               `json:"retryCount"`
}

// ActionQueueOption is a functional option for configuring an [ActionQueue].
type ActionQueueOption func(*ActionQueue)

// WithActionFlushInterval sets the periodic flush interval. Default: 30s.
func WithActionFlushInterval(d time.Duration) ActionQueueOption {
	return func(q *ActionQueue) {
		q.flushInterval = d
	}
}

// WithActionProbeTimeout bounds the liveness probe in Submit. Default: 3s.
func WithActionProbeTimeout(d time.Duration) ActionQueueOption {
	return func(q *ActionQueue) {
		q.probeTimeout = d
	}
}

// WithActionLogger sets the logger. Default: [slog.Default].
func WithActionLogger(logger *slog.Logger) ActionQueueOption {
	return func(q *ActionQueue) {
		q.logger = logger
	}
}

// WithActionMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithActionMetrics(m *observe.Metrics) ActionQueueOption {
	return func(q *ActionQueue) {
		q.metrics = m
	}
}

// ActionQueue defers backend mutations while the network is down and
// delivers them when it returns. Safe for concurrent use; flush passes are
// serialized per instance.
type ActionQueue struct {
	store   *Store
	backend Backend
	bus     *events.Bus

	flushInterval time.Duration
	probeTimeout  time.Duration

	logger  *slog.Logger
	metrics *observe.Metrics

	// flushMu serializes flush passes. An overlapping trigger is skipped,
	// not queued.
	flushMu sync.Mutex
}

// NewActionQueue returns an [ActionQueue] persisting through store and
// delivering through backend. Flush summaries are published on bus.
func NewActionQueue(store *Store, backend Backend, bus *events.Bus, opts ...ActionQueueOption) *ActionQueue {
	q := &ActionQueue{
		store:         store,
		backend:       backend,
		bus:           bus,
		flushInterval: 30 * time.Second,
		probeTimeout:  3 * time.Second,
		logger:        slog.Default(),
		metrics:       observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Submit tries to deliver the action directly when the backend is reachable
// and otherwise persists it for a later flush. A deferred action is not an
// error: the caller gets nil and the delivery happens in the background.
func (q *ActionQueue) Submit(ctx context.Context, action PendingAction) error {
	if err := validateAction(action); err != nil {
		return err
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.EnqueuedAt.IsZero() {
		action.EnqueuedAt = time.Now().UTC()
	}

	probeCtx, cancel := context.WithTimeout(ctx, q.probeTimeout)
	err := q.backend.Ping(probeCtx)
	cancel()

	if err == nil {
		if err := q.backend.Deliver(ctx, q.remoteAction(action)); err == nil {
			q.logger.Info("action delivered directly", "id", action.ID, "type", action.Type)
			q.metrics.RecordActionFlushed(ctx, "delivered")
			q.bus.Publish(events.ActionsFlushed{Delivered: 1})
			return nil
		} else {
			q.logger.Warn("direct delivery failed, deferring action",
				"id", action.ID, "type", action.Type, "error", err)
		}
	} else {
		q.logger.Info("backend unreachable, deferring action",
			"id", action.ID, "type", action.Type)
	}

	if err := q.store.Put(ctx, KeyspaceActions, action.ID, action); err != nil {
		return err
	}
	q.metrics.ActionQueueDepth.Add(ctx, 1)
	return nil
}

// Flush delivers all pending actions in enqueue order. Each delivery is
// independent: one failure does not block the next. A failing action's
// RetryCount increments; on the failure that reaches the budget the action
// is dropped for good with a single audit log entry. Returns the number of
// delivered and dropped actions.
//
// Overlapping calls are collapsed: a Flush that finds another pass running
// returns immediately.
func (q *ActionQueue) Flush(ctx context.Context) (delivered, dropped int, err error) {
	if !q.flushMu.TryLock() {
		return 0, 0, nil
	}
	defer q.flushMu.Unlock()

	pending, err := q.Pending(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, action := range pending {
		if ctx.Err() != nil {
			break
		}

		if err := q.backend.Deliver(ctx, q.remoteAction(action)); err == nil {
			if err := q.store.Delete(ctx, KeyspaceActions, action.ID); err != nil {
				q.logger.Error("failed to remove delivered action", "id", action.ID, "error", err)
				continue
			}
			delivered++
			q.metrics.RecordActionFlushed(ctx, "delivered")
			q.metrics.ActionQueueDepth.Add(ctx, -1)
			continue
		} else {
			action.RetryCount++
			if action.RetryCount >= maxActionFailures {
				if derr := q.store.Delete(ctx, KeyspaceActions, action.ID); derr != nil {
					q.logger.Error("failed to remove dropped action", "id", action.ID, "error", derr)
					continue
				}
				dropped++
				q.metrics.RecordActionFlushed(ctx, "dropped")
				q.metrics.ActionQueueDepth.Add(ctx, -1)
				// The single audit entry for this action's lifetime.
				q.logger.Error("action permanently dropped after retry budget",
					"id", action.ID,
					"type", action.Type,
					"entity_id", action.EntityID,
					"enqueued_at", action.EnqueuedAt,
					"failures", action.RetryCount,
					"last_error", err)
				continue
			}
			q.logger.Warn("action delivery failed, will retry",
				"id", action.ID, "type", action.Type, "failures", action.RetryCount, "error", err)
			if perr := q.store.Put(ctx, KeyspaceActions, action.ID, action); perr != nil {
				q.logger.Error("failed to persist retry count", "id", action.ID, "error", perr)
			}
		}
	}

	if delivered > 0 || dropped > 0 {
		// Cached read views are stale after any server-side change.
		q.bus.Publish(events.ActionsFlushed{Delivered: delivered, Dropped: dropped})
	}
	return delivered, dropped, nil
}

// Pending returns all queued actions in enqueue order.
func (q *ActionQueue) Pending(ctx context.Context) ([]PendingAction, error) {
	raw, err := q.store.List(ctx, KeyspaceActions)
	if err != nil {
		return nil, err
	}

	actions := make([]PendingAction, 0, len(raw))
	for key, data := range raw {
		var a PendingAction
		if err := json.Unmarshal(data, &a); err != nil {
			q.logger.Error("skipping undecodable pending action", "key", key, "error", err)
			continue
		}
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].EnqueuedAt.Before(actions[j].EnqueuedAt)
	})
	return actions, nil
}

// Run flushes on a periodic ticker and on every reconnect event until ctx is
// done.
func (q *ActionQueue) Run(ctx context.Context) error {
	sub, unsubscribe := q.bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case ev := <-sub:
			cc, ok := ev.(events.ConnectionChanged)
			if !ok || !cc.Online {
				continue
			}
		}
		if _, _, err := q.Flush(ctx); err != nil {
			q.logger.Error("action queue flush failed", "error", err)
		}
	}
}

// remoteAction converts a PendingAction to the wire shape. The action ID
// doubles as the idempotency key so a retried delivery cannot duplicate.
func (q *ActionQueue) remoteAction(action PendingAction) remote.Action {
	return remote.Action{
		Type:           action.Type,
		EntityID:       action.EntityID,
		Payload:        action.Payload,
		IdempotencyKey: action.ID,
	}
}

// validateAction rejects malformed actions before they reach the store.
func validateAction(action PendingAction) error {
	switch action.Type {
	case remote.ActionCreateEntry, remote.ActionCreateResident:
		if len(action.Payload) == 0 {
			return fmt.Errorf("%w: %s requires a payload", ErrValidation, action.Type)
		}
	case remote.ActionUpdateEntry, remote.ActionApproveEntry,
		remote.ActionRejectEntry, remote.ActionUpdateResident:
		if action.EntityID == "" {
			return fmt.Errorf("%w: %s requires an entity id", ErrValidation, action.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrValidation, action.Type)
	}
	return nil
}
