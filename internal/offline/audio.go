package offline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curanote/curanote/internal/events"
	"github.com/curanote/curanote/internal/observe"
)

const (
	// maxAudioFailures is the transcription attempt budget per clip. A clip
	// reaching it is marked processed and silently abandoned, not deleted.
	maxAudioFailures = 3

	// defaultRetention is how long clips are kept before the sweep purges
	// them regardless of processed state.
	defaultRetention = 7 * 24 * time.Hour
)

// PendingAudio is one staged clip awaiting normalization.
type PendingAudio struct {
	ID         string    `json:"id"`
	ResidentID string    `json:"residentId"`
	DraftID    string    `json:"draftId,omitempty"`
	Audio      []byte    `json:"audio"`
	MimeType   string    `json:"mimeType"`
	CreatedAt  time.Time `json:"createdAt"`
	Processed  bool      `json:"processed"`
	RetryCount int       `json:"retryCount"`
}

// Processor turns a staged clip into a draft care record. Returning an error
// leaves the clip queued for the next sweep.
type Processor interface {
	Process(ctx context.Context, clip PendingAudio) (draftID string, err error)
}

// ProcessorFunc adapts a function to the [Processor] interface.
type ProcessorFunc func(ctx context.Context, clip PendingAudio) (string, error)

func (f ProcessorFunc) Process(ctx context.Context, clip PendingAudio) (string, error) {
	return f(ctx, clip)
}

// AudioQueueOption is a functional option for configuring an [AudioQueue].
type AudioQueueOption func(*AudioQueue)

// WithSweepInterval sets the periodic sweep interval. Default: 30s.
func WithSweepInterval(d time.Duration) AudioQueueOption {
	return func(q *AudioQueue) {
		q.sweepInterval = d
	}
}

// WithRetention sets the maximum clip age before forced purge. Default: 7 days.
func WithRetention(d time.Duration) AudioQueueOption {
	return func(q *AudioQueue) {
		q.retention = d
	}
}

// WithAudioProbe sets the liveness probe consulted before opportunistic
// processing at stage time. Without one, staged clips wait for the sweep.
func WithAudioProbe(probe func(ctx context.Context) error) AudioQueueOption {
	return func(q *AudioQueue) {
		q.probe = probe
	}
}

// WithAudioLogger sets the logger. Default: [slog.Default].
func WithAudioLogger(logger *slog.Logger) AudioQueueOption {
	return func(q *AudioQueue) {
		q.logger = logger
	}
}

// WithAudioMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithAudioMetrics(m *observe.Metrics) AudioQueueOption {
	return func(q *AudioQueue) {
		q.metrics = m
	}
}

// AudioQueue stages every captured clip durably before any network attempt
// and retries unprocessed clips until they succeed, exhaust their budget, or
// age out. Safe for concurrent use; sweep passes are serialized and each
// clip is processed by at most one attempt at a time.
type AudioQueue struct {
	store     *Store
	processor Processor
	bus       *events.Bus
	probe     func(ctx context.Context) error

	sweepInterval time.Duration
	retention     time.Duration

	logger  *slog.Logger
	metrics *observe.Metrics

	sweepMu sync.Mutex

	// inFlightMu guards inFlight, the IDs of clips currently inside the
	// processor. A sweep overlapping a stage-time attempt must not hand the
	// same clip to the processor twice: that would submit two drafts with
	// distinct idempotency keys the backend cannot dedupe.
	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
}

// NewAudioQueue returns an [AudioQueue] persisting through store and
// normalizing through processor.
func NewAudioQueue(store *Store, processor Processor, bus *events.Bus, opts ...AudioQueueOption) *AudioQueue {
	q := &AudioQueue{
		store:         store,
		processor:     processor,
		bus:           bus,
		sweepInterval: 30 * time.Second,
		retention:     defaultRetention,
		logger:        slog.Default(),
		metrics:       observe.DefaultMetrics(),
		inFlight:      make(map[string]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Stage persists the clip and returns. When the probe reports the network
// live, processing starts opportunistically on a background goroutine; the
// caller never waits for the pipeline. The staged copy is kept until the
// processor confirms success; a failed opportunistic attempt counts against
// the clip's budget.
func (q *AudioQueue) Stage(ctx context.Context, clip PendingAudio) (string, error) {
	if clip.ID == "" {
		clip.ID = uuid.NewString()
	}
	if clip.CreatedAt.IsZero() {
		clip.CreatedAt = time.Now().UTC()
	}

	if err := q.store.Put(ctx, KeyspaceAudio, clip.ID, clip); err != nil {
		return "", err
	}
	q.metrics.AudioQueueDepth.Add(ctx, 1)
	q.logger.Info("audio clip staged", "id", clip.ID, "resident", clip.ResidentID)

	if q.probe != nil {
		// The attempt outlives the staging request, so it must not die with
		// the request context.
		bgCtx := context.WithoutCancel(ctx)
		go func() {
			probeCtx, cancel := context.WithTimeout(bgCtx, 3*time.Second)
			err := q.probe(probeCtx)
			cancel()
			if err == nil {
				q.attempt(bgCtx, &clip)
			}
		}()
	}
	return clip.ID, nil
}

// Sweep retries every unprocessed clip and purges clips past retention.
// Overlapping calls are collapsed.
func (q *AudioQueue) Sweep(ctx context.Context) error {
	if !q.sweepMu.TryLock() {
		return nil
	}
	defer q.sweepMu.Unlock()

	clips, err := q.all(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-q.retention)
	for i := range clips {
		if ctx.Err() != nil {
			break
		}
		clip := &clips[i]

		if clip.CreatedAt.Before(cutoff) {
			if err := q.store.Delete(ctx, KeyspaceAudio, clip.ID); err != nil {
				q.logger.Error("failed to purge expired clip", "id", clip.ID, "error", err)
				continue
			}
			q.metrics.AudioQueueDepth.Add(ctx, -1)
			q.logger.Info("expired audio clip purged",
				"id", clip.ID, "created_at", clip.CreatedAt, "processed", clip.Processed)
			continue
		}

		if clip.Processed {
			continue
		}
		q.attempt(ctx, clip)
	}
	return nil
}

// attempt runs the processor for one clip and records the outcome: success
// removes the clip, a failure within budget requeues it, and the failure
// that exhausts the budget marks it processed without deleting it.
//
// A clip already inside another attempt is skipped, and the clip state is
// reloaded after acquiring the in-flight slot: both guard against a sweep
// that listed the clip while a stage-time attempt was still running.
func (q *AudioQueue) attempt(ctx context.Context, clip *PendingAudio) {
	if !q.begin(clip.ID) {
		return
	}
	defer q.end(clip.ID)

	var current PendingAudio
	ok, err := q.store.Get(ctx, KeyspaceAudio, clip.ID, &current)
	if err != nil {
		q.logger.Error("failed to reload clip state", "id", clip.ID, "error", err)
		return
	}
	if !ok || current.Processed {
		return
	}
	*clip = current

	draftID, err := q.processor.Process(ctx, *clip)
	if err == nil {
		if derr := q.store.Delete(ctx, KeyspaceAudio, clip.ID); derr != nil {
			q.logger.Error("failed to remove processed clip", "id", clip.ID, "error", derr)
			return
		}
		clip.Processed = true
		q.metrics.AudioProcessed.Add(ctx, 1)
		q.metrics.AudioQueueDepth.Add(ctx, -1)
		q.bus.Publish(events.AudioProcessed{AudioID: clip.ID, DraftID: draftID})
		return
	}

	clip.RetryCount++
	if clip.RetryCount >= maxAudioFailures {
		clip.Processed = true
		q.logger.Error("audio clip abandoned after retry budget",
			"id", clip.ID, "resident", clip.ResidentID, "failures", clip.RetryCount, "last_error", err)
	} else {
		q.logger.Warn("audio processing failed, will retry",
			"id", clip.ID, "failures", clip.RetryCount, "error", err)
	}
	if perr := q.store.Put(ctx, KeyspaceAudio, clip.ID, *clip); perr != nil {
		q.logger.Error("failed to persist clip state", "id", clip.ID, "error", perr)
	}
}

// begin claims the in-flight slot for a clip. It reports false when another
// attempt holds it.
func (q *AudioQueue) begin(id string) bool {
	q.inFlightMu.Lock()
	defer q.inFlightMu.Unlock()
	if _, busy := q.inFlight[id]; busy {
		return false
	}
	q.inFlight[id] = struct{}{}
	return true
}

func (q *AudioQueue) end(id string) {
	q.inFlightMu.Lock()
	delete(q.inFlight, id)
	q.inFlightMu.Unlock()
}

// Pending returns all staged clips in capture order, processed ones
// included.
func (q *AudioQueue) Pending(ctx context.Context) ([]PendingAudio, error) {
	return q.all(ctx)
}

// all loads every clip sorted by creation time.
func (q *AudioQueue) all(ctx context.Context) ([]PendingAudio, error) {
	raw, err := q.store.List(ctx, KeyspaceAudio)
	if err != nil {
		return nil, err
	}

	clips := make([]PendingAudio, 0, len(raw))
	for key, data := range raw {
		var c PendingAudio
		if err := json.Unmarshal(data, &c); err != nil {
			q.logger.Error("skipping undecodable pending clip", "key", key, "error", err)
			continue
		}
		clips = append(clips, c)
	}
	sort.Slice(clips, func(i, j int) bool {
		return clips[i].CreatedAt.Before(clips[j].CreatedAt)
	})
	return clips, nil
}

// Run sweeps on a periodic ticker and on every reconnect event until ctx is
// done.
func (q *AudioQueue) Run(ctx context.Context) error {
	sub, unsubscribe := q.bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(q.sweepInterval)
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
		if err := q.Sweep(ctx); err != nil {
			q.logger.Error("audio queue sweep failed", "error", err)
		}
	}
}
