// Package worker runs the background loops of the living map: the fanout
// worker that drains the retry queue, and the maintenance loop that reclaims
// stale claims, purges read notifications, and archives old prayers.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucentmaps/livingmap-backend/internal/domain"
	"github.com/lucentmaps/livingmap-backend/internal/retry"
	"github.com/lucentmaps/livingmap-backend/internal/services"
)

// FanoutWorker claims queued fanout tasks and runs the notification engine
// for each. Multiple workers may run concurrently; claim exclusivity in the
// store guarantees every item is processed by exactly one of them.
type FanoutWorker struct {
	Queue  *services.QueueService
	Fanout *services.FanoutService

	// PollInterval is the idle sleep between empty polls; <= 0 uses 5s.
	PollInterval time.Duration
	// BatchSize is how many items one poll claims; <= 0 uses 10.
	BatchSize int
	// Backoff wraps each fanout attempt; the zero value uses the default
	// policy.
	Backoff retry.Policy
}

// NewFanoutWorker constructs a worker with default cadence and backoff.
func NewFanoutWorker(queue *services.QueueService, fanout *services.FanoutService) *FanoutWorker {
	return &FanoutWorker{
		Queue:        queue,
		Fanout:       fanout,
		PollInterval: 5 * time.Second,
		BatchSize:    10,
		Backoff:      retry.DefaultPolicy(),
	}
}

func (w *FanoutWorker) pollInterval() time.Duration {
	if w.PollInterval > 0 {
		return w.PollInterval
	}
	return 5 * time.Second
}

func (w *FanoutWorker) batchSize() int {
	if w.BatchSize > 0 {
		return w.BatchSize
	}
	return 10
}

func (w *FanoutWorker) backoff() retry.Policy {
	if w.Backoff.MaxAttempts > 0 {
		return w.Backoff
	}
	return retry.DefaultPolicy()
}

// Run drains the queue until ctx is cancelled. Empty polls sleep for the
// poll interval; busy polls go straight back for more.
func (w *FanoutWorker) Run(ctx context.Context) {
	log.Info().
		Dur("poll_interval", w.pollInterval()).
		Int("batch_size", w.batchSize()).
		Msg("fanout worker started")

	for {
		n, err := w.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("fanout worker poll failed")
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("fanout worker stopped")
			return
		case <-time.After(w.pollInterval()):
		}
	}
}

// RunOnce claims one batch and processes it, returning how many items were
// claimed. Tests drive the worker through this method directly.
func (w *FanoutWorker) RunOnce(ctx context.Context) (int, error) {
	items, err := w.Queue.ClaimBatch(ctx, w.batchSize())
	if err != nil {
		return 0, err
	}
	for i := range items {
		w.process(ctx, &items[i])
	}
	return len(items), nil
}

// process runs one claimed item to a terminal state: completed on success,
// requeued or dead-lettered on failure.
func (w *FanoutWorker) process(ctx context.Context, item *domain.QueueItem) {
	err := w.handle(ctx, item)
	if err == nil {
		if cerr := w.Queue.Complete(ctx, item.ID); cerr != nil {
			log.Error().Err(cerr).Str("item_id", item.ID).Msg("queue completion failed")
		}
		return
	}

	outcome, ferr := w.Queue.Fail(ctx, item, err)
	if ferr != nil {
		log.Error().Err(ferr).Str("item_id", item.ID).Msg("queue failure handling failed")
		return
	}
	log.Warn().
		Err(err).
		Str("item_id", item.ID).
		Str("kind", item.Kind).
		Str("outcome", string(outcome)).
		Msg("queue item failed")
}

// handle decodes and executes a single item. Malformed payloads and unknown
// kinds are permanent failures; the retry policy only covers transient store
// errors inside the fanout itself.
func (w *FanoutWorker) handle(ctx context.Context, item *domain.QueueItem) error {
	switch item.Kind {
	case domain.QueueKindFanout:
		var task domain.FanoutTask
		if err := json.Unmarshal(item.Payload, &task); err != nil {
			return err
		}
		return retry.DoIf(ctx, w.backoff(), func() error {
			_, err := w.Fanout.FanoutForEvent(ctx, task.PrayerID, task.Type,
				task.OriginLat, task.OriginLng, task.ActorUserID, task.PreviewText)
			return err
		}, retryableFanoutErr)
	default:
		return errors.New("unknown queue kind: " + item.Kind)
	}
}

// retryableFanoutErr separates transient store errors from permanent ones.
// A vanished prayer or a bad notification type will not heal with retries.
func retryableFanoutErr(err error) bool {
	switch {
	case errors.Is(err, services.ErrPrayerNotFound),
		errors.Is(err, services.ErrInvalidNotificationType):
		return false
	}
	return true
}

// Maintenance periodically reclaims stale queue claims, purges old read
// notifications, and archives prayers past their discoverability window.
type Maintenance struct {
	Queue  *services.QueueService
	Notif  *services.NotificationService
	Prayer *services.PrayerService

	// Interval between sweeps; <= 0 uses 10 minutes.
	Interval time.Duration
}

func (m *Maintenance) interval() time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return 10 * time.Minute
}

// Run sweeps until ctx is cancelled.
func (m *Maintenance) Run(ctx context.Context) {
	t := time.NewTicker(m.interval())
	defer t.Stop()

	log.Info().Dur("interval", m.interval()).Msg("maintenance loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maintenance loop stopped")
			return
		case <-t.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass. Each step is independent; failures are
// logged and do not block the others.
func (m *Maintenance) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	if m.Queue != nil {
		if n, err := m.Queue.ResetStale(ctx); err != nil {
			log.Error().Err(err).Msg("stale claim reset failed")
		} else if n > 0 {
			log.Info().Int64("reset", n).Msg("stale queue claims reclaimed")
		}
	}
	if m.Notif != nil {
		if n, err := m.Notif.PurgeRead(ctx, now); err != nil {
			log.Error().Err(err).Msg("read notification purge failed")
		} else if n > 0 {
			log.Info().Int64("purged", n).Msg("read notifications purged")
		}
	}
	if m.Prayer != nil {
		if n, err := m.Prayer.ArchiveExpired(ctx, now); err != nil {
			log.Error().Err(err).Msg("prayer archival failed")
		} else if n > 0 {
			log.Info().Int64("archived", n).Msg("prayers archived")
		}
	}
}
