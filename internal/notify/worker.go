package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"senfret/internal/logging"
	"senfret/internal/metrics"
	"senfret/internal/models"
	"senfret/internal/store"
)

const (
	backoffBase = 5 * time.Second
	backoffCap  = 10 * time.Minute
)

type Deliverer interface {
	Deliver(ctx context.Context, m models.OutboxMessage) error
}

// Sweeper runs periodic maintenance next to the outbox loop.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Worker polls the outbox, delivers due messages and reschedules failures.
type Worker struct {
	store       store.OutboxStore
	deliverer   Deliverer
	interval    time.Duration
	maxAttempts int
	lease       time.Duration
	batch       int

	sweeper       Sweeper
	sweepInterval time.Duration

	now func() time.Time
	log zerolog.Logger
}

func NewWorker(s store.OutboxStore, d Deliverer, interval time.Duration, maxAttempts int) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Worker{
		store:       s,
		deliverer:   d,
		interval:    interval,
		maxAttempts: maxAttempts,
		lease:       time.Minute,
		batch:       50,
		now:         time.Now,
		log:         logging.New("outbox-worker"),
	}
}

// WithSweeper runs s every interval in the worker loop.
func (w *Worker) WithSweeper(s Sweeper, interval time.Duration) *Worker {
	w.sweeper = s
	w.sweepInterval = interval
	return w
}

// Backoff is the delay before attempt+1: 5s doubling per attempt, capped at
// ten minutes.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var sweep <-chan time.Time
	if w.sweeper != nil && w.sweepInterval > 0 {
		sweepTicker := time.NewTicker(w.sweepInterval)
		defer sweepTicker.Stop()
		sweep = sweepTicker.C
	}

	w.log.Info().Dur("interval", w.interval).Int("maxAttempts", w.maxAttempts).Msg("outbox worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("outbox worker stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error().Err(err).Msg("outbox poll failed")
			}
		case <-sweep:
			n, err := w.sweeper.SweepExpired(ctx, w.now())
			if err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error().Err(err).Msg("sweep failed")
			} else if n > 0 {
				w.log.Info().Int("archived", n).Msg("expired quotes archived")
			}
		}
	}
}

// ProcessOnce claims one batch of due messages and delivers them.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	claimed, err := w.store.ClaimOutbox(ctx, w.now(), w.lease, w.batch)
	if err != nil {
		return 0, err
	}
	for _, m := range claimed {
		w.handle(ctx, m)
	}
	return len(claimed), nil
}

func (w *Worker) handle(ctx context.Context, m models.OutboxMessage) {
	err := w.deliverer.Deliver(ctx, m)
	if err == nil {
		if err := w.store.CompleteOutbox(ctx, m.ID); err != nil {
			w.log.Error().Err(err).Str("id", m.ID.Hex()).Msg("complete failed")
		}
		metrics.OutboxDeliveries.WithLabelValues(m.Kind, "done").Inc()
		return
	}

	attempts := m.Attempts + 1
	dead := attempts >= w.maxAttempts || errors.Is(err, ErrMalformed)
	next := w.now().Add(Backoff(attempts))

	result := "retry"
	event := w.log.Warn()
	if dead {
		result = "dead"
		event = w.log.Error()
	}
	event.Err(err).
		Str("id", m.ID.Hex()).
		Str("kind", m.Kind).
		Int("attempts", attempts).
		Time("next", next).
		Msg("delivery failed")

	if err := w.store.FailOutbox(ctx, m.ID, attempts, next, err.Error(), dead); err != nil {
		w.log.Error().Err(err).Str("id", m.ID.Hex()).Msg("reschedule failed")
	}
	metrics.OutboxDeliveries.WithLabelValues(m.Kind, result).Inc()
}
