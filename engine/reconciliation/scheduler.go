package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/cardlifecycle"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

const defaultInterval = 10 * time.Second

const (
	// TickDurationMetric tracks how long a whole tick takes.
	TickDurationMetric = "reconciliation_tick_duration_seconds"

	// RowsTransitionedMetric records how many rows a step wrote, labeled by step.
	RowsTransitionedMetric = "reconciliation_rows_transitioned"

	// StepFailedMetric counts failed steps, labeled by step.
	StepFailedMetric = "reconciliation_step_failures_total"

	StepExpireCards          = "expire_cards"
	StepUnsuspendCards       = "unsuspend_cards"
	StepExpireBorrowRequests = "expire_borrow_requests"

	LogMsgSchedulerStarted = "reconciliation scheduler started"
	LogMsgSchedulerStopped = "reconciliation scheduler stopped"
	LogMsgStepCompleted    = "reconciliation step completed"
	LogMsgStepFailed       = "reconciliation step failed"
	LogAttrStep            = "step"
	LogAttrRows            = "rows"
	LogAttrInterval        = "interval"
	SpanNameTick           = "reconciliation.tick"
)

var (
	// ErrInvalidInterval is returned when the polling interval is not positive.
	ErrInvalidInterval = errors.New("interval must be positive")

	// ErrNilClock is returned when a nil clock is provided.
	ErrNilClock = errors.New("clock must not be nil")
)

// Store defines the queries and the writer the Scheduler needs.
type Store interface {
	CardsByIDs(ctx context.Context, ids []uuid.UUID) ([]circulation.LibraryCard, error)
	CardsDueForExpiry(ctx context.Context, now time.Time) ([]circulation.LibraryCard, error)
	CardsDueForUnsuspension(ctx context.Context, now time.Time) ([]circulation.LibraryCard, error)
	RequestsDueForExpiry(ctx context.Context, now time.Time) ([]circulation.BorrowRequest, error)
	circulation.Applier
}

// Scheduler runs the reconciliation sweep. It must run as exactly one instance.
type Scheduler struct {
	store        Store
	clock        circulation.Clock
	settings     circulation.BorrowSettings
	interval     time.Duration
	retryOptions []shell.RetryOption
	shell.Observability
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithInterval sets the time between two ticks.
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}

		s.interval = interval

		return nil
	}
}

// WithClock sets the business clock.
func WithClock(clock circulation.Clock) Option {
	return func(s *Scheduler) error {
		if clock == nil {
			return ErrNilClock
		}

		s.clock = clock

		return nil
	}
}

// WithSettings overrides the default borrow settings.
func WithSettings(settings circulation.BorrowSettings) Option {
	return func(s *Scheduler) error {
		if err := settings.Validate(); err != nil {
			return err
		}

		s.settings = settings

		return nil
	}
}

// WithRetryOptions overrides how a step retries when an interactive operation changed the same rows.
func WithRetryOptions(options ...shell.RetryOption) Option {
	return func(s *Scheduler) error {
		s.retryOptions = options
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger circulation.Logger) Option {
	return func(s *Scheduler) error {
		s.Logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, preferred over the plain one.
func WithContextualLogger(logger circulation.ContextualLogger) Option {
	return func(s *Scheduler) error {
		s.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector circulation.MetricsCollector) Option {
	return func(s *Scheduler) error {
		s.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector.
func WithTracing(collector circulation.TracingCollector) Option {
	return func(s *Scheduler) error {
		s.Tracing = collector
		return nil
	}
}

// NewScheduler creates a Scheduler on store.
func NewScheduler(store Store, options ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	clock, err := circulation.NewBusinessClock(circulation.DefaultBusinessTimezone)
	if err != nil {
		return nil, err
	}

	scheduler := &Scheduler{
		store:    store,
		clock:    clock,
		settings: circulation.DefaultBorrowSettings(),
		interval: defaultInterval,
	}

	for _, option := range options {
		if err := option(scheduler); err != nil {
			return nil, err
		}
	}

	return scheduler, nil
}

// Run ticks every interval until ctx is done. A tick that is running when ctx ends is finished first.
// Ticks never overlap, a slow tick delays the next one instead.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Info(ctx, LogMsgSchedulerStarted, LogAttrInterval, s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.Info(ctx, LogMsgSchedulerStopped)
			return nil

		case <-ticker.C:
			_ = s.Tick(context.WithoutCancel(ctx)) // failures are logged per step
		}
	}
}

// Tick runs the three steps in order. A failing step does not stop the later ones.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	ctx, span := s.StartSpan(ctx, SpanNameTick, nil)

	var errs []error

	for _, step := range []struct {
		name string
		run  func(context.Context) (int64, error)
	}{
		{StepExpireCards, s.ExpireCards},
		{StepUnsuspendCards, s.UnsuspendCards},
		{StepExpireBorrowRequests, s.ExpireBorrowRequests},
	} {
		rows, err := step.run(ctx)
		if err != nil {
			s.Error(ctx, LogMsgStepFailed, LogAttrStep, step.name, shell.LogAttrError, err.Error())
			s.IncrementCounter(ctx, StepFailedMetric, map[string]string{LogAttrStep: step.name})
			errs = append(errs, err)

			continue
		}

		s.RecordValue(ctx, RowsTransitionedMetric, float64(rows), map[string]string{LogAttrStep: step.name})

		if rows > 0 {
			s.Info(ctx, LogMsgStepCompleted, LogAttrStep, step.name, LogAttrRows, rows)
		}
	}

	err := errors.Join(errs...)
	duration := time.Since(start)

	status := shell.StatusSuccess
	if err != nil {
		status = shell.StatusError
	}

	s.RecordDuration(ctx, TickDurationMetric, duration, map[string]string{shell.LogAttrStatus: status})
	s.FinishSpan(span, status, duration, err)

	return err
}

// ExpireCards expires every Active card past its ExpiryDate in one commit.
func (s *Scheduler) ExpireCards(ctx context.Context) (int64, error) {
	return s.step(ctx, StepExpireCards, func(ctx context.Context, now time.Time) (*circulation.ChangeSet, error) {
		cards, err := s.store.CardsDueForExpiry(ctx, now)
		if err != nil {
			return nil, err
		}

		changes := circulation.NewChangeSet()

		for _, card := range cards {
			if next, due := cardlifecycle.DecideExpiry(card, now); due {
				changes.UpdateCard(next)
			}
		}

		return changes, nil
	})
}

// UnsuspendCards lifts every suspension whose end date has passed in one commit.
func (s *Scheduler) UnsuspendCards(ctx context.Context) (int64, error) {
	return s.step(ctx, StepUnsuspendCards, func(ctx context.Context, now time.Time) (*circulation.ChangeSet, error) {
		cards, err := s.store.CardsDueForUnsuspension(ctx, now)
		if err != nil {
			return nil, err
		}

		changes := circulation.NewChangeSet()

		for _, card := range cards {
			if next, due := cardlifecycle.DecideUnsuspension(card, now); due {
				changes.UpdateCard(next)
			}
		}

		return changes, nil
	})
}

// ExpireBorrowRequests expires every pickup request past its ExpirationDate and counts the miss against the
// requesting card, suspending cards that reach the allowed total. Requests and cards are committed together.
func (s *Scheduler) ExpireBorrowRequests(ctx context.Context) (int64, error) {
	return s.step(ctx, StepExpireBorrowRequests, func(ctx context.Context, now time.Time) (*circulation.ChangeSet, error) {
		requests, err := s.store.RequestsDueForExpiry(ctx, now)
		if err != nil || len(requests) == 0 {
			return nil, err
		}

		changes := circulation.NewChangeSet()
		misses := make(map[uuid.UUID]int)
		cardIDs := make([]uuid.UUID, 0, len(requests))

		for _, request := range requests {
			if request.Status != circulation.BorrowRequestCreated || now.Before(request.ExpirationDate) {
				continue
			}

			request.Status = circulation.BorrowRequestExpired
			changes.UpdateRequest(request)

			if request.LibraryCardID == uuid.Nil {
				continue
			}

			if misses[request.LibraryCardID] == 0 {
				cardIDs = append(cardIDs, request.LibraryCardID)
			}

			misses[request.LibraryCardID]++
		}

		if len(cardIDs) == 0 {
			return changes, nil
		}

		cards, err := s.store.CardsByIDs(ctx, cardIDs)
		if err != nil {
			return nil, err
		}

		for _, card := range cards {
			next, _ := cardlifecycle.DecideMissedPickUp(card, misses[card.ID], now, s.settings)
			changes.UpdateCard(next)
		}

		return changes, nil
	})
}

// step reads and decides with a fresh business time and commits the result, starting over when an
// interactive operation changed one of the rows in between.
func (s *Scheduler) step(
	ctx context.Context,
	name string,
	decide func(ctx context.Context, now time.Time) (*circulation.ChangeSet, error),
) (int64, error) {
	var rows int64

	retryOptions := s.retryOptions
	if s.Metrics != nil {
		retryOptions = append(retryOptions[:len(retryOptions):len(retryOptions)], shell.WithRetryMetrics(s.Metrics, name))
	}

	_, err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		rows = 0

		changes, err := decide(circulation.WithStrongConsistency(ctx), s.clock.Now())
		if err != nil || changes.IsEmpty() {
			return err
		}

		rows, err = s.store.Apply(ctx, changes)

		return err
	}, retryOptions...)

	return rows, err
}
