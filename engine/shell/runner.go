package shell

import (
	"context"
	"time"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// DecideFunc reads the current state and returns a pure decision about it.
// A returned error is an infrastructure failure, business rule violations come back as ErrorDecision.
type DecideFunc func(ctx context.Context) (Decision, error)

// Runner executes read-decide-apply cycles.
// Each cycle reads with strong consistency, applies the decided ChangeSet atomically,
// and starts over with exponential backoff when a version check fails.
// Notifications of a committed decision are sent afterwards; their failure only adds a warning.
type Runner struct {
	applier      circulation.Applier
	notifier     circulation.Notifier
	retryOptions []RetryOption
	Observability
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// NewRunner creates a Runner committing through applier.
func NewRunner(applier circulation.Applier, options ...RunnerOption) (*Runner, error) {
	if applier == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	runner := &Runner{applier: applier}

	for _, option := range options {
		if err := option(runner); err != nil {
			return nil, err
		}
	}

	return runner, nil
}

// WithNotifier sets the best-effort notifier.
func WithNotifier(notifier circulation.Notifier) RunnerOption {
	return func(r *Runner) error {
		r.notifier = notifier
		return nil
	}
}

// WithRetryOptions overrides the retry defaults.
func WithRetryOptions(options ...RetryOption) RunnerOption {
	return func(r *Runner) error {
		r.retryOptions = options
		return nil
	}
}

// WithObservability sets logging, metrics, and tracing.
func WithObservability(observability Observability) RunnerOption {
	return func(r *Runner) error {
		r.Observability = observability
		return nil
	}
}

// Run executes decide with retry and instruments the whole operation under commandType.
func (r *Runner) Run(ctx context.Context, commandType string, decide DecideFunc) (HandlerResult, error) {
	start := time.Now()
	ctx, span := r.StartSpan(ctx, SpanNameCommandHandle, map[string]string{LogAttrCommandType: commandType})
	r.Debug(ctx, LogMsgCommandStarted, LogAttrCommandType, commandType)

	result, err := r.execute(ctx, commandType, decide)

	duration := time.Since(start)
	status := StatusOf(result, err)
	r.RecordCommandMetrics(ctx, commandType, status, duration)
	r.FinishSpan(span, status, duration, err)

	switch status {
	case StatusSuccess, StatusIdempotent:
		r.Info(ctx, LogMsgCommandCompleted,
			LogAttrCommandType, commandType,
			LogAttrStatus, status,
			LogAttrCode, string(result.Outcome.Code),
			LogAttrRowsAffected, result.RowsAffected,
			LogAttrRetryAttempts, result.RetryAttempts,
			LogAttrDurationMS, ToMilliseconds(duration))

	case StatusRejected:
		r.Info(ctx, LogMsgCommandRejected,
			LogAttrCommandType, commandType,
			LogAttrError, err.Error(),
			LogAttrDurationMS, ToMilliseconds(duration))

	default:
		r.Error(ctx, LogMsgCommandFailed,
			LogAttrCommandType, commandType,
			LogAttrStatus, status,
			LogAttrError, err.Error(),
			LogAttrRetryAttempts, result.RetryAttempts,
			LogAttrDurationMS, ToMilliseconds(duration))
	}

	return result, err
}

func (r *Runner) execute(ctx context.Context, commandType string, decide DecideFunc) (HandlerResult, error) {
	var decision Decision
	var rowsAffected int64

	retryOptions := r.retryOptions
	if r.Metrics != nil {
		retryOptions = append(retryOptions[:len(retryOptions):len(retryOptions)], WithRetryMetrics(r.Metrics, commandType))
	}

	retryMetrics, err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		var decideErr error

		decision, decideErr = decide(circulation.WithStrongConsistency(retryCtx))
		if decideErr != nil {
			return decideErr
		}

		if businessErr := decision.HasError(); businessErr != nil {
			return businessErr
		}

		if !decision.HasChangesToApply() {
			return nil
		}

		var applyErr error
		rowsAffected, applyErr = r.applier.Apply(retryCtx, decision.Changes)

		return applyErr
	}, retryOptions...)

	if err != nil {
		return NewErrorResult(retryMetrics), err
	}

	if decision.IsIdempotent() {
		return NewIdempotentResult(decision.Result, retryMetrics), nil
	}

	outcome := decision.Result
	if warning := r.notify(ctx, decision.Notifications); warning != "" {
		outcome.Warnings = append(outcome.Warnings, warning)
	}

	return NewSuccessResult(outcome, rowsAffected, retryMetrics), nil
}

// notify sends notifications after the commit. It reports a warning code instead of failing.
func (r *Runner) notify(ctx context.Context, notifications []circulation.Notification) circulation.Code {
	if r.notifier == nil || len(notifications) == 0 {
		return ""
	}

	var warning circulation.Code

	for _, notification := range notifications {
		if err := r.notifier.Notify(ctx, notification); err != nil {
			r.Warn(ctx, LogMsgNotificationFailed,
				LogAttrNotificationKind, string(notification.Kind),
				LogAttrError, err.Error())
			r.IncrementCounter(ctx, NotificationFailedMetric, map[string]string{
				LogAttrNotificationKind: string(notification.Kind),
			})

			warning = circulation.CodeNotificationNotSent
		}
	}

	return warning
}
