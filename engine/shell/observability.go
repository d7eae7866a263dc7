package shell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

const (
	// CommandDurationMetric tracks engine operation duration.
	CommandDurationMetric = "circulation_command_duration_seconds"

	// CommandCallsMetric tracks engine operation calls by status.
	CommandCallsMetric = "circulation_command_calls_total"

	// CommandIdempotentMetric tracks operations that had nothing to change.
	CommandIdempotentMetric = "circulation_command_idempotent_total"

	// CommandRejectedMetric tracks operations stopped by a business rule.
	CommandRejectedMetric = "circulation_command_rejected_total"

	// CommandConcurrencyConflictMetric tracks operations that gave up on optimistic concurrency conflicts.
	CommandConcurrencyConflictMetric = "circulation_command_concurrency_conflicts_total"

	// CommandRetriesMetric tracks retry attempts, labeled by command type, attempt number, and error type.
	CommandRetriesMetric = "circulation_command_retries_total"

	// CommandRetryDelayMetric tracks backoff delays before each retry.
	CommandRetryDelayMetric = "circulation_command_retry_delay_seconds"

	// CommandMaxRetriesReachedMetric tracks exhausted retries.
	CommandMaxRetriesReachedMetric = "circulation_command_max_retries_reached_total"

	// NotificationFailedMetric tracks notifications that could not be delivered after a commit.
	NotificationFailedMetric = "circulation_notification_failed_total"

	StatusSuccess             = "success"
	StatusError               = "error"
	StatusRejected            = "rejected"
	StatusIdempotent          = "idempotent"
	StatusCanceled            = "canceled"
	StatusTimeout             = "timeout"
	StatusConcurrencyConflict = "concurrency_conflict"

	LogMsgCommandStarted      = "circulation command started"
	LogMsgCommandCompleted    = "circulation command completed"
	LogMsgCommandRejected     = "circulation command rejected"
	LogMsgCommandFailed       = "circulation command failed"
	LogMsgNotificationFailed  = "notification could not be sent"
	LogMsgCompensationFailed  = "compensation after failed commit did not succeed"
	LogAttrCommandType        = "command_type"
	LogAttrStatus             = "status"
	LogAttrCode               = "code"
	LogAttrDurationMS         = "duration_ms"
	LogAttrRowsAffected       = "rows_affected"
	LogAttrRetryAttempts      = "retry_attempts"
	LogAttrError              = "error"
	LogAttrNotificationKind   = "notification_kind"
	SpanNameCommandHandle     = "circulation.command"
	spanAttrErrorType         = "error_type"
)

// Observability bundles the optional logging, metrics, and tracing collaborators of a component.
// Every field may be nil.
type Observability struct {
	Logger           circulation.Logger
	ContextualLogger circulation.ContextualLogger
	Metrics          circulation.MetricsCollector
	Tracing          circulation.TracingCollector
}

// BuildCommandLabels creates the standard metric labels of an engine operation.
func BuildCommandLabels(commandType, status string) map[string]string {
	return map[string]string{
		LogAttrCommandType: commandType,
		LogAttrStatus:      status,
	}
}

// BuildRetryLabels creates the metric labels of one retry attempt.
func BuildRetryLabels(commandType string, attemptNumber int, errorType string) map[string]string {
	return map[string]string{
		LogAttrCommandType: commandType,
		"attempt_number":   fmt.Sprintf("%d", attemptNumber),
		"error_type":       errorType,
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds.
func ToMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// StatusOf classifies how an operation ended.
func StatusOf(result HandlerResult, err error) string {
	switch {
	case err == nil && result.Idempotent:
		return StatusIdempotent
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, circulation.ErrConcurrencyConflict):
		return StatusConcurrencyConflict
	case circulation.IsBusinessOutcome(err):
		return StatusRejected
	default:
		return StatusError
	}
}

// IncrementCounter increments metric on the collector, preferring the context-aware method.
func (o Observability) IncrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		o.Metrics.IncrementCounter(metric, labels)
	}
}

// RecordDuration records metric on the collector, preferring the context-aware method.
func (o Observability) RecordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		o.Metrics.RecordDuration(metric, duration, labels)
	}
}

// RecordValue records a gauge value on the collector, preferring the context-aware method.
func (o Observability) RecordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
	} else {
		o.Metrics.RecordValue(metric, value, labels)
	}
}

// RecordCommandMetrics records duration and call count of an operation, plus the counter matching its status.
func (o Observability) RecordCommandMetrics(ctx context.Context, commandType, status string, duration time.Duration) {
	labels := BuildCommandLabels(commandType, status)
	o.RecordDuration(ctx, CommandDurationMetric, duration, labels)
	o.IncrementCounter(ctx, CommandCallsMetric, labels)

	switch status {
	case StatusIdempotent:
		o.IncrementCounter(ctx, CommandIdempotentMetric, labels)
	case StatusRejected:
		o.IncrementCounter(ctx, CommandRejectedMetric, labels)
	case StatusConcurrencyConflict:
		o.IncrementCounter(ctx, CommandConcurrencyConflictMetric, labels)
	}
}

// StartSpan starts a tracing span, or returns ctx and nil if tracing is disabled.
func (o Observability) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, circulation.SpanContext) {
	if o.Tracing == nil {
		return ctx, nil
	}

	return o.Tracing.StartSpan(ctx, name, attrs)
}

// FinishSpan completes a span started with StartSpan.
func (o Observability) FinishSpan(span circulation.SpanContext, status string, duration time.Duration, err error) {
	if o.Tracing == nil || span == nil {
		return
	}

	attrs := map[string]string{
		LogAttrStatus:     status,
		LogAttrDurationMS: fmt.Sprintf("%.2f", ToMilliseconds(duration)),
	}

	if err != nil {
		attrs[spanAttrErrorType] = getErrorType(err)
	}

	o.Tracing.FinishSpan(span, status, attrs)
}

// Debug logs through the contextual logger if there is one, otherwise through the plain logger.
func (o Observability) Debug(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.DebugContext(ctx, msg, args...)
	} else if o.Logger != nil {
		o.Logger.Debug(msg, args...)
	}
}

// Info logs at info level, see Debug.
func (o Observability) Info(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.InfoContext(ctx, msg, args...)
	} else if o.Logger != nil {
		o.Logger.Info(msg, args...)
	}
}

// Warn logs at warn level, see Debug.
func (o Observability) Warn(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.WarnContext(ctx, msg, args...)
	} else if o.Logger != nil {
		o.Logger.Warn(msg, args...)
	}
}

// Error logs at error level, see Debug.
func (o Observability) Error(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.ErrorContext(ctx, msg, args...)
	} else if o.Logger != nil {
		o.Logger.Error(msg, args...)
	}
}
