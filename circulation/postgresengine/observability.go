package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

const (
	metricQueryDuration        = "circulation_query_duration_seconds"
	metricApplyDuration        = "circulation_apply_duration_seconds"
	metricRowsApplied          = "circulation_rows_applied"
	metricConcurrencyConflicts = "circulation_concurrency_conflicts_total"
	metricDatabaseErrors       = "circulation_database_errors_total"
	metricOutboxWrites         = "circulation_outbox_writes_total"

	spanNameQuery = "circulation.store.query"
	spanNameApply = "circulation.store.apply"

	spanAttrOperation    = "operation"
	spanAttrErrorType    = "error_type"
	spanAttrRowsAffected = "rows_affected"
	spanAttrStatements   = "statements"

	labelStatus = "status"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuildQuery          = "build_query"
	errorTypeDatabaseQuery       = "database_query"
	errorTypeRowScan             = "row_scan"
	errorTypeBeginTx             = "begin_tx"
	errorTypeDatabaseExec        = "database_exec"
	errorTypeCommit              = "commit"
	errorTypeConcurrencyConflict = "concurrency_conflict"
	errorTypeEncumbered          = "encumbered"
	errorTypeMarshal             = "marshal"
)

func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	s.log(ctx, levelDebug, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
}

func (s *Store) logOperation(ctx context.Context, action string, args ...any) {
	s.log(ctx, levelInfo, logMsgOperation+action, args...)
}

func (s *Store) logError(ctx context.Context, message string, err error, args ...any) {
	s.log(ctx, levelError, message, append([]any{logAttrError, err.Error()}, args...)...)
}

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

// log prefers the contextual logger so that records carry trace and span IDs.
func (s *Store) log(ctx context.Context, level logLevel, msg string, args ...any) {
	if s.contextualLogger != nil {
		switch level {
		case levelDebug:
			s.contextualLogger.DebugContext(ctx, msg, args...)
		case levelInfo:
			s.contextualLogger.InfoContext(ctx, msg, args...)
		case levelWarn:
			s.contextualLogger.WarnContext(ctx, msg, args...)
		default:
			s.contextualLogger.ErrorContext(ctx, msg, args...)
		}

		return
	}

	if s.logger == nil {
		return
	}

	switch level {
	case levelDebug:
		s.logger.Debug(msg, args...)
	case levelInfo:
		s.logger.Info(msg, args...)
	case levelWarn:
		s.logger.Warn(msg, args...)
	default:
		s.logger.Error(msg, args...)
	}
}

func (s *Store) recordDuration(ctx context.Context, metric string, duration time.Duration, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operation, labelStatus: status}

	if contextual, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metric, duration, labels)
}

func (s *Store) recordValue(ctx context.Context, metric string, value float64, operation string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operation}

	if contextual, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	s.metricsCollector.RecordValue(metric, value, labels)
}

func (s *Store) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

func (s *Store) recordDatabaseError(ctx context.Context, operation, errorType string) {
	s.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: operation,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	})
}

func (s *Store) startSpan(ctx context.Context, name, operation string) (context.Context, circulation.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, name, map[string]string{spanAttrOperation: operation})
}

func (s *Store) finishSpan(span circulation.SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	s.tracingCollector.FinishSpan(span, status, attrs)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
