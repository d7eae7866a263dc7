// Package spies provides recording test doubles for the observability interfaces of the circulation packages.
//
// LogHandlerSpy is a slog.Handler, so it can back both circulation.Logger and circulation.ContextualLogger
// via slog.New. MetricsCollectorSpy and TracingCollectorSpy implement the dependency-free metrics and
// tracing interfaces and can be inspected with fluent matchers.
package spies
