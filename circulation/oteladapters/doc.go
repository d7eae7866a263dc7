// Package oteladapters implements the circulation logging, metrics, and tracing interfaces on OpenTelemetry.
//
// Wire them into the store, the runner, and the scheduler through their WithContextualLogger,
// WithMetrics, and WithTracing options.
package oteladapters
