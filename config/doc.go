// Package config assembles the process configuration of the circulation engine:
// Postgres connections for the three supported adapters, the OpenTelemetry providers,
// and the flag and environment based settings of cmd/circulationd.
package config
