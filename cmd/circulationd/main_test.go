package main

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/memengine"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/postgresengine"
	"github.com/AntonStoeckl/circulation-consistency-go/config"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/reconciliation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/observability/spies"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/postgreswrapper"
)

func noEnv(string) string {
	return ""
}

func Test_Run_RejectsInvalidConfig(t *testing.T) {
	// arrange
	var out bytes.Buffer

	// act
	err := run(t.Context(), nil, noEnv, &out)

	// assert
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Empty(t, out.String())
}

func Test_Run_StopsGracefullyOnCancel(t *testing.T) {
	dsn := os.Getenv(postgreswrapper.EnvTestDSN)
	if dsn == "" {
		t.Skipf("%s is not set", postgreswrapper.EnvTestDSN)
	}

	// arrange
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	// act
	err := run(ctx, []string{"-dsn", dsn, "-migrate", "-interval", "20ms"}, noEnv, &out)

	// assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), logMsgSchemaCreated)
	assert.Contains(t, out.String(), "reconciliation scheduler started")
	assert.Contains(t, out.String(), logMsgStopped)
}

func Test_Options_OnlyAddWhatIsConfigured(t *testing.T) {
	clock, err := circulation.NewBusinessClock(circulation.DefaultBusinessTimezone)
	require.NoError(t, err)

	cfg, err := config.Load([]string{"-dsn", "postgres://localhost/library"}, noEnv)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	loggingOnly := shell.Observability{Logger: logger, ContextualLogger: logger}
	full := loggingOnly
	full.Metrics = spies.NewMetricsCollectorSpy(false)
	full.Tracing = spies.NewTracingCollectorSpy(false)

	testCases := []struct {
		name                  string
		observability         shell.Observability
		expectedStoreOptions  int
		expectedSchedulerOpts int
	}{
		{
			name:                  "logging only",
			observability:         loggingOnly,
			expectedStoreOptions:  3,
			expectedSchedulerOpts: 5,
		},
		{
			name:                  "logging, metrics and tracing",
			observability:         full,
			expectedStoreOptions:  5,
			expectedSchedulerOpts: 7,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			storeOpts := storeOptions(clock, tc.observability)
			schedulerOpts := schedulerOptions(cfg, clock, tc.observability)

			// assert
			assert.Len(t, storeOpts, tc.expectedStoreOptions)
			assert.Len(t, schedulerOpts, tc.expectedSchedulerOpts)

			_, storeErr := postgresengine.NewStoreFromSQLDB(new(sql.DB), storeOpts...)
			require.NoError(t, storeErr)

			_, schedulerErr := reconciliation.NewScheduler(memengine.NewStore(), schedulerOpts...)
			require.NoError(t, schedulerErr)
		})
	}
}
