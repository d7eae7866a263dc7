package reconciliation_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/memengine"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/reconciliation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/fixtures"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/observability/spies"
)

func newScheduler(
	t *testing.T,
	store *memengine.Store,
	clock circulation.Clock,
	options ...reconciliation.Option,
) *reconciliation.Scheduler {
	t.Helper()

	settings := circulation.DefaultBorrowSettings()
	settings.TotalMissedPickUpAllow = 3

	scheduler, err := reconciliation.NewScheduler(store, append([]reconciliation.Option{
		reconciliation.WithClock(clock),
		reconciliation.WithSettings(settings),
		reconciliation.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	}, options...)...)
	require.NoError(t, err)

	return scheduler
}

func expiringRequest(card circulation.LibraryCard, expiration time.Time) circulation.BorrowRequest {
	return circulation.BorrowRequest{
		ID:             uuid.New(),
		CopyID:         uuid.New(),
		LibraryCardID:  card.ID,
		Status:         circulation.BorrowRequestCreated,
		ExpirationDate: expiration,
		Version:        1,
	}
}

func Test_Scheduler_ExpireBorrowRequests_Escalation(t *testing.T) {
	// arrange
	now := fixtures.BusinessNow()
	store := memengine.NewStore()
	scheduler := newScheduler(t, store, fixtures.NewFixedClock(now))

	escalated := fixtures.ActiveCard(now.AddDate(0, 6, 0))
	escalated.TotalMissedPickUp = 2
	counted := fixtures.ActiveCard(now.AddDate(0, 6, 0))
	counted.TotalMissedPickUp = 1
	store.PutCard(escalated)
	store.PutCard(counted)

	first := expiringRequest(escalated, now.Add(-time.Hour))
	second := expiringRequest(counted, now.Add(-time.Minute))
	pending := expiringRequest(counted, now.Add(time.Hour))
	store.PutBorrowRequest(first)
	store.PutBorrowRequest(second)
	store.PutBorrowRequest(pending)

	// act
	rows, err := scheduler.ExpireBorrowRequests(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(4), rows)
	assert.Equal(t, 1, store.ApplyCount(), "requests and cards are committed together")

	suspended, _ := store.Card(escalated.ID)
	assert.Equal(t, circulation.CardSuspended, suspended.Status)
	assert.Equal(t, 3, suspended.TotalMissedPickUp)
	require.NotNil(t, suspended.SuspensionEndDate)
	assert.Equal(t, now.AddDate(0, 0, 7), *suspended.SuspensionEndDate)

	active, _ := store.Card(counted.ID)
	assert.Equal(t, circulation.CardActive, active.Status)
	assert.Equal(t, 2, active.TotalMissedPickUp)

	expired, _ := store.BorrowRequest(first.ID)
	assert.Equal(t, circulation.BorrowRequestExpired, expired.Status)
	untouched, _ := store.BorrowRequest(pending.ID)
	assert.Equal(t, circulation.BorrowRequestCreated, untouched.Status)
}

func Test_Scheduler_Tick_IsIdempotent(t *testing.T) {
	// arrange
	now := fixtures.BusinessNow()
	store := memengine.NewStore()
	scheduler := newScheduler(t, store, fixtures.NewFixedClock(now))

	due := fixtures.ActiveCard(now.Add(-time.Hour))
	store.PutCard(due)

	end := now.Add(-time.Minute)
	suspended := fixtures.ActiveCard(now.AddDate(0, 0, -1))
	suspended.Status = circulation.CardSuspended
	suspended.SuspensionEndDate = &end
	store.PutCard(suspended)

	requester := fixtures.ActiveCard(now.AddDate(0, 1, 0))
	store.PutCard(requester)
	store.PutBorrowRequest(expiringRequest(requester, now.Add(-time.Hour)))

	// act
	require.NoError(t, scheduler.Tick(context.Background()))
	appliedByFirstTick := store.ApplyCount()
	require.NoError(t, scheduler.Tick(context.Background()))

	// assert
	assert.Equal(t, 3, appliedByFirstTick)
	assert.Equal(t, appliedByFirstTick, store.ApplyCount(), "second tick must not write")

	expired, _ := store.Card(due.ID)
	assert.Equal(t, circulation.CardExpired, expired.Status)

	unsuspended, _ := store.Card(suspended.ID)
	assert.Equal(t, circulation.CardExpired, unsuspended.Status, "expired while suspended")
	assert.Nil(t, unsuspended.SuspensionEndDate)
}

func Test_Scheduler_Tick_FailingStepDoesNotStopLaterSteps(t *testing.T) {
	// arrange
	now := fixtures.BusinessNow()
	store := memengine.NewStore()
	logSpy := spies.NewLogHandlerSpy(false)
	metricsSpy := spies.NewMetricsCollectorSpy(true)
	scheduler := newScheduler(t, store, fixtures.NewFixedClock(now),
		reconciliation.WithContextualLogger(slog.New(logSpy)),
		reconciliation.WithMetrics(metricsSpy),
	)

	due := fixtures.ActiveCard(now.Add(-time.Hour))
	store.PutCard(due)
	end := now.Add(-time.Minute)
	suspended := fixtures.ActiveCard(now.AddDate(0, 1, 0))
	suspended.Status = circulation.CardSuspended
	suspended.SuspensionEndDate = &end
	store.PutCard(suspended)
	store.FailNextApply(errors.New("connection reset"))

	// act
	err := scheduler.Tick(context.Background())

	// assert
	require.Error(t, err)

	stillActive, _ := store.Card(due.ID)
	assert.Equal(t, circulation.CardActive, stillActive.Status)
	unsuspended, _ := store.Card(suspended.ID)
	assert.Equal(t, circulation.CardActive, unsuspended.Status)

	assert.True(t, logSpy.HasErrorLogWithMessage(reconciliation.LogMsgStepFailed).
		WithAttr(reconciliation.LogAttrStep, reconciliation.StepExpireCards).Assert())
	assert.True(t, metricsSpy.HasCounterRecordForMetric(reconciliation.StepFailedMetric).
		WithLabel(reconciliation.LogAttrStep, reconciliation.StepExpireCards).Assert())
	assert.True(t, metricsSpy.HasDurationRecordForMetric(reconciliation.TickDurationMetric).
		WithStatus(shell.StatusError).Assert())
}

func Test_Scheduler_Step_RetriesConcurrencyConflict(t *testing.T) {
	// arrange
	now := fixtures.BusinessNow()
	store := memengine.NewStore()
	scheduler := newScheduler(t, store, fixtures.NewFixedClock(now))
	due := fixtures.ActiveCard(now.Add(-time.Hour))
	store.PutCard(due)
	store.FailNextApply(circulation.ErrConcurrencyConflict)

	// act
	rows, err := scheduler.ExpireCards(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func Test_Scheduler_Run_StopsOnCancel(t *testing.T) {
	// arrange
	clock := fixtures.NewFixedClock(fixtures.BusinessNow())
	store := memengine.NewStore()
	scheduler := newScheduler(t, store, clock, reconciliation.WithInterval(5*time.Millisecond))
	card := fixtures.ActiveCard(clock.Now().Add(time.Hour))
	store.PutCard(card)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// act
	go func() { done <- scheduler.Run(ctx) }()
	clock.Advance(2 * time.Hour)

	// assert
	assert.Eventually(t, func() bool {
		stored, _ := store.Card(card.ID)
		return stored.Status == circulation.CardExpired
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func Test_NewScheduler_InvalidOptions(t *testing.T) {
	testCases := []struct {
		name     string
		option   reconciliation.Option
		expected error
	}{
		{"zero interval", reconciliation.WithInterval(0), reconciliation.ErrInvalidInterval},
		{"nil clock", reconciliation.WithClock(nil), reconciliation.ErrNilClock},
		{"invalid settings", reconciliation.WithSettings(circulation.BorrowSettings{}), circulation.ErrInvalidBorrowSettings},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := reconciliation.NewScheduler(memengine.NewStore(), tc.option)

			// assert
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}
