package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashflow-engine/engine"
	"github.com/warp/cashflow-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testNow pins "today" to 2025-06-15 so period and overdue checks are
// deterministic.
var testNow = time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func newTestEngine(t *testing.T) (*engine.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng, err := engine.NewWithClock(context.Background(), mem, testClock)
	require.NoError(t, err)
	return eng, mem
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fact(dir engine.Direction, sourceID, amt string, date engine.Date) engine.RawFact {
	return engine.RawFact{
		Direction:   dir,
		SourceID:    sourceID,
		Date:        date,
		Description: "fact " + sourceID,
		Amount:      amount(amt),
		Category:    "Other",
	}
}

func today() engine.Date     { return engine.DateOf(testNow) }
func tomorrow() engine.Date  { return today().AddDays(1) }
func yesterday() engine.Date { return today().AddDays(-1) }

// =============================================================================
// DEDUP INVARIANT
// =============================================================================

func TestCollect_SameFactTwice_InsertsOnce(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	facts := []engine.RawFact{fact(engine.Inflow, "quote-9-installment-1", "250", today())}

	inserted, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget, facts)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	inserted, err = eng.CollectFromCollaborator(ctx, engine.SourceBudget, facts)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	assert.Len(t, eng.ListPending(), 1)
}

func TestCollect_SameSourceIDDifferentSource_BothInserted(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	f := fact(engine.Inflow, "shared-id", "10", today())

	inserted, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget, []engine.RawFact{f})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	inserted, err = eng.CollectFromCollaborator(ctx, engine.SourceProject, []engine.RawFact{f})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestCollect_FactAlreadyInLedger_Skipped(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	f := fact(engine.Outflow, "closing-3-emp-7", "1200", today())

	m, err := eng.PostDirect(ctx, engine.SourcePayroll, f)
	require.NoError(t, err)
	require.NotNil(t, m)

	inserted, err := eng.CollectFromCollaborator(ctx, engine.SourcePayroll, []engine.RawFact{f})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Empty(t, eng.ListPending())
}

func TestPostDirect_Duplicate_ReturnsNil(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	f := fact(engine.Inflow, "A", "100", today())

	first, err := eng.PostDirect(ctx, engine.SourceManagement, f)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, eng.CurrentBalance().Equal(amount("100")))

	second, err := eng.PostDirect(ctx, engine.SourceManagement, f)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.True(t, eng.CurrentBalance().Equal(amount("100")))

	assert.Len(t, eng.ListMovements(engine.MovementFilter{}), 1)
}

func TestPostDirect_ManualFactsMayRepeat(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	input := engine.ManualMovementInput{
		Direction: engine.Inflow,
		Date:      today(),
		Amount:    amount("50"),
		Category:  "Sales",
		Status:    engine.StatusPaid,
	}

	_, err := eng.AddManual(ctx, input)
	require.NoError(t, err)
	_, err = eng.AddManual(ctx, input)
	require.NoError(t, err)

	assert.Len(t, eng.ListMovements(engine.MovementFilter{}), 2)
}

// =============================================================================
// PROMOTION
// =============================================================================

func TestPromote_Idempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget,
		[]engine.RawFact{fact(engine.Inflow, "x", "300", today())})
	require.NoError(t, err)

	entry := eng.ListPending()[0]
	require.NoError(t, eng.SetSelected(ctx, entry.ID, true))

	promoted, err := eng.Promote(ctx, []engine.MovementID{entry.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	promoted, err = eng.Promote(ctx, []engine.MovementID{entry.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)

	movements := eng.ListMovements(engine.MovementFilter{})
	require.Len(t, movements, 1)
	assert.Equal(t, engine.StatusPaid, movements[0].Status)
	assert.Equal(t, engine.SourceBudget, movements[0].Source)
	assert.Equal(t, "x", movements[0].SourceID)

	// Processed entries vanish from the live view
	assert.Empty(t, eng.ListPending())
}

func TestPromote_UnselectedEntry_Skipped(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CollectFromCollaborator(ctx, engine.SourceProject,
		[]engine.RawFact{fact(engine.Inflow, "p1", "10", today())})
	require.NoError(t, err)

	entry := eng.ListPending()[0]
	promoted, err := eng.Promote(ctx, []engine.MovementID{entry.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)
	assert.Empty(t, eng.ListMovements(engine.MovementFilter{}))
}

func TestPromote_UnknownIDs_IgnoredRestProcessed(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget, []engine.RawFact{
		fact(engine.Inflow, "a", "10", today()),
		fact(engine.Inflow, "b", "20", today()),
	})
	require.NoError(t, err)

	for _, p := range eng.ListPending() {
		require.NoError(t, eng.SetSelected(ctx, p.ID, true))
	}

	ids := []engine.MovementID{"no-such-entry"}
	for _, p := range eng.ListPending() {
		ids = append(ids, p.ID)
	}

	promoted, err := eng.Promote(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)
}

func TestSetSelected_ProcessedEntry_Rejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget,
		[]engine.RawFact{fact(engine.Inflow, "done", "5", today())})
	require.NoError(t, err)

	entry := eng.ListPending()[0]
	require.NoError(t, eng.SetSelected(ctx, entry.ID, true))
	_, err = eng.Promote(ctx, []engine.MovementID{entry.ID})
	require.NoError(t, err)

	err = eng.SetSelected(ctx, entry.ID, true)
	assert.ErrorIs(t, err, engine.ErrPendingNotFound)
}

func TestPurgeProcessed_RemovesOnlyProcessed(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget, []engine.RawFact{
		fact(engine.Inflow, "keep", "10", today()),
		fact(engine.Inflow, "purge", "20", today()),
	})
	require.NoError(t, err)

	var purgeID engine.MovementID
	for _, p := range eng.ListPending() {
		if p.SourceID == "purge" {
			purgeID = p.ID
		}
	}
	require.NoError(t, eng.SetSelected(ctx, purgeID, true))
	_, err = eng.Promote(ctx, []engine.MovementID{purgeID})
	require.NoError(t, err)

	removed, err := eng.PurgeProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Ledger untouched, remaining live entry untouched
	assert.Len(t, eng.ListMovements(engine.MovementFilter{}), 1)
	require.Len(t, eng.ListPending(), 1)
	assert.Equal(t, "keep", eng.ListPending()[0].SourceID)

	removed, err = eng.PurgeProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

// =============================================================================
// BALANCE AND PROJECTION
// =============================================================================

func TestCurrentBalance_OnlyPaidMovementsCount(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.SetInitialBalance(ctx, amount("1000")))

	_, err := eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Inflow, Date: today(), Amount: amount("500"),
		Category: "Sales", Status: engine.StatusPaid,
	})
	require.NoError(t, err)

	_, err = eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Inflow, Date: tomorrow(), Amount: amount("9999"),
		Category: "Sales", Status: engine.StatusPending,
	})
	require.NoError(t, err)

	_, err = eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Outflow, Date: today(), Amount: amount("200"),
		Category: "Suppliers", Status: engine.StatusPaid,
	})
	require.NoError(t, err)

	assert.True(t, eng.CurrentBalance().Equal(amount("1300")),
		"got %s", eng.CurrentBalance())

	// The pending 9999 shows up only in the projection
	assert.True(t, eng.Projection().Equal(amount("11299")),
		"got %s", eng.Projection())
}

func TestProjection_PastPendingExcluded(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	// Overdue (pending, yesterday): not future, so not projected
	_, err := eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Inflow, Date: yesterday(), Amount: amount("100"),
		Category: "Sales", Status: engine.StatusPending,
	})
	require.NoError(t, err)

	assert.True(t, eng.Projection().IsZero(), "got %s", eng.Projection())
}

func TestScenario_PostDirectTwice(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	f := fact(engine.Inflow, "A", "100", today())

	m, err := eng.PostDirect(ctx, engine.SourceManagement, f)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, eng.CurrentBalance().Equal(amount("100")))

	m, err = eng.PostDirect(ctx, engine.SourceManagement, f)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.True(t, eng.CurrentBalance().Equal(amount("100")))
}

// =============================================================================
// STATUS MACHINE
// =============================================================================

func TestStatusTransitions(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	m, err := eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Inflow, Date: today(), Amount: amount("10"),
		Category: "Sales", Status: engine.StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, eng.MarkPaid(ctx, m.ID, "operator"))
	got, err := eng.GetMovement(m.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaid, got.Status)

	// paid -> pending is the only edge out of paid
	require.NoError(t, eng.RevertToPending(ctx, m.ID, "operator"))
	err = eng.MarkCanceled(ctx, m.ID, "operator")
	require.NoError(t, err)

	// canceled is terminal
	err = eng.MarkPaid(ctx, m.ID, "operator")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	err = eng.RevertToPending(ctx, m.ID, "operator")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestOverdue_DerivedAtReadTime_NeverStored(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	m, err := eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Outflow, Date: yesterday(), Amount: amount("75"),
		Category: "Rent", Status: engine.StatusPending,
	})
	require.NoError(t, err)

	got, err := eng.GetMovement(m.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPending, got.Status, "stored status stays pending")
	assert.Equal(t, engine.StatusOverdue, got.EffectiveStatus(today()))

	// Filtering on overdue finds it even though the field says pending
	overdue := eng.ListMovements(engine.MovementFilter{Status: engine.StatusOverdue})
	require.Len(t, overdue, 1)
	assert.Equal(t, m.ID, overdue[0].ID)
}

// =============================================================================
// FAILURE BEHAVIOR
// =============================================================================

func TestMutation_SaveFailure_RollsBack(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()

	mem.SaveErr = errors.New("disk full")

	_, err := eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Inflow, Date: today(), Amount: amount("42"),
		Category: "Sales", Status: engine.StatusPaid,
	})
	assert.ErrorIs(t, err, engine.ErrSaveFailed)
	assert.Empty(t, eng.ListMovements(engine.MovementFilter{}),
		"in-memory state must stay on the last persisted snapshot")
	assert.True(t, eng.CurrentBalance().IsZero())

	mem.SaveErr = nil
	_, err = eng.AddManual(ctx, engine.ManualMovementInput{
		Direction: engine.Inflow, Date: today(), Amount: amount("42"),
		Category: "Sales", Status: engine.StatusPaid,
	})
	require.NoError(t, err)
	assert.Len(t, eng.ListMovements(engine.MovementFilter{}), 1)
}

func TestCollect_SaveFailure_NothingStaged(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()

	mem.SaveErr = errors.New("disk full")

	_, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget,
		[]engine.RawFact{fact(engine.Inflow, "z", "1", today())})
	assert.ErrorIs(t, err, engine.ErrSaveFailed)
	assert.Empty(t, eng.ListPending())

	// The fact is not lost for good: a retry after recovery inserts it
	mem.SaveErr = nil
	inserted, err := eng.CollectFromCollaborator(ctx, engine.SourceBudget,
		[]engine.RawFact{fact(engine.Inflow, "z", "1", today())})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestNew_UnreadableStore_StartsEmpty(t *testing.T) {
	mem := store.NewMemory()
	mem.LoadErr = errors.New("corrupt file")

	eng, err := engine.NewWithClock(context.Background(), mem, testClock)
	require.NoError(t, err)
	assert.True(t, eng.CurrentBalance().IsZero())
	assert.Empty(t, eng.ListMovements(engine.MovementFilter{}))
	assert.Empty(t, eng.ListPending())
}

// =============================================================================
// BUS AND SOURCES
// =============================================================================

type stubSource struct {
	topic engine.Topic
	facts []engine.RawFact
	err   error
	pulls int
}

func (s *stubSource) Topic() engine.Topic { return s.topic }

func (s *stubSource) PendingFacts(context.Context) ([]engine.RawFact, error) {
	s.pulls++
	return s.facts, s.err
}

func TestCollectFromSource_PullAndDedup(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	src := &stubSource{
		topic: engine.TopicPayroll,
		facts: []engine.RawFact{fact(engine.Outflow, "closing-1-emp-1", "900", today())},
	}

	inserted, err := eng.CollectFromSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	// Re-delivering the same snapshot is harmless
	inserted, err = eng.CollectFromSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, src.pulls)

	entry := eng.ListPending()[0]
	assert.Equal(t, engine.SourcePayroll, entry.Source)
}

func TestCollectFromSource_UnavailableCollaborator(t *testing.T) {
	eng, _ := newTestEngine(t)

	src := &stubSource{topic: engine.TopicProject, err: errors.New("connection refused")}

	_, err := eng.CollectFromSource(context.Background(), src)
	assert.Error(t, err)
	assert.Empty(t, eng.ListPending())
}

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := engine.NewBus()

	var got []engine.Topic
	bus.Subscribe(engine.TopicBudget, func(n engine.Notice) {
		got = append(got, n.Topic)
	})

	bus.Publish(engine.Notice{Topic: engine.TopicBudget})
	bus.Publish(engine.Notice{Topic: engine.TopicPayroll}) // no subscriber

	assert.Equal(t, []engine.Topic{engine.TopicBudget}, got)
}
