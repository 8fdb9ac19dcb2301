package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashflow-engine/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleMovement(id string, day int) engine.Movement {
	return engine.Movement{
		ID:          engine.MovementID(id),
		Direction:   engine.Inflow,
		Date:        engine.NewDate(2025, time.June, day),
		Time:        engine.ClockTime("14:30"),
		Description: "invoice " + id,
		Amount:      decimal.RequireFromString("1234.56"),
		Category:    "Sales",
		Status:      engine.StatusPaid,
		Reconciled:  true,
		Source:      engine.SourceManagement,
		SourceID:    "inv-" + id,
		Tags:        []string{"q2", "export"},
		Attachments: []string{"receipts/" + id + ".pdf"},
		CreatedAt:   time.Date(2025, time.June, day, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, time.June, day, 9, 5, 0, 0, time.UTC),
		CreatedBy:   "alice",
		UpdatedBy:   "bob",
	}
}

// =============================================================================
// LEDGER ROUND TRIP
// =============================================================================

func TestLedgerRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := []engine.Movement{sampleMovement("m1", 10), sampleMovement("m2", 5)}
	initial := decimal.RequireFromString("5000.25")

	require.NoError(t, store.SaveLedger(ctx, in, initial))

	out, gotInitial, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, gotInitial.Equal(initial), "initial balance: %s", gotInitial)

	got := out[0]
	want := in[0]
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Direction, got.Direction)
	assert.True(t, got.Date.Equal(want.Date))
	assert.Equal(t, want.Time, got.Time)
	assert.Equal(t, want.Description, got.Description)
	assert.True(t, got.Amount.Equal(want.Amount))
	assert.Equal(t, want.Category, got.Category)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, got.Reconciled)
	assert.Equal(t, want.Source, got.Source)
	assert.Equal(t, want.SourceID, got.SourceID)
	assert.Equal(t, want.Tags, got.Tags)
	assert.Equal(t, want.Attachments, got.Attachments)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.Equal(t, want.CreatedBy, got.CreatedBy)
	assert.Equal(t, want.UpdatedBy, got.UpdatedBy)
}

func TestLedgerSave_PreservesCanonicalOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Insertion order, not date order; the position column must win.
	in := []engine.Movement{
		sampleMovement("newest", 20),
		sampleMovement("middle", 15),
		sampleMovement("oldest", 1),
	}
	require.NoError(t, store.SaveLedger(ctx, in, decimal.Zero))

	out, _, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, engine.MovementID("newest"), out[0].ID)
	assert.Equal(t, engine.MovementID("middle"), out[1].ID)
	assert.Equal(t, engine.MovementID("oldest"), out[2].ID)
}

func TestLedgerSave_ReplacesPreviousSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLedger(ctx,
		[]engine.Movement{sampleMovement("old", 1)}, decimal.Zero))
	require.NoError(t, store.SaveLedger(ctx,
		[]engine.Movement{sampleMovement("new", 2)}, decimal.NewFromInt(10)))

	out, initial, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, engine.MovementID("new"), out[0].ID)
	assert.True(t, initial.Equal(decimal.NewFromInt(10)))
}

func TestLoadLedger_EmptyDatabase(t *testing.T) {
	store := newTestStore(t)

	out, initial, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.True(t, initial.Equal(decimal.Zero))
}

func TestLedger_EmptyTagsLoadAsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := sampleMovement("bare", 3)
	m.Tags = nil
	m.Attachments = nil
	require.NoError(t, store.SaveLedger(ctx, []engine.Movement{m}, decimal.Zero))

	out, _, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Tags)
	assert.Nil(t, out[0].Attachments)
}

// =============================================================================
// STAGING ROUND TRIP
// =============================================================================

func TestStagingRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := []engine.PendingEntry{
		{
			ID:          "p1",
			Direction:   engine.Outflow,
			Source:      engine.SourcePayroll,
			SourceID:    "closing-7-emp-12",
			Date:        engine.NewDate(2025, time.June, 30),
			Description: "june payroll",
			Amount:      decimal.RequireFromString("2100.00"),
			Category:    "Payroll",
			Selected:    true,
			Processed:   false,
			StagedAt:    time.Date(2025, time.June, 25, 8, 0, 0, 0, time.UTC),
		},
		{
			ID:        "p2",
			Direction: engine.Inflow,
			Source:    engine.SourceBudget,
			SourceID:  "budget-3",
			Date:      engine.NewDate(2025, time.July, 1),
			Amount:    decimal.NewFromInt(900),
			Category:  "Budgets",
			Processed: true,
			StagedAt:  time.Date(2025, time.June, 26, 8, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, store.SaveStaging(ctx, in))

	out, err := store.LoadStaging(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	got := out[0]
	assert.Equal(t, engine.MovementID("p1"), got.ID)
	assert.Equal(t, engine.SourcePayroll, got.Source)
	assert.Equal(t, "closing-7-emp-12", got.SourceID)
	assert.True(t, got.Date.Equal(in[0].Date))
	assert.True(t, got.Amount.Equal(in[0].Amount))
	assert.True(t, got.Selected)
	assert.False(t, got.Processed)
	assert.True(t, got.StagedAt.Equal(in[0].StagedAt))

	assert.True(t, out[1].Processed)
	assert.False(t, out[1].Selected)
}

func TestSaveStaging_ClearsTable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveStaging(ctx, []engine.PendingEntry{{
		ID: "p1", Direction: engine.Inflow, Source: engine.SourceBudget,
		Date: engine.NewDate(2025, time.June, 1), Amount: decimal.NewFromInt(1),
		Category: "Budgets", StagedAt: time.Now().UTC(),
	}}))
	require.NoError(t, store.SaveStaging(ctx, nil))

	out, err := store.LoadStaging(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// =============================================================================
// CORRUPTION TOLERANCE
// =============================================================================

func TestLoadLedger_CorruptAmountReadsAsZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := sampleMovement("m1", 10)
	require.NoError(t, store.SaveLedger(ctx, []engine.Movement{m}, decimal.Zero))

	_, err := store.db.Exec(`UPDATE movements SET amount = 'not-a-number'`)
	require.NoError(t, err)

	out, _, err := store.LoadLedger(ctx)
	require.NoError(t, err, "corrupt amount must not fail the load")
	require.Len(t, out, 1)
	assert.True(t, out[0].Amount.Equal(decimal.Zero))
}

func TestLoadInitialBalance_CorruptScalarReadsAsZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(
		`INSERT INTO settings (key, value) VALUES ('initial_balance', 'garbage')`)
	require.NoError(t, err)

	_, initial, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	assert.True(t, initial.Equal(decimal.Zero))
}
