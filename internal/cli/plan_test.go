package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4kiu/axiom/internal/logbook"
)

func TestPlanAdd_CreatesPlan(t *testing.T) {
	opts, dbPath := testEnv(t)

	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"add", "Push Day", "--desc", "chest and triceps"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `Created plan "Push Day"`)

	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	defer store.Close()
	_, plans := store.All()
	require.Len(t, plans, 1)
	assert.Equal(t, "Push Day", plans[0].Name)
	assert.Equal(t, "chest and triceps", plans[0].Description)
	assert.NotEmpty(t, plans[0].ID)
	assert.NotZero(t, plans[0].CreatedAt)
}

func TestPlanAdd_EmptyNameRejected(t *testing.T) {
	opts, _ := testEnv(t)

	cmd := NewPlanCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"add", "  "})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestPlanList_ShowsPlans(t *testing.T) {
	opts, dbPath := testEnv(t)

	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	_, err = store.UpsertPlan(logbook.Plan{Name: "Legs", CreatedAt: testNow.UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "Legs")
	assert.Contains(t, buf.String(), "2026-08-28")
}

func TestPlanList_Empty(t *testing.T) {
	opts, _ := testEnv(t)

	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No plans.")
}

func TestPlanRm_EntriesKeepWeakReference(t *testing.T) {
	opts, dbPath := testEnv(t)

	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	plan, err := store.UpsertPlan(logbook.Plan{Name: "Pull Day"})
	require.NoError(t, err)
	entry := dayEntry(28, logbook.Normal, 3)
	entry.PlanID = plan.ID
	_, err = store.UpsertEntry(entry)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cmd := NewPlanCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"rm", plan.ID})
	require.NoError(t, cmd.Execute())

	store, err = logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	defer store.Close()
	entries, plans := store.All()
	assert.Empty(t, plans)
	require.Len(t, entries, 1)
	assert.Equal(t, plan.ID, entries[0].PlanID, "dangling reference survives")
}

func TestPlanRm_Missing(t *testing.T) {
	opts, _ := testEnv(t)

	cmd := NewPlanCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"rm", "no-such-plan"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
