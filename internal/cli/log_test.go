package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4kiu/axiom/internal/logbook"
)

func TestLogCommand_CreatesEntry(t *testing.T) {
	opts, dbPath := testEnv(t)

	buf := &bytes.Buffer{}
	cmd := NewLogCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"normal", "--energy", "4", "--tags", "push,upper", "--notes", "felt good"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "Logged normal for 2026-08-28")

	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	defer store.Close()
	entries, _ := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, logbook.Normal, entries[0].Identity)
	assert.Equal(t, 4, entries[0].Energy)
	assert.Equal(t, []string{"push", "upper"}, entries[0].Tags)
	assert.Equal(t, "felt good", entries[0].Notes)
	assert.NotEmpty(t, entries[0].ID)
}

func TestLogCommand_SameDayConflict(t *testing.T) {
	opts, dbPath := testEnv(t)
	seedEntries(t, dbPath, dayEntry(28, logbook.Normal, 3))

	cmd := NewLogCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"rest"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "already exists for 2026-08-28")
}

func TestLogCommand_ReplaceByID(t *testing.T) {
	opts, dbPath := testEnv(t)
	saved := seedEntries(t, dbPath, dayEntry(28, logbook.Normal, 3))

	cmd := NewLogCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"rest", "--id", saved[0].ID})
	require.NoError(t, cmd.Execute())

	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	defer store.Close()
	entries, _ := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, logbook.Rest, entries[0].Identity)
	assert.Equal(t, saved[0].ID, entries[0].ID)
}

func TestLogCommand_BackdatedEntry(t *testing.T) {
	opts, dbPath := testEnv(t)

	cmd := NewLogCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"maintenance", "--at", "2026-08-20"})
	require.NoError(t, cmd.Execute())

	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	defer store.Close()
	entries, _ := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, 20, entries[0].Time().UTC().Day())
}

func TestLogCommand_BackdatedEntryHonorsConfiguredZone(t *testing.T) {
	opts, dbPath := testEnv(t)
	// Far enough east that noon in this zone is the previous day in UTC.
	loc := time.FixedZone("UTC+13", 13*60*60)
	opts.Location = loc

	cmd := NewLogCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"maintenance", "--at", "2026-08-20"})
	require.NoError(t, cmd.Execute())

	store, err := logbook.Open(dbPath, logbook.WithLocation(loc))
	require.NoError(t, err)
	defer store.Close()
	entries, _ := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-08-20", entries[0].Day(loc).Format("2006-01-02"))
}

func TestLogCommand_InvalidIdentity(t *testing.T) {
	opts, _ := testEnv(t)

	cmd := NewLogCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"beastmode"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogCommand_InvalidEnergy(t *testing.T) {
	opts, _ := testEnv(t)

	cmd := NewLogCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"normal", "--energy", "9"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestLogCommand_JSONOutput(t *testing.T) {
	opts, _ := testEnv(t)
	opts.Format = "json"

	buf := &bytes.Buffer{}
	cmd := NewLogCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"overdrive", "--energy", "5"})
	require.NoError(t, cmd.Execute())

	resp := decodeResponse(t, buf.Bytes())
	assert.Equal(t, "ok", resp.Status)
	entry, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(logbook.Overdrive), entry["identity"])
	assert.NotEmpty(t, entry["id"])
}

func TestRmCommand_DeletesEntry(t *testing.T) {
	opts, dbPath := testEnv(t)
	saved := seedEntries(t, dbPath, dayEntry(28, logbook.Normal, 3))

	buf := &bytes.Buffer{}
	cmd := NewRmCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{saved[0].ID})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Deleted")

	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	defer store.Close()
	entries, _ := store.All()
	assert.Empty(t, entries)
}

func TestRmCommand_MissingEntry(t *testing.T) {
	opts, _ := testEnv(t)

	cmd := NewRmCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"no-such-id"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
