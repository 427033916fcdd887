package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4kiu/axiom/internal/logbook"
)

func TestHistoryCommand_ShowsWindowNewestFirst(t *testing.T) {
	opts, dbPath := testEnv(t)
	seedEntries(t, dbPath,
		dayEntry(10, logbook.Rest, 3), // outside a 7-day window ending Friday 28th
		dayEntry(26, logbook.Normal, 4),
		dayEntry(28, logbook.Overdrive, 5),
	)

	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--days", "7"})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "2026-08-26")
	assert.Contains(t, out, "2026-08-28")
	assert.NotContains(t, out, "2026-08-10")
	assert.Less(t, strings.Index(out, "2026-08-28"), strings.Index(out, "2026-08-26"))
}

func TestHistoryCommand_Empty(t *testing.T) {
	opts, _ := testEnv(t)

	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No entries.")
}

func TestHistoryCommand_JSON(t *testing.T) {
	opts, dbPath := testEnv(t)
	seedWeek(t, dbPath)
	opts.Format = "json"

	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--days", "3"})
	require.NoError(t, cmd.Execute())

	resp := decodeResponse(t, buf.Bytes())
	require.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 3)
}

func TestHistoryCommand_BadDays(t *testing.T) {
	opts, _ := testEnv(t)

	cmd := NewHistoryCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--days", "0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
