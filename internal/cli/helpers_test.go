package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/4kiu/axiom/internal/logbook"
	"github.com/4kiu/axiom/internal/testutil"
)

// Friday evening; the seeded week runs Monday through Friday.
var testNow = time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC)

// testEnv builds root options bound to a throwaway config, database and
// credential path so nothing leaks between tests or into real XDG dirs.
func testEnv(t *testing.T) (*RootOptions, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "axiom.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("database: %s\ncredential: %s\n", dbPath, filepath.Join(dir, "credential.json"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	clock := testutil.NewClock(testNow)
	opts := &RootOptions{
		Format:   "text",
		Config:   cfgPath,
		Now:      clock.Now,
		Location: time.UTC,
	}
	return opts, dbPath
}

func seedEntries(t *testing.T, dbPath string, entries ...logbook.Entry) []logbook.Entry {
	t.Helper()
	store, err := logbook.Open(dbPath, logbook.WithLocation(time.UTC))
	require.NoError(t, err)
	defer store.Close()

	saved := make([]logbook.Entry, 0, len(entries))
	for _, e := range entries {
		got, err := store.UpsertEntry(e)
		require.NoError(t, err)
		saved = append(saved, got)
	}
	return saved
}

func dayEntry(day int, identity logbook.Identity, energy int) logbook.Entry {
	return logbook.Entry{
		Timestamp: time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Identity:  identity,
		Energy:    energy,
	}
}

// seedWeek loads Monday 24th through Friday 28th: normal, overdrive, normal,
// survival, normal.
func seedWeek(t *testing.T, dbPath string) []logbook.Entry {
	t.Helper()
	return seedEntries(t, dbPath,
		dayEntry(24, logbook.Normal, 3),
		dayEntry(25, logbook.Overdrive, 5),
		dayEntry(26, logbook.Normal, 4),
		dayEntry(27, logbook.Survival, 2),
		dayEntry(28, logbook.Normal, 4),
	)
}

func decodeResponse(t *testing.T, raw []byte) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}
