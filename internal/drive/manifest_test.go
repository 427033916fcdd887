package drive

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4kiu/axiom/internal/logbook"
)

func TestManifestName_LexicalOrderIsChronological(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 8, 31, 14, 25, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 14, 25, 0, int(500*time.Millisecond), time.UTC),
		time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC),
		time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	names := make([]string, len(times))
	for i, ts := range times {
		names[i] = ManifestName(ts)
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	assert.Equal(t, names, sorted, "chronological naming must sort lexically")
}

func TestManifestName_RoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 31, 14, 25, 0, int(250*time.Millisecond), time.UTC)
	name := ManifestName(at)
	assert.Equal(t, "sync.20260831T142500.250.json", name)

	parsed, ok := ParseManifestName(name)
	require.True(t, ok)
	assert.True(t, parsed.Equal(at))
}

func TestParseManifestName_RejectsForeignNames(t *testing.T) {
	for _, name := range []string{
		"notes.txt",
		"sync.json",
		"sync.yesterday.json",
		"sync.20260831T142500.250",
		"backup.20260831T142500.250.json",
	} {
		_, ok := ParseManifestName(name)
		assert.False(t, ok, "name %q should not parse", name)
	}
}

func TestManifest_EncodeDecodeRoundTrip(t *testing.T) {
	entries := []logbook.Entry{
		{ID: "e1", Timestamp: 1700000000000, Identity: logbook.Normal, Energy: 4, Tags: []string{"tired"}},
	}
	plans := []logbook.Plan{
		{ID: "p1", Name: "push", Exercises: []logbook.Exercise{{ID: "x1", Name: "bench", Sets: 3, Reps: "8-10", Weight: 60}}},
	}
	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	data, err := EncodeManifest(entries, plans, at)
	require.NoError(t, err)

	m, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, ManifestVersion, m.Version)
	assert.Equal(t, at.UnixMilli(), m.Timestamp)
	assert.Equal(t, entries, m.Data.Entries)
	assert.Equal(t, plans, m.Data.Plans)
}

func TestEncodeManifest_EmptyCollectionsAreArrays(t *testing.T) {
	data, err := EncodeManifest(nil, nil, time.UnixMilli(1))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entries":[]`)
	assert.Contains(t, string(data), `"plans":[]`)
}

func TestDecodeManifest_Strict(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{broken`},
		{"wrong version", `{"version":2,"timestamp":1,"data":{"entries":[],"plans":[]}}`},
		{"missing data", `{"version":1,"timestamp":1}`},
		{"missing timestamp", `{"version":1,"data":{"entries":[],"plans":[]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeManifest([]byte(tc.data))
			assert.ErrorIs(t, err, ErrBadManifest)
		})
	}
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `it\'s`, escapeQuery(`it's`))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}
