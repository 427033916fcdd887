package drive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/4kiu/axiom/internal/logbook"
)

// ManifestVersion is the current wire version of the sync manifest.
const ManifestVersion = 1

// manifestPrefix and manifestSuffix frame every manifest object name.
const (
	manifestPrefix = "sync."
	manifestSuffix = ".json"
)

// nameLayout renders a UTC instant so that lexical order equals chronological
// order, to the millisecond.
const nameLayout = "20060102T150405.000"

// ErrBadManifest marks a manifest that failed strict decoding. Per the error
// taxonomy this is a deserialization error: the caller must leave local state
// untouched rather than adopt a partial snapshot.
var ErrBadManifest = errors.New("drive: malformed manifest")

// Manifest is a single versioned snapshot of the entire entries+plans
// collections. It exists transiently: created at push time, consumed at pull
// time, never partially applied.
type Manifest struct {
	Version   int          `json:"version"`
	Timestamp int64        `json:"timestamp"` // epoch milliseconds
	Data      ManifestData `json:"data"`
}

// ManifestData carries both collections.
type ManifestData struct {
	Entries []logbook.Entry `json:"entries"`
	Plans   []logbook.Plan  `json:"plans"`
}

// EncodeManifest renders a manifest for the given snapshot.
func EncodeManifest(entries []logbook.Entry, plans []logbook.Plan, at time.Time) ([]byte, error) {
	m := Manifest{
		Version:   ManifestVersion,
		Timestamp: at.UnixMilli(),
		Data: ManifestData{
			Entries: entries,
			Plans:   plans,
		},
	}
	if m.Data.Entries == nil {
		m.Data.Entries = []logbook.Entry{}
	}
	if m.Data.Plans == nil {
		m.Data.Plans = []logbook.Plan{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeManifest strictly parses manifest bytes. Unknown versions and shapes
// missing the data envelope are rejected; remote JSON is never trusted to be
// well-formed.
func DecodeManifest(data []byte) (*Manifest, error) {
	var probe struct {
		Version   int             `json:"version"`
		Timestamp int64           `json:"timestamp"`
		Data      *ManifestData   `json:"data"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadManifest, err)
	}
	if probe.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadManifest, probe.Version)
	}
	if probe.Data == nil {
		return nil, fmt.Errorf("%w: missing data envelope", ErrBadManifest)
	}
	if probe.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: missing timestamp", ErrBadManifest)
	}
	return &Manifest{
		Version:   probe.Version,
		Timestamp: probe.Timestamp,
		Data:      *probe.Data,
	}, nil
}

// ManifestName renders the object name for a manifest created at the given
// instant, e.g. "sync.20260831T142500.000.json".
func ManifestName(at time.Time) string {
	return manifestPrefix + at.UTC().Format(nameLayout) + manifestSuffix
}

// ParseManifestName recovers the creation instant from an object name.
// Returns false for names outside the manifest convention.
func ParseManifestName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, manifestPrefix) || !strings.HasSuffix(name, manifestSuffix) {
		return time.Time{}, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, manifestPrefix), manifestSuffix)
	t, err := time.ParseInLocation(nameLayout, core, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsManifestName reports whether the object name follows the manifest
// convention. Used by the retention sweep so foreign objects in the folder are
// never deleted.
func IsManifestName(name string) bool {
	_, ok := ParseManifestName(name)
	return ok
}
