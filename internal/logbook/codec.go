package logbook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Records are stored as one JSON document per row. HTML escaping is disabled
// so the stored text round-trips byte-identically through the sync manifest.

func encodeDoc(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	// Encoder appends a trailing newline, strip it.
	return strings.TrimSpace(buf.String()), nil
}

func decodeEntry(doc string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	if e.ID == "" {
		return Entry{}, fmt.Errorf("decode entry: missing id")
	}
	return e, nil
}

func decodePlan(doc string) (Plan, error) {
	var p Plan
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if p.ID == "" {
		return Plan{}, fmt.Errorf("decode plan: missing id")
	}
	return p, nil
}
