// Package logbook holds the canonical entry/plan collections for one user.
//
// All reads are served from an in-memory snapshot; every mutation is written
// through to SQLite before it becomes visible, so a crash immediately after a
// mutation never loses it.
package logbook

import (
	"fmt"
	"time"
)

// Identity is one of the five fixed training-intensity categories assigned to
// a day's entry. The ordinal is significant only for stable sorting, never for
// ranking.
type Identity int

const (
	Overdrive Identity = iota
	Normal
	Maintenance
	Survival
	Rest
)

var identityNames = map[Identity]string{
	Overdrive:   "overdrive",
	Normal:      "normal",
	Maintenance: "maintenance",
	Survival:    "survival",
	Rest:        "rest",
}

// String returns the lowercase name of the identity.
func (i Identity) String() string {
	if name, ok := identityNames[i]; ok {
		return name
	}
	return fmt.Sprintf("identity(%d)", int(i))
}

// Valid reports whether the identity is one of the five known states.
func (i Identity) Valid() bool {
	_, ok := identityNames[i]
	return ok
}

// ParseIdentity converts a lowercase identity name back to its value.
func ParseIdentity(s string) (Identity, error) {
	for id, name := range identityNames {
		if name == s {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown identity %q", s)
}

// Entry is one logged day. Entries are immutable once created except via a
// full replace-by-id; there is no partial-field patch.
type Entry struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
	Identity  Identity `json:"identity"`
	Energy    int      `json:"energy"` // self-reported pre-session energy, 1-5
	Tags      []string `json:"tags"`
	Notes     string   `json:"notes,omitempty"`

	// PlanID is a weak reference: deleting the referenced plan does not
	// delete or invalidate the entry.
	PlanID string `json:"planId,omitempty"`
}

// Time returns the entry's instant.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Day returns the local calendar day the entry falls on, at midnight in loc.
func (e Entry) Day(loc *time.Location) time.Time {
	return DayOf(e.Time(), loc)
}

// DayOf truncates t to midnight in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Exercise is one ordered step of a plan. Reps is a string to tolerate ranges
// like "8-10".
type Exercise struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MuscleType string  `json:"muscleType"`
	Sets       int     `json:"sets"`
	Reps       string  `json:"reps"`
	Weight     float64 `json:"weight"`
	Notes      string  `json:"notes,omitempty"`
	Image      string  `json:"image,omitempty"`
}

// Plan is a named, ordered collection of exercises. Plans are created, edited
// and deleted independently of entries.
type Plan struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Exercises   []Exercise `json:"exercises"`
	CreatedAt   int64      `json:"createdAt"` // epoch milliseconds
}
