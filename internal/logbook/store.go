package logbook

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (entries, plans, meta)
const currentSchemaVersion = 1

const metaLastSync = "last_sync_ms"

// Store is the canonical in-memory + durable collection of entries and plans.
//
// Every mutation is synchronous and written through to SQLite before it
// becomes visible; reads are always served from the in-memory copy so callers
// observe a single consistent snapshot.
//
// Thread-safety: all methods are safe for concurrent use. Change hooks fire
// after the write has landed, outside the store lock.
type Store struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time

	mu       sync.Mutex
	entries  map[string]Entry
	plans    map[string]Plan
	lastSync time.Time
	hooks    []func()
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the timezone used for calendar-day bucketing.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithNow overrides the wall clock. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the store database at the given path and loads both
// collections into memory. Idempotent - safe to call on an existing database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent mutation.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		loc:     time.Local,
		now:     time.Now,
		entries: make(map[string]Entry),
		plans:   make(map[string]Plan),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Location returns the timezone used for calendar-day bucketing.
func (s *Store) Location() *time.Location {
	return s.loc
}

// OnChange registers a hook invoked after every user mutation. Imports via
// ReplaceAll do not fire hooks - a pull must never schedule a push of the
// data it just adopted.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// All returns stable copies of both collections. Entries are sorted by
// timestamp, then identity ordinal, then id.
func (s *Store) All() ([]Entry, []Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp < entries[j].Timestamp
		}
		if entries[i].Identity != entries[j].Identity {
			return entries[i].Identity < entries[j].Identity
		}
		return entries[i].ID < entries[j].ID
	})

	plans := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].CreatedAt != plans[j].CreatedAt {
			return plans[i].CreatedAt < plans[j].CreatedAt
		}
		return plans[i].ID < plans[j].ID
	})

	return entries, plans
}

// Entry returns the entry with the given id.
func (s *Store) Entry(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// Plan returns the plan with the given id.
func (s *Store) Plan(id string) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// UpsertEntry creates an entry (empty id) or fully replaces one by id. The
// one-entry-per-calendar-day rule is enforced here as a validation error, not
// a schema constraint: imported remote data can legally violate it.
func (s *Store) UpsertEntry(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	day := e.Day(s.loc)
	for id, other := range s.entries {
		if id != e.ID && other.Day(s.loc).Equal(day) {
			s.mu.Unlock()
			return Entry{}, &ValidationError{
				Field:   "timestamp",
				Message: fmt.Sprintf("an entry already exists for %s", day.Format("2006-01-02")),
			}
		}
	}

	if err := s.writeDoc("entries", e.ID, e); err != nil {
		s.mu.Unlock()
		return Entry{}, err
	}
	s.entries[e.ID] = e
	s.mu.Unlock()

	s.fireHooks()
	return e, nil
}

// DeleteEntry removes an entry by id.
func (s *Store) DeleteEntry(id string) error {
	s.mu.Lock()
	if _, ok := s.entries[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if _, err := s.db.Exec(`DELETE FROM entries WHERE id = ?`, id); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	delete(s.entries, id)
	s.mu.Unlock()

	s.fireHooks()
	return nil
}

// UpsertPlan creates a plan (empty id) or fully replaces one by id.
func (s *Store) UpsertPlan(p Plan) (Plan, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = s.now().UnixMilli()
	}
	if err := validatePlan(p); err != nil {
		return Plan{}, err
	}

	s.mu.Lock()
	if err := s.writeDoc("plans", p.ID, p); err != nil {
		s.mu.Unlock()
		return Plan{}, err
	}
	s.plans[p.ID] = p
	s.mu.Unlock()

	s.fireHooks()
	return p, nil
}

// DeletePlan removes a plan by id. Entries referencing the plan keep their
// planId: the reference is weak, not a foreign key.
func (s *Store) DeletePlan(id string) error {
	s.mu.Lock()
	if _, ok := s.plans[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if _, err := s.db.Exec(`DELETE FROM plans WHERE id = ?`, id); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete plan %s: %w", id, err)
	}
	delete(s.plans, id)
	s.mu.Unlock()

	s.fireHooks()
	return nil
}

// ReplaceAll atomically overwrites both collections and the last-known-sync
// timestamp in a single transaction. Used by imports; a manifest is never
// partially applied, and no change hooks fire.
func (s *Store) ReplaceAll(entries []Entry, plans []Plan, syncTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM plans`); err != nil {
		return fmt.Errorf("clear plans: %w", err)
	}
	for _, e := range entries {
		doc, err := encodeDoc(e)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO entries (id, doc) VALUES (?, ?)`, e.ID, doc); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}
	for _, p := range plans {
		doc, err := encodeDoc(p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO plans (id, doc) VALUES (?, ?)`, p.ID, doc); err != nil {
			return fmt.Errorf("insert plan %s: %w", p.ID, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastSync, strconv.FormatInt(syncTime.UnixMilli(), 10),
	); err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	s.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	s.plans = make(map[string]Plan, len(plans))
	for _, p := range plans {
		s.plans[p.ID] = p
	}
	s.lastSync = syncTime
	return nil
}

// LastSync returns the last-known-sync timestamp, zero when never synced.
func (s *Store) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// SetLastSync durably records the last-known-sync timestamp.
func (s *Store) SetLastSync(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastSync, strconv.FormatInt(t.UnixMilli(), 10),
	); err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}
	s.lastSync = t
	return nil
}

// writeDoc persists one record row. Caller holds the store lock.
func (s *Store) writeDoc(table, id string, v any) error {
	doc, err := encodeDoc(v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, table)
	if _, err := s.db.Exec(query, id, doc); err != nil {
		return fmt.Errorf("write %s %s: %w", table, id, err)
	}
	return nil
}

func (s *Store) fireHooks() {
	s.mu.Lock()
	hooks := make([]func(), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// load reads both collections and the sync timestamp into memory. A corrupt
// record is skipped with a warning rather than failing the whole load.
func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT id, doc FROM entries`)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			rows.Close()
			return fmt.Errorf("scan entry: %w", err)
		}
		e, err := decodeEntry(doc)
		if err != nil {
			slog.Warn("skipping corrupt entry record", "id", id, "error", err)
			continue
		}
		s.entries[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("load entries: %w", err)
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT id, doc FROM plans`)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			rows.Close()
			return fmt.Errorf("scan plan: %w", err)
		}
		p, err := decodePlan(doc)
		if err != nil {
			slog.Warn("skipping corrupt plan record", "id", id, "error", err)
			continue
		}
		s.plans[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("load plans: %w", err)
	}
	rows.Close()

	var raw string
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaLastSync).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		// Never synced.
	case err != nil:
		return fmt.Errorf("load sync time: %w", err)
	default:
		ms, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			slog.Warn("ignoring corrupt sync timestamp", "value", raw, "error", perr)
		} else {
			s.lastSync = time.UnixMilli(ms)
		}
	}

	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
