// Package engine orchestrates when the sync transport is invoked: an
// import-on-startup pass, a debounced push-on-change pass, and manual
// push/import triggers.
//
// Conflict policy is last-writer-wins at manifest granularity. A push fully
// overwrites what a later pull will adopt, and a pull replaces the entire
// local collection. There is no field-level merge.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/4kiu/axiom/internal/drive"
	"github.com/4kiu/axiom/internal/logbook"
)

// State names the scheduler's current activity. The machine always returns to
// Idle; a cycle that ended in error leaves Idle plus a non-nil LastError.
type State int

const (
	StateIdle State = iota
	StateImporting
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImporting:
		return "importing"
	case StateSyncing:
		return "syncing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the remote blob store boundary. Implemented by drive.Client in
// production and by an in-memory fake in tests. Implementations perform no
// retries and report authorization failures distinctly via
// drive.ErrUnauthorized.
type Transport interface {
	EnsureFolder(ctx context.Context, name string) (string, error)
	List(ctx context.Context, folderID string) ([]drive.Object, error)
	Upload(ctx context.Context, folderID, name string, data []byte) error
	Fetch(ctx context.Context, objectID string) ([]byte, error)
	Delete(ctx context.Context, objectID string) error
}

// Credentials is the slice of the credential lifecycle the scheduler needs:
// tearing the token down when the remote rejects it.
type Credentials interface {
	Revoke() error
}

// Defaults applied by New when an option is zero.
const (
	DefaultFolder    = "Axiom"
	DefaultRetention = 20
	DefaultDebounce  = 4 * time.Second
)

// Options configures a Scheduler.
type Options struct {
	Folder    string        // remote folder name
	Retention int           // manifests kept by the post-push sweep
	Debounce  time.Duration // quiescence window for change-triggered pushes
	Now       func() time.Time
}

// Status is a point-in-time snapshot for display.
type Status struct {
	State       State
	LastError   error
	LastSync    time.Time
	PendingPush bool
}

// Scheduler owns the sync state machine. Constructed once per process and
// injected into consumers; never a package-level singleton.
//
// Concurrency: store mutations are synchronous while pushes overlap them. Two
// pushes never run concurrently - a request during an in-flight push queues
// at most one re-run, which starts with the latest data, not the stale data
// captured at queue time. A push can therefore legitimately upload a snapshot
// that is already stale; the re-run guarantees one more push follows.
type Scheduler struct {
	store     *logbook.Store
	transport Transport
	creds     Credentials
	opts      Options

	mu              sync.Mutex
	state           State
	lastErr         error
	importAttempted bool
	dirty           bool // mutation seen before the first import attempt
	pending         bool // debounce timer armed
	timer           *time.Timer
	pushing         bool
	rerun           bool
}

// New builds a Scheduler and subscribes it to store mutations.
func New(store *logbook.Store, transport Transport, creds Credentials, opts Options) *Scheduler {
	if opts.Folder == "" {
		opts.Folder = DefaultFolder
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Scheduler{
		store:     store,
		transport: transport,
		creds:     creds,
		opts:      opts,
	}
	store.OnChange(s.NotifyChange)
	return s
}

// Status returns a snapshot of the machine.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		LastError:   s.lastErr,
		LastSync:    s.store.LastSync(),
		PendingPush: s.pending || s.pushing || s.rerun,
	}
}

// ImportLatest pulls the newest remote manifest and atomically replaces the
// local collections when it is strictly newer than the last known sync. A
// missing folder or empty listing is success-with-no-op. Change-triggered
// pushes stay gated until this has been attempted at least once, so a push
// can never clobber a not-yet-pulled remote update.
func (s *Scheduler) ImportLatest(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateImporting
	s.mu.Unlock()

	err := s.importOnce(ctx)

	s.mu.Lock()
	s.importAttempted = true
	wasDirty := s.dirty
	s.dirty = false
	s.lastErr = err
	s.state = StateIdle
	if wasDirty {
		// A mutation landed before the import finished; schedule its push now
		// that the gate is open. A failed attempt opens the gate too, so the
		// change still owes its push.
		s.armLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.teardownOnAuthError(err)
	}
	return err
}

func (s *Scheduler) importOnce(ctx context.Context) error {
	folderID, err := s.transport.EnsureFolder(ctx, s.opts.Folder)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	objects, err := s.transport.List(ctx, folderID)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	newest, ok := pickNewest(objects)
	if !ok {
		slog.Debug("import: no remote manifests")
		return nil
	}

	remoteTime, ok := drive.ParseManifestName(newest.Name)
	if !ok {
		// Legacy manifest names carry no parsable timestamp.
		remoteTime = newest.CreatedAt
	}
	if !remoteTime.After(s.store.LastSync()) {
		slog.Debug("import: remote not newer", "remote", remoteTime, "local", s.store.LastSync())
		return nil
	}

	data, err := s.transport.Fetch(ctx, newest.ID)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	manifest, err := drive.DecodeManifest(data)
	if err != nil {
		// Deserialization error: local state stays untouched.
		return fmt.Errorf("import %s: %w", newest.Name, err)
	}

	if err := s.store.ReplaceAll(manifest.Data.Entries, manifest.Data.Plans, time.UnixMilli(manifest.Timestamp)); err != nil {
		return fmt.Errorf("import: apply manifest: %w", err)
	}
	slog.Info("import: adopted remote snapshot",
		"manifest", newest.Name,
		"entries", len(manifest.Data.Entries),
		"plans", len(manifest.Data.Plans),
	)
	return nil
}

// pickNewest returns the first sync file in the newest-first listing. Foreign
// objects sharing the folder are skipped.
func pickNewest(objects []drive.Object) (drive.Object, bool) {
	for _, obj := range objects {
		if strings.HasPrefix(obj.Name, "sync.") {
			return obj, true
		}
	}
	return drive.Object{}, false
}

// NotifyChange schedules a debounced push. A single pending timer is reset on
// each mutation; cancellation is clear-and-replace of the handle, never a
// closure over stale data. Before the first import attempt the change is only
// marked, honoring the import-before-push ordering.
func (s *Scheduler) NotifyChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.importAttempted {
		s.dirty = true
		return
	}
	s.armLocked()
}

// armLocked (re)arms the debounce timer. Caller holds mu.
func (s *Scheduler) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = true
	s.timer = time.AfterFunc(s.opts.Debounce, s.debounceFired)
}

func (s *Scheduler) debounceFired() {
	s.mu.Lock()
	s.timer = nil
	s.pending = false
	s.mu.Unlock()

	if err := s.PushNow(context.Background()); err != nil {
		slog.Warn("debounced push failed", "error", err)
	}
}

// Flush fires a pending debounced push immediately. Short-lived processes
// call this before exit instead of sitting out the quiescence window.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.importAttempted {
		s.mu.Unlock()
		return nil
	}
	hadPending := s.pending
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	s.mu.Unlock()

	if !hadPending {
		return nil
	}
	return s.PushNow(ctx)
}

// PushNow uploads a manifest of the current snapshot. If a push is already in
// flight the request is queued as a single re-run that executes with the data
// current at re-run time.
func (s *Scheduler) PushNow(ctx context.Context) error {
	s.mu.Lock()
	if s.pushing {
		s.rerun = true
		s.mu.Unlock()
		return nil
	}
	s.pushing = true
	s.state = StateSyncing
	s.mu.Unlock()

	var err error
	for {
		err = s.pushOnce(ctx)

		s.mu.Lock()
		if err != nil {
			// No automatic retry: the next debounced or manual trigger is the
			// retry path, so a queued re-run is dropped too.
			s.rerun = false
			s.lastErr = err
			s.state = StateIdle
			s.pushing = false
			s.mu.Unlock()
			s.teardownOnAuthError(err)
			return err
		}
		if s.rerun {
			s.rerun = false
			s.mu.Unlock()
			continue
		}
		s.lastErr = nil
		s.state = StateIdle
		s.pushing = false
		s.mu.Unlock()
		return nil
	}
}

func (s *Scheduler) pushOnce(ctx context.Context) error {
	entries, plans := s.store.All()
	at := s.opts.Now()
	name := drive.ManifestName(at)

	data, err := drive.EncodeManifest(entries, plans, at)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	folderID, err := s.transport.EnsureFolder(ctx, s.opts.Folder)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := s.transport.Upload(ctx, folderID, name, data); err != nil {
		return fmt.Errorf("push %s: %w", name, err)
	}
	slog.Info("push: uploaded manifest", "manifest", name, "entries", len(entries), "plans", len(plans))

	// The upload succeeded; retention problems must not fail the push.
	if err := s.sweep(ctx, folderID); err != nil {
		slog.Warn("retention sweep failed", "error", err)
	}

	if err := s.store.SetLastSync(at); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// sweep deletes all but the newest retention-count manifests. Objects outside
// the manifest naming convention are never touched.
func (s *Scheduler) sweep(ctx context.Context, folderID string) error {
	objects, err := s.transport.List(ctx, folderID)
	if err != nil {
		return err
	}

	kept := 0
	for _, obj := range objects {
		if !drive.IsManifestName(obj.Name) {
			continue
		}
		kept++
		if kept <= s.opts.Retention {
			continue
		}
		if err := s.transport.Delete(ctx, obj.ID); err != nil {
			slog.Warn("retention delete failed", "manifest", obj.Name, "error", err)
			continue
		}
		slog.Debug("retention deleted manifest", "manifest", obj.Name)
	}
	return nil
}

// teardownOnAuthError discards the credential after a rejection. The user is
// prompted to re-link; there is no automatic retry.
func (s *Scheduler) teardownOnAuthError(err error) {
	if !errors.Is(err, drive.ErrUnauthorized) {
		return
	}
	slog.Warn("credential rejected by remote, revoking; re-link required")
	if revokeErr := s.creds.Revoke(); revokeErr != nil {
		slog.Error("credential revoke failed", "error", revokeErr)
	}
}
