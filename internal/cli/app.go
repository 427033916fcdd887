package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/4kiu/axiom/internal/auth"
	"github.com/4kiu/axiom/internal/config"
	"github.com/4kiu/axiom/internal/drive"
	"github.com/4kiu/axiom/internal/engine"
	"github.com/4kiu/axiom/internal/logbook"
)

// app bundles the wired components for one command invocation. The scheduler
// is nil when no account is linked; commands degrade to local-only then.
type app struct {
	cfg       *config.Config
	store     *logbook.Store
	auth      *auth.Manager
	scheduler *engine.Scheduler
}

// openApp loads config, opens the store and, when an account is linked,
// builds the transport and scheduler.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfgPath := opts.Config
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultPath()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "resolve config path", err)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.DB != "" {
		cfg.Database = opts.DB
	}

	storeOpts := []logbook.Option{}
	if opts.Now != nil {
		storeOpts = append(storeOpts, logbook.WithNow(opts.Now))
	}
	if opts.Location != nil {
		storeOpts = append(storeOpts, logbook.WithLocation(opts.Location))
	}
	store, err := logbook.Open(cfg.Database, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	a := &app{
		cfg:   cfg,
		store: store,
		auth: auth.NewManager(cfg.Credential, auth.Options{
			ClientID:      cfg.OAuth.ClientID,
			ClientSecret:  cfg.OAuth.ClientSecret,
			IdleThreshold: cfg.IdleThreshold.Std(),
			Now:           opts.Now,
		}),
	}

	if a.auth.Linked() {
		ts, err := a.auth.TokenSource(ctx)
		if err != nil {
			if !errors.Is(err, auth.ErrNotLinked) {
				slog.Warn("credential unusable, continuing local-only", "error", err)
			}
			return a, nil
		}
		client, err := drive.NewClient(ctx, ts)
		if err != nil {
			slog.Warn("remote client unavailable, continuing local-only", "error", err)
			return a, nil
		}
		a.scheduler = engine.New(store, client, a.auth, engine.Options{
			Folder:    cfg.Folder,
			Retention: cfg.Retention,
			Debounce:  cfg.Debounce.Std(),
			Now:       opts.Now,
		})
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// importBestEffort pulls the latest remote state before a mutation. Failures
// are logged, never fatal: the mutation must land locally regardless.
func (a *app) importBestEffort(ctx context.Context) {
	if a.scheduler == nil {
		return
	}
	if err := a.scheduler.ImportLatest(ctx); err != nil {
		slog.Warn("import before mutation failed", "error", err)
	}
}

// flush pushes a pending change before the process exits. The mutation is
// already durable locally, so a failed push only warns.
func (a *app) flush(ctx context.Context) {
	if a.scheduler == nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.scheduler.Flush(pushCtx); err != nil {
		slog.Warn("push failed, change is saved locally", "error", err)
	}
}
