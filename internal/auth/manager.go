// Package auth owns the Google credential lifecycle: the browser link flow,
// on-disk persistence, the idle auto-revoke policy, and teardown.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNotLinked reports that no usable credential exists, either because the
// user never linked or because the idle policy revoked it.
var ErrNotLinked = errors.New("no linked account")

var scopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

const (
	defaultUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	defaultRevokeURL   = "https://oauth2.googleapis.com/revoke"

	// DefaultIdleThreshold revokes a credential untouched for this long.
	DefaultIdleThreshold = 720 * time.Hour
)

// Profile identifies the linked account, for display only.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// credential is the on-disk record. LastActive drives the idle policy.
type credential struct {
	Token      *oauth2.Token `json:"token"`
	AcquiredAt time.Time     `json:"acquired_at"`
	LastActive time.Time     `json:"last_active"`
	Profile    Profile       `json:"profile"`
}

// Options configures a Manager.
type Options struct {
	ClientID      string
	ClientSecret  string
	IdleThreshold time.Duration // zero means DefaultIdleThreshold
	Now           func() time.Time
}

// Manager persists one credential at a given path, mode 0600.
type Manager struct {
	path string
	cfg  *oauth2.Config
	idle time.Duration
	now  func() time.Time

	// Overridable in tests.
	userinfoURL string
	revokeURL   string
	client      *http.Client

	mu sync.Mutex
}

func NewManager(path string, opts Options) *Manager {
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		path: path,
		cfg: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		},
		idle:        opts.IdleThreshold,
		now:         opts.Now,
		userinfoURL: defaultUserinfoURL,
		revokeURL:   defaultRevokeURL,
		client:      http.DefaultClient,
	}
}

// Linked reports whether a live credential exists. The idle policy is applied
// first, so a stale credential reads as not linked.
func (m *Manager) Linked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.loadLocked()
	return err == nil
}

// Profile returns the stored account identity.
func (m *Manager) Profile() (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, err := m.loadLocked()
	if err != nil {
		return Profile{}, err
	}
	return cred.Profile, nil
}

// TokenSource returns a refreshing source backed by the stored credential.
// Refreshed tokens are written back so a refresh survives the process.
func (m *Manager) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	m.mu.Lock()
	cred, err := m.loadLocked()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	cred.LastActive = m.now()
	saveErr := m.saveLocked(cred)
	m.mu.Unlock()
	if saveErr != nil {
		return nil, saveErr
	}
	return &persistingSource{m: m, src: m.cfg.TokenSource(ctx, cred.Token), last: cred.Token}, nil
}

// persistingSource writes tokens back to disk when the underlying source
// refreshes them.
type persistingSource struct {
	m    *Manager
	src  oauth2.TokenSource
	last *oauth2.Token
	mu   sync.Mutex
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	changed := tok.AccessToken != p.last.AccessToken
	p.last = tok
	p.mu.Unlock()
	if changed {
		if err := p.m.storeToken(tok); err != nil {
			slog.Warn("persisting refreshed token failed", "error", err)
		}
	}
	return tok, nil
}

func (m *Manager) storeToken(tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, err := m.loadLocked()
	if err != nil {
		return err
	}
	cred.Token = tok
	cred.LastActive = m.now()
	return m.saveLocked(cred)
}

// Link runs the browser consent flow against a loopback redirect. prompt
// receives the consent URL to show the user; Link blocks until the redirect
// lands or ctx expires.
func (m *Manager) Link(ctx context.Context, prompt func(authURL string)) (Profile, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Profile{}, fmt.Errorf("link: start redirect listener: %w", err)
	}
	defer listener.Close()

	state, err := randomState()
	if err != nil {
		return Profile{}, fmt.Errorf("link: %w", err)
	}

	cfg := *m.cfg
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("state mismatch in redirect")
			return
		}
		if msg := q.Get("error"); msg != "" {
			http.Error(w, "consent denied", http.StatusBadRequest)
			errCh <- fmt.Errorf("consent denied: %s", msg)
			return
		}
		fmt.Fprintln(w, "Linked. You can close this window.")
		codeCh <- q.Get("code")
	})}
	go srv.Serve(listener)
	defer srv.Close()

	prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return Profile{}, fmt.Errorf("link: %w", err)
	case <-ctx.Done():
		return Profile{}, fmt.Errorf("link: %w", ctx.Err())
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("link: exchange code: %w", err)
	}

	profile, err := m.fetchProfile(ctx, tok.AccessToken)
	if err != nil {
		return Profile{}, fmt.Errorf("link: %w", err)
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(&credential{Token: tok, AcquiredAt: now, LastActive: now, Profile: profile}); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// RefreshProfile re-fetches the account identity. A 401 tears the credential
// down, same as any other remote rejection.
func (m *Manager) RefreshProfile(ctx context.Context) (Profile, error) {
	m.mu.Lock()
	cred, err := m.loadLocked()
	m.mu.Unlock()
	if err != nil {
		return Profile{}, err
	}

	profile, err := m.fetchProfile(ctx, cred.Token.AccessToken)
	if err != nil {
		var statusErr *profileStatusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusUnauthorized {
			if revokeErr := m.Revoke(); revokeErr != nil {
				slog.Error("revoke after rejected profile fetch failed", "error", revokeErr)
			}
			return Profile{}, fmt.Errorf("credential rejected: %w", ErrNotLinked)
		}
		return Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cred, loadErr := m.loadLocked()
	if loadErr != nil {
		return profile, nil
	}
	cred.Profile = profile
	cred.LastActive = m.now()
	if err := m.saveLocked(cred); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

type profileStatusError struct {
	code int
}

func (e *profileStatusError) Error() string {
	return fmt.Sprintf("userinfo returned status %d", e.code)
}

func (m *Manager) fetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.userinfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := m.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("fetch profile: %w", &profileStatusError{code: resp.StatusCode})
	}
	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return profile, nil
}

// Revoke discards the credential: best-effort revocation at the provider,
// then unconditional removal of the local file. Revoking when not linked is
// success.
func (m *Manager) Revoke() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.readLocked()
	if errors.Is(err, ErrNotLinked) {
		return nil
	}
	if err == nil && cred.Token != nil && cred.Token.AccessToken != "" {
		m.revokeRemote(cred.Token.AccessToken)
	}

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

func (m *Manager) revokeRemote(accessToken string) {
	resp, err := m.client.PostForm(m.revokeURL, url.Values{"token": {accessToken}})
	if err != nil {
		slog.Debug("remote token revocation failed", "error", err)
		return
	}
	resp.Body.Close()
}

// loadLocked reads the credential and applies the idle policy. Caller holds
// mu.
func (m *Manager) loadLocked() (*credential, error) {
	cred, err := m.readLocked()
	if err != nil {
		return nil, err
	}
	if m.now().Sub(cred.LastActive) > m.idle {
		slog.Info("credential idle past threshold, revoking", "last_active", cred.LastActive)
		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
			slog.Warn("removing idle credential failed", "error", err)
		}
		return nil, fmt.Errorf("credential idle since %s: %w", cred.LastActive.Format(time.RFC3339), ErrNotLinked)
	}
	return cred, nil
}

// readLocked reads the file without policy checks. Caller holds mu.
func (m *Manager) readLocked() (*credential, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil, ErrNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	var cred credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if cred.Token == nil || strings.TrimSpace(cred.Token.AccessToken) == "" {
		return nil, ErrNotLinked
	}
	return &cred, nil
}

func (m *Manager) saveLocked(cred *credential) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
