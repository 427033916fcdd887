package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Axiom", cfg.Folder)
	assert.Equal(t, 20, cfg.Retention)
	assert.Equal(t, 4*time.Second, cfg.Debounce.Std())
	assert.Equal(t, 720*time.Hour, cfg.IdleThreshold.Std())
	assert.Equal(t, time.Sunday, cfg.WeekStartDay())
	assert.NotEmpty(t, cfg.Database)
	assert.NotEmpty(t, cfg.Credential)
}

func TestLoad_FileOverridesOnlySetFields(t *testing.T) {
	path := writeConfig(t, `
folder: Training
retention: 5
debounce: 250ms
week_start: monday
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Training", cfg.Folder)
	assert.Equal(t, 5, cfg.Retention)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce.Std())
	assert.Equal(t, time.Monday, cfg.WeekStartDay())
	// Untouched fields keep their defaults.
	assert.Equal(t, 720*time.Hour, cfg.IdleThreshold.Std())
	assert.NotEmpty(t, cfg.Database)
}

func TestLoad_EnvFallbackForOAuth(t *testing.T) {
	t.Setenv("AXIOM_CLIENT_ID", "env-id")
	t.Setenv("AXIOM_CLIENT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.OAuth.ClientID)
	assert.Equal(t, "env-secret", cfg.OAuth.ClientSecret)

	// File values win over the environment.
	path := writeConfig(t, "oauth:\n  client_id: file-id\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-id", cfg.OAuth.ClientID)
	assert.Equal(t, "env-secret", cfg.OAuth.ClientSecret)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad retention", "retention: 0\n", "retention"},
		{"bad debounce", "debounce: -1s\n", "debounce"},
		{"bad week start", "week_start: someday\n", "week_start"},
		{"bad duration syntax", "debounce: soon\n", "invalid duration"},
		{"empty folder", `folder: "  "` + "\n", "folder"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
