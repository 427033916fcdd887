package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestStatusCommand_Golden(t *testing.T) {
	opts, dbPath := testEnv(t)
	seedWeek(t, dbPath)

	buf := &bytes.Buffer{}
	cmd := NewStatusCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	newGoldie(t).Assert(t, "status_week", buf.Bytes())
}

func TestStatusCommand_EmptyGolden(t *testing.T) {
	opts, _ := testEnv(t)

	buf := &bytes.Buffer{}
	cmd := NewStatusCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	newGoldie(t).Assert(t, "status_empty", buf.Bytes())
}

func TestStatusCommand_JSON(t *testing.T) {
	opts, dbPath := testEnv(t)
	seedWeek(t, dbPath)
	opts.Format = "json"

	buf := &bytes.Buffer{}
	cmd := NewStatusCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	resp := decodeResponse(t, buf.Bytes())
	require.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["streak"])
	assert.Equal(t, float64(60), data["integrity"])
	assert.Equal(t, "normal", data["today"])
}
