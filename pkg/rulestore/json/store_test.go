package json

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

var rules = []pluggedkbd.Rule{
	{DeviceID: "OLKB Planck", Priority: 1, DisplayName: "Planck", SourceID: "us"},
	{DeviceID: "Keychron K2", Priority: 0, DisplayName: "Keychron K2", SourceID: "de"},
}

func newStore(t *testing.T, filename string) *RuleStore {
	t.Helper()
	s, err := NewRuleStore(filename, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return s
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "rules.json")

	s := newStore(t, filename)
	loaded, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, s.SaveRules(ctx, rules))
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
	assert.Contains(t, string(data), `"OLKB Planck",`)

	loaded, err = newStore(t, filename).LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules, loaded)
}

func TestFlushOnlyWhenDirty(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "rules.json")
	s := newStore(t, filename)

	require.NoError(t, s.SaveRules(ctx, rules))
	require.NoError(t, s.Flush())
	require.NoError(t, os.Remove(filename))

	require.NoError(t, s.Flush())
	_, err := os.Stat(filename)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMalformedEntriesAreDropped(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{
		"version": 1,
		"rules": [
			["good", 0, "Good", "us"],
			["short", 0, "Short"],
			["negative", -1, "Negative", "us"],
			["quoted", "1", "Quoted", "us"],
			{"device": "object"},
			["also good", 3, "", "de"]
		]
	}`), 0o600))

	loaded, err := newStore(t, filename).LoadRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pluggedkbd.Rule{
		{DeviceID: "good", Priority: 0, DisplayName: "Good", SourceID: "us"},
		{DeviceID: "also good", Priority: 3, DisplayName: "", SourceID: "de"},
	}, loaded)
}

func TestUnsupportedVersion(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{"version": 2, "rules": []}`), 0o600))

	_, err := NewRuleStore(filename, zaptest.NewLogger(t).Sugar())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestCorruptFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(filename, []byte(`[[`), 0o600))

	_, err := NewRuleStore(filename, zaptest.NewLogger(t).Sugar())
	assert.ErrorContains(t, err, "decode json")
}

func TestSaveLooperFlushesOnCancel(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rules.json")
	s := newStore(t, filename)
	require.NoError(t, s.SaveRules(context.Background(), rules))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.SaveLooper(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)

	loaded, err := newStore(t, filename).LoadRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rules, loaded)
}
