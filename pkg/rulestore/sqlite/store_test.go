package sqlite

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

func newStore(t *testing.T, filename string) *RuleStore {
	t.Helper()
	s, err := NewRuleStore(filename, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "rules.db")
	rules := []pluggedkbd.Rule{
		{DeviceID: "OLKB Planck", Priority: 1, DisplayName: "Planck", SourceID: "us"},
		{DeviceID: "Keychron K2", Priority: 0, DisplayName: "Keychron K2", SourceID: "de"},
	}

	s := newStore(t, filename)
	loaded, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, s.SaveRules(ctx, rules))
	loaded, err = s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules, loaded)

	// reopening runs the migrations again without changes
	require.NoError(t, s.Close())
	loaded, err = newStore(t, filename).LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules, loaded)
}

func TestSaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filepath.Join(t.TempDir(), "rules.db"))

	require.NoError(t, s.SaveRules(ctx, []pluggedkbd.Rule{
		{DeviceID: "a", Priority: 0, SourceID: "us"},
		{DeviceID: "b", Priority: 1, SourceID: "us"},
	}))
	require.NoError(t, s.SaveRules(ctx, []pluggedkbd.Rule{
		{DeviceID: "b", Priority: 1, SourceID: "de"},
	}))

	loaded, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []pluggedkbd.Rule{{DeviceID: "b", Priority: 1, SourceID: "de"}}, loaded)
}

func TestSaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filepath.Join(t.TempDir(), "rules.db"))
	good := []pluggedkbd.Rule{{DeviceID: "a", Priority: 0, SourceID: "us"}}
	require.NoError(t, s.SaveRules(ctx, good))

	// the priority check rejects the second row, the first must not stick
	err := s.SaveRules(ctx, []pluggedkbd.Rule{
		{DeviceID: "b", Priority: 0, SourceID: "us"},
		{DeviceID: "c", Priority: -1, SourceID: "us"},
	})
	require.Error(t, err)

	loaded, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, loaded)
}

func TestLoadDropsInvalidRows(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filepath.Join(t.TempDir(), "rules.db"))

	require.NoError(t, s.querier.InsertRule(ctx, RuleRow{Position: 0, DeviceID: "a", Priority: 0, SourceID: ""}))
	require.NoError(t, s.querier.InsertRule(ctx, RuleRow{Position: 1, DeviceID: "b", Priority: 2, SourceID: "us"}))

	loaded, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []pluggedkbd.Rule{{DeviceID: "b", Priority: 2, SourceID: "us"}}, loaded)
}

func TestDumpSchema(t *testing.T) {
	s := newStore(t, filepath.Join(t.TempDir(), "rules.db"))

	var buf bytes.Buffer
	require.NoError(t, s.DumpSchema(context.Background(), &buf))
	assert.Contains(t, buf.String(), "create table rules")
	assert.Contains(t, buf.String(), "schema_migrations")
}
