package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

func TestRuleStore(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(pluggedkbd.Rule{DeviceID: "a", Priority: 0, DisplayName: "A", SourceID: "us"})

	rules, err := s.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	// callers own the returned slice
	rules[0].DeviceID = "changed"
	again, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].DeviceID)

	require.NoError(t, s.SaveRules(ctx, nil))
	rules, err = s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
