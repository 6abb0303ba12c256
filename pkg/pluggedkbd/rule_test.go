package pluggedkbd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleJSON(t *testing.T) {
	rule := Rule{DeviceID: "OLKB Planck", Priority: 1, DisplayName: "Planck", SourceID: "us+altgr-intl"}

	out, err := json.Marshal(rule)
	require.NoError(t, err)
	assert.JSONEq(t, `["OLKB Planck", 1, "Planck", "us+altgr-intl"]`, string(out))

	var back Rule
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, rule, back)
}

func TestRuleUnmarshalRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"not a list":        `{"id": "x"}`,
		"too few fields":    `["K1", 0, "Name"]`,
		"too many fields":   `["K1", 0, "Name", "src", "extra"]`,
		"priority string":   `["K1", "0", "Name", "src"]`,
		"priority float":    `["K1", 1.5, "Name", "src"]`,
		"negative":          `["K1", -1, "Name", "src"]`,
		"empty device":      `["", 0, "Name", "src"]`,
		"empty source":      `["K1", 0, "Name", ""]`,
		"name not string":   `["K1", 0, 12, "src"]`,
		"device not string": `[1, 0, "Name", "src"]`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			var r Rule
			err := json.Unmarshal([]byte(in), &r)
			require.ErrorIs(t, err, ErrMalformedRule)
			assert.Equal(t, Rule{}, r)
		})
	}
}

func TestRuleValidate(t *testing.T) {
	assert.NoError(t, Rule{DeviceID: "K1", SourceID: "src"}.Validate())
	assert.ErrorIs(t, Rule{DeviceID: "K1", Priority: -3, SourceID: "src"}.Validate(), ErrMalformedRule)
}
