package hyprland

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

type fakeSwitcher struct {
	keyboards []Keyboard
	err       error
	switched  []string
}

func (f *fakeSwitcher) GetKeyboards() ([]Keyboard, error) {
	return f.keyboards, f.err
}

func (f *fakeSwitcher) SwitchToLayout(keyboard string, idx int) error {
	f.switched = append(f.switched, keyboard+":"+f.keyboards[0].Layouts[idx])
	return nil
}

type fakeNames map[string]string

func (f fakeNames) GetLayoutPrettyName(layout, variant string) string {
	return f[SourceID(layout, variant)]
}

func (f fakeNames) GetLayoutAndVariantFromPrettyName(prettyName string) (string, string) {
	for id, name := range f {
		if name == prettyName {
			layout, variant, _ := strings.Cut(id, "+")
			return layout, variant
		}
	}
	return "", ""
}

var names = fakeNames{
	"us":        "English (US)",
	"de":        "German",
	"fr+latin9": "French (legacy, alt.)",
}

func newTestSources() (*SourceManager, *fakeSwitcher) {
	sw := &fakeSwitcher{
		keyboards: []Keyboard{
			{
				Name:         "at-translated-set-2-keyboard",
				Layouts:      []string{"us", "de", "fr", "xx"},
				Variants:     []string{"", "", "latin9", ""},
				ActiveKeymap: "German",
				Main:         true,
			},
		},
	}
	return NewSourceManager(sw, names), sw
}

func TestInputSources(t *testing.T) {
	m, _ := newTestSources()

	sources, err := m.InputSources()
	require.NoError(t, err)
	assert.Equal(t, []pluggedkbd.InputSource{
		{ID: "us", ShortName: "us", DisplayName: "English (US)"},
		{ID: "de", ShortName: "de", DisplayName: "German"},
		{ID: "fr+latin9", ShortName: "fr", DisplayName: "French (legacy, alt.)"},
		{ID: "xx", ShortName: "xx", DisplayName: "xx"},
	}, sources)
}

func TestInputSourcesPicksMainKeyboard(t *testing.T) {
	m, sw := newTestSources()
	sw.keyboards = append([]Keyboard{{
		Name:     "other",
		Layouts:  []string{"us"},
		Variants: []string{""},
	}}, sw.keyboards...)

	sources, err := m.InputSources()
	require.NoError(t, err)
	assert.Len(t, sources, 4)
}

func TestInputSourcesNoKeyboard(t *testing.T) {
	m, sw := newTestSources()
	sw.keyboards = nil

	_, err := m.InputSources()
	assert.ErrorIs(t, err, ErrNoKeyboard)
}

func TestInputSourcesError(t *testing.T) {
	m, sw := newTestSources()
	sw.err = errors.New("socket gone")

	_, err := m.InputSources()
	assert.ErrorContains(t, err, "socket gone")
}

func TestCurrentSource(t *testing.T) {
	m, sw := newTestSources()

	src, err := m.CurrentSource()
	require.NoError(t, err)
	assert.Equal(t, "de", src.ID)

	sw.keyboards[0].ActiveKeymap = "French (legacy, alt.)"
	src, err = m.CurrentSource()
	require.NoError(t, err)
	assert.Equal(t, "fr+latin9", src.ID)

	sw.keyboards[0].ActiveKeymap = "xx"
	src, err = m.CurrentSource()
	require.NoError(t, err)
	assert.Equal(t, "xx", src.ID)

	sw.keyboards[0].ActiveKeymap = "Klingon"
	_, err = m.CurrentSource()
	assert.ErrorIs(t, err, pluggedkbd.ErrUnknownSource)
}

func TestActivate(t *testing.T) {
	m, sw := newTestSources()

	require.NoError(t, m.Activate("fr+latin9"))
	assert.Equal(t, []string{"all:fr"}, sw.switched)

	m.Target = "at-translated-set-2-keyboard"
	require.NoError(t, m.Activate("us"))
	assert.Equal(t, []string{"all:fr", "at-translated-set-2-keyboard:us"}, sw.switched)

	err := m.Activate("fr")
	assert.ErrorIs(t, err, pluggedkbd.ErrUnknownSource)
	assert.Len(t, sw.switched, 2)
}

func TestSourceID(t *testing.T) {
	assert.Equal(t, "us", SourceID("us", ""))
	assert.Equal(t, "us+intl", SourceID("us", "intl"))
}
