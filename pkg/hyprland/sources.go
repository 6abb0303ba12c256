package hyprland

import (
	"errors"
	"fmt"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

var ErrNoKeyboard = errors.New("no keyboard configured in hyprland")

type KeyboardLayoutSwitcher interface {
	GetKeyboards() ([]Keyboard, error)
	SwitchToLayout(keyboard string, idx int) error
}

// LayoutNames maps xkb layout codes to their human names and back.
type LayoutNames interface {
	GetLayoutPrettyName(layout, variant string) string
	GetLayoutAndVariantFromPrettyName(prettyName string) (string, string)
}

// SourceManager exposes the layouts of the main hyprland keyboard as input
// sources. Activating a source switches every keyboard to it.
type SourceManager struct {
	switcher KeyboardLayoutSwitcher
	names    LayoutNames
	// Target is the keyboard switchxkblayout applies to, "all" by default.
	Target string
}

func NewSourceManager(switcher KeyboardLayoutSwitcher, names LayoutNames) *SourceManager {
	return &SourceManager{
		switcher: switcher,
		names:    names,
		Target:   "all",
	}
}

// SourceID is the identifier of a layout: "us", or "fr+latin9" with a
// variant.
func SourceID(layout, variant string) string {
	if variant == "" {
		return layout
	}
	return layout + "+" + variant
}

func (m *SourceManager) mainKeyboard() (Keyboard, error) {
	keyboards, err := m.switcher.GetKeyboards()
	if err != nil {
		return Keyboard{}, fmt.Errorf("get keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return Keyboard{}, ErrNoKeyboard
	}
	for _, k := range keyboards {
		if k.Main {
			return k, nil
		}
	}
	return keyboards[0], nil
}

func (m *SourceManager) sourcesOf(k Keyboard) []pluggedkbd.InputSource {
	out := make([]pluggedkbd.InputSource, 0, len(k.Layouts))
	for i, layout := range k.Layouts {
		variant := k.Variants[i]
		src := pluggedkbd.InputSource{
			ID:          SourceID(layout, variant),
			ShortName:   layout,
			DisplayName: m.names.GetLayoutPrettyName(layout, variant),
		}
		if src.DisplayName == "" {
			src.DisplayName = src.ID
		}
		out = append(out, src)
	}
	return out
}

func (m *SourceManager) InputSources() ([]pluggedkbd.InputSource, error) {
	k, err := m.mainKeyboard()
	if err != nil {
		return nil, err
	}
	return m.sourcesOf(k), nil
}

// CurrentSource maps the active keymap of the main keyboard back to a source.
func (m *SourceManager) CurrentSource() (pluggedkbd.InputSource, error) {
	k, err := m.mainKeyboard()
	if err != nil {
		return pluggedkbd.InputSource{}, err
	}
	return m.sourceForKeymap(k, k.ActiveKeymap)
}

func (m *SourceManager) sourceForKeymap(k Keyboard, keymap string) (pluggedkbd.InputSource, error) {
	sources := m.sourcesOf(k)

	layout, variant := m.names.GetLayoutAndVariantFromPrettyName(keymap)
	if layout != "" {
		id := SourceID(layout, variant)
		for _, src := range sources {
			if src.ID == id {
				return src, nil
			}
		}
	}

	// layouts unknown to evdev.xml are reported by code
	for _, src := range sources {
		if src.DisplayName == keymap {
			return src, nil
		}
	}

	return pluggedkbd.InputSource{}, fmt.Errorf("%w: active keymap %q", pluggedkbd.ErrUnknownSource, keymap)
}

func (m *SourceManager) Activate(id string) error {
	k, err := m.mainKeyboard()
	if err != nil {
		return err
	}
	for i, src := range m.sourcesOf(k) {
		if src.ID == id {
			if err := m.switcher.SwitchToLayout(m.Target, i); err != nil {
				return fmt.Errorf("switch to %s: %w", id, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", pluggedkbd.ErrUnknownSource, id)
}
