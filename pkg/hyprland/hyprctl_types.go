package hyprland

import (
	"strings"
)

type keyboard struct {
	Name         string `json:"name"`
	Layout       string `json:"layout"`
	Variant      string `json:"variant"`
	Options      string `json:"options"`
	ActiveKeymap string `json:"active_keymap"`
	Main         bool   `json:"main"`
}

type devices struct {
	Keyboards []keyboard `json:"keyboards"`
}

// Keyboard is a keyboard as configured in hyprland. Layouts and Variants
// have the same length.
type Keyboard struct {
	Name         string
	Layouts      []string
	Variants     []string
	ActiveKeymap string
	Main         bool
}

func (k keyboard) ToKeyboard() Keyboard {
	layouts := strings.Split(k.Layout, ",")
	variants := strings.Split(k.Variant, ",")
	for len(variants) < len(layouts) {
		variants = append(variants, "")
	}

	return Keyboard{
		Name:         k.Name,
		Layouts:      layouts,
		Variants:     variants[:len(layouts)],
		ActiveKeymap: k.ActiveKeymap,
		Main:         k.Main,
	}
}
