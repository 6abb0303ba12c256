package xkblayouts

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

const DefaultPath = "/usr/share/X11/xkb/rules/evdev.xml"

func ParseLayouts(path string) (*XkbConfigRegistry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

func Parse(r io.Reader) (*XkbConfigRegistry, error) {
	registry := &XkbConfigRegistry{}
	if err := xml.NewDecoder(r).Decode(registry); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	registry.index()

	return registry, nil
}

func key(layout, variant string) string {
	return layout + "(" + variant + ")"
}

// index builds the lookup tables. The first description wins, evdev.xml
// has a few duplicates.
func (r *XkbConfigRegistry) index() {
	r.byCode = make(map[string]string)
	r.byDescription = make(map[string]layoutVariant)

	add := func(layout, variant, description string) {
		r.byCode[key(layout, variant)] = description
		if _, ok := r.byDescription[description]; !ok {
			r.byDescription[description] = layoutVariant{layout, variant}
		}
	}

	for _, l := range r.LayoutList.Layout {
		add(l.ConfigItem.Name, "", l.ConfigItem.Description)
		for _, v := range l.VariantList.Variant {
			add(l.ConfigItem.Name, v.ConfigItem.Name, v.ConfigItem.Description)
		}
	}
}

// GetLayoutPrettyName returns the description of a layout or one of its
// variants, or "" if evdev.xml does not know it.
func (r *XkbConfigRegistry) GetLayoutPrettyName(layout, variant string) string {
	if r.byCode == nil {
		r.index()
	}
	return r.byCode[key(layout, variant)]
}

func (r *XkbConfigRegistry) GetLayoutAndVariantFromPrettyName(prettyName string) (string, string) {
	if r.byDescription == nil {
		r.index()
	}
	lv := r.byDescription[prettyName]
	return lv.layout, lv.variant
}

// Len is the number of layouts, variants not included.
func (r *XkbConfigRegistry) Len() int {
	return len(r.LayoutList.Layout)
}
