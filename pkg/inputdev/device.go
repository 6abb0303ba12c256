package inputdev

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// InputDevice is a keyboard as seen in /proc/bus/input/devices. Several
// event handlers sharing a name are merged into one device.
type InputDevice struct {
	name          string
	displayName   string
	isDefaultName bool

	// handler id (event3) -> phys path
	handlers map[string]string
	order    []string

	resolver NameResolver
}

func NewInputDevice(name string, resolver NameResolver) *InputDevice {
	return &InputDevice{
		name:          name,
		displayName:   name,
		isDefaultName: true,
		handlers:      make(map[string]string),
		resolver:      resolver,
	}
}

// AddPhys records an event handler of this device. The first handler seen
// while the display name is still the default triggers a name lookup.
func (d *InputDevice) AddPhys(ctx context.Context, handler, phys string) {
	if _, ok := d.handlers[handler]; ok {
		return
	}
	d.handlers[handler] = phys
	d.order = append(d.order, handler)

	if d.isDefaultName && d.resolver != nil && handler != "" {
		if name, ok := d.resolver.ResolveName(ctx, handler); ok {
			d.displayName = name
			d.isDefaultName = false
		}
	}
}

func (d *InputDevice) Name() string {
	return d.name
}

// DisplayName is the human friendly name: underscores become spaces, words
// are capitalized and \xHH escapes are decoded.
func (d *InputDevice) DisplayName() string {
	return FormatDisplayName(d.displayName)
}

func (d *InputDevice) IsDefaultName() bool {
	return d.isDefaultName
}

// EventHandlers returns the handler ids in the order they were added.
func (d *InputDevice) EventHandlers() []string {
	return append([]string(nil), d.order...)
}

func (d *InputDevice) Phys(handler string) (string, bool) {
	phys, ok := d.handlers[handler]
	return phys, ok
}

func (d *InputDevice) String() string {
	evs := make([]string, 0, len(d.order))
	for _, h := range d.order {
		evs = append(evs, fmt.Sprintf("%s (%s)", h, d.handlers[h]))
	}
	return fmt.Sprintf("%s: [%s]", d.name, strings.Join(evs, ", "))
}

var hexEscape = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)

func FormatDisplayName(raw string) string {
	s := strings.ReplaceAll(raw, "_", " ")

	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		if i == 0 || unicode.IsSpace(runes[i-1]) {
			runes[i] = unicode.ToUpper(r)
		}
	}
	s = string(runes)

	// escapes are usually the bytes of a UTF-8 name, otherwise latin-1
	decoded := decodeHexEscapes(s, func(c byte) string { return string([]byte{c}) })
	if utf8.ValidString(decoded) {
		return decoded
	}
	return decodeHexEscapes(s, func(c byte) string { return string(rune(c)) })
}

func decodeHexEscapes(s string, decode func(byte) string) string {
	return hexEscape.ReplaceAllStringFunc(s, func(m string) string {
		c, err := strconv.ParseUint(m[2:], 16, 8)
		if err != nil {
			return m
		}
		return decode(byte(c))
	})
}

func sortedKeys(m map[string]*InputDevice) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
