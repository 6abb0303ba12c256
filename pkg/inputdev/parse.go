package inputdev

import (
	"math/bits"
	"regexp"
	"strconv"
	"strings"
)

// EV_SYN | EV_KEY | EV_REP
const keyboardEVMask = 0x100003

const minKeyboardKeys = 100

// Block is one device entry of /proc/bus/input/devices.
type Block struct {
	Name    string
	EV      string
	Key     string
	Phys    string
	Handler string
}

var (
	nameRe    = regexp.MustCompile(`^N: Name="(.*)"`)
	evRe      = regexp.MustCompile(`^B: EV=([0-9a-fA-F]+)`)
	keyRe     = regexp.MustCompile(`^B: KEY=(.*)`)
	physRe    = regexp.MustCompile(`^P: Phys=(.*)`)
	handlerRe = regexp.MustCompile(`^H: Handlers=.*?\b(event\d+)\b`)

	keyboardSuffixRe = regexp.MustCompile(`(?i)\Wkeyboard$`)
)

// ParseBlocks splits a device listing into blank-line separated blocks.
func ParseBlocks(contents string) []Block {
	contents = strings.ReplaceAll(contents, "\r\n", "\n")

	var blocks []Block
	for _, raw := range strings.Split(contents, "\n\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var b Block
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if m := nameRe.FindStringSubmatch(line); m != nil {
				b.Name = m[1]
			} else if m := evRe.FindStringSubmatch(line); m != nil {
				b.EV = m[1]
			} else if m := keyRe.FindStringSubmatch(line); m != nil {
				b.Key = m[1]
			} else if m := physRe.FindStringSubmatch(line); m != nil {
				b.Phys = m[1]
			} else if m := handlerRe.FindStringSubmatch(line); m != nil {
				b.Handler = m[1]
			}
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// IsKeyboard reports whether the block looks like a keyboard: it repeats
// keys and has more than 100 of them.
func (b Block) IsKeyboard() bool {
	if b.Name == "" || b.EV == "" || b.Key == "" {
		return false
	}
	return validEV(b.EV) && NumKeys(b.Key) > minKeyboardKeys
}

// BaseName is the device name without a trailing "keyboard".
func (b Block) BaseName() string {
	return NormalizeName(b.Name)
}

func NormalizeName(name string) string {
	return keyboardSuffixRe.ReplaceAllString(name, "")
}

func validEV(ev string) bool {
	v, err := strconv.ParseUint(ev, 16, 64)
	if err != nil {
		return false
	}
	return v&keyboardEVMask == keyboardEVMask
}

// NumKeys counts the bits set in a KEY= bitmap.
func NumKeys(key string) int {
	n := 0
	for _, c := range strings.ToLower(key) {
		v, err := strconv.ParseUint(string(c), 16, 8)
		if err != nil {
			continue
		}
		n += bits.OnesCount8(uint8(v))
	}
	return n
}
