package pluggedkbd

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Keyboard is a device known to the registry.
type Keyboard struct {
	ID          string
	Connected   bool
	DisplayName string
	Priority    int
	Associated  *InputSource
}

func (k *Keyboard) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kbd %s (%s) with priority %d ", k.ID, k.DisplayName, k.Priority)
	if k.Connected {
		sb.WriteString("connected, ")
	} else {
		sb.WriteString("not connected, ")
	}
	if k.Associated != nil {
		fmt.Fprintf(&sb, "associated to: %s", k.Associated.ShortName)
	} else {
		sb.WriteString("not associated")
	}
	return sb.String()
}

type trigger int

const (
	pluggedIn trigger = iota
	pluggedOut
)

// Keyboards is the registry of known keyboards and their associations.
//
// It decides which input source to activate when keyboards are plugged in
// or out. A newly plugged associated keyboard takes over when its priority
// is greater than or equal to the current keyboard's. When the current
// keyboard goes away, the connected associated keyboard with the lowest
// priority takes over, or the default source is activated.
//
// Keyboards is not safe for concurrent use; Service serializes access.
type Keyboards struct {
	log *zap.SugaredLogger
	ism InputSourceManager

	byID  map[string]*Keyboard
	order []string

	current       *Keyboard
	defaultSource *InputSource
	currentSource InputSource

	observers map[int]func()
	nextObsID int
}

func NewKeyboards(ism InputSourceManager, log *zap.SugaredLogger) *Keyboards {
	k := &Keyboards{
		log:       log,
		ism:       ism,
		byID:      make(map[string]*Keyboard),
		observers: make(map[int]func()),
	}

	src, err := ism.CurrentSource()
	if err != nil {
		log.Warnw("could not read current input source", "error", err)
	} else {
		k.currentSource = src
	}

	return k
}

// OnChanged registers fn to be called once after every registry mutation.
// The returned func detaches it.
func (k *Keyboards) OnChanged(fn func()) (cancel func()) {
	id := k.nextObsID
	k.nextObsID++
	k.observers[id] = fn
	return func() {
		delete(k.observers, id)
	}
}

func (k *Keyboards) emitChanged() {
	ids := make([]int, 0, len(k.observers))
	for id := range k.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := k.observers[id]; ok {
			fn()
		}
	}
}

func (k *Keyboards) activate(src *InputSource, reason string) {
	k.log.Debugw("activating input source", "source", src.ID, "reason", reason)
	if err := k.ism.Activate(src.ID); err != nil {
		k.log.Warnw("failed to activate input source", "source", src.ID, "error", err)
	}
}

func (k *Keyboards) execRules(t trigger, dev *Keyboard) {
	switch t {
	case pluggedIn:
		if dev.Associated == nil {
			return
		}
		if k.current != nil {
			// the incoming keyboard wins ties
			if k.current.Priority <= dev.Priority {
				k.log.Debugw("making keyboard current", "keyboard", dev.ID, "previous", k.current.ID)
				k.activate(dev.Associated, "plugged in")
				k.current = dev
			}
			return
		}

		cur, err := k.ism.CurrentSource()
		if err != nil {
			k.log.Warnw("could not read current input source", "error", err)
		}
		if err != nil || cur.ID != dev.Associated.ID {
			k.activate(dev.Associated, "plugged in")
		}
		k.current = dev

	case pluggedOut:
		// only the current keyboard changes the source; if the user switched
		// manually to something else, leave it alone
		if dev.Associated == nil || dev != k.current {
			return
		}
		if next := k.bestCandidate(dev); next != nil {
			k.log.Debugw("falling back to keyboard", "keyboard", next.ID, "removed", dev.ID)
			k.activate(next.Associated, "plugged out")
			k.current = next
			return
		}
		if k.defaultSource != nil {
			k.activate(k.defaultSource, "plugged out, default")
		}
		k.current = nil
	}
}

// bestCandidate returns the connected associated keyboard with the lowest
// priority, ignoring except. Insertion order breaks ties.
func (k *Keyboards) bestCandidate(except *Keyboard) *Keyboard {
	candidates := make([]*Keyboard, 0, len(k.order))
	for _, id := range k.order {
		kb := k.byID[id]
		if kb == except || !kb.Connected || kb.Associated == nil {
			continue
		}
		candidates = append(candidates, kb)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})
	return candidates[0]
}

func (k *Keyboards) insert(kb *Keyboard) {
	if _, ok := k.byID[kb.ID]; !ok {
		k.order = append(k.order, kb.ID)
	}
	k.byID[kb.ID] = kb
}

func (k *Keyboards) delete(id string) {
	if _, ok := k.byID[id]; !ok {
		return
	}
	delete(k.byID, id)
	for i, other := range k.order {
		if other == id {
			k.order = append(k.order[:i], k.order[i+1:]...)
			break
		}
	}
}

// Add marks dev as connected, creating it if needed, and applies the
// plugged-in rule.
func (k *Keyboards) Add(dev Descriptor) {
	kb, ok := k.byID[dev.Name()]
	if ok {
		kb.Connected = true
	} else {
		kb = &Keyboard{
			ID:          dev.Name(),
			Connected:   true,
			DisplayName: dev.DisplayName(),
			Priority:    k.Size(),
		}
		k.insert(kb)
		k.log.Debugw("created keyboard", "keyboard", kb.String())
	}

	k.execRules(pluggedIn, kb)
	k.emitChanged()
}

// Remove marks the keyboard as disconnected and applies the plugged-out
// rule. Unassociated keyboards are forgotten.
func (k *Keyboards) Remove(id string) {
	kb, ok := k.byID[id]
	if !ok {
		return
	}
	kb.Connected = false
	k.execRules(pluggedOut, kb)
	if kb.Associated == nil {
		k.delete(id)
	}
	k.emitChanged()
}

func (k *Keyboards) SetDefaultSource(src *InputSource) {
	k.defaultSource = src
}

func (k *Keyboards) DefaultSource() *InputSource {
	return k.defaultSource
}

// Current returns the keyboard whose association drives the active source.
func (k *Keyboards) Current() *Keyboard {
	return k.current
}

// Associate links kb to src. If src is the active source, kb becomes current.
func (k *Keyboards) Associate(kb *Keyboard, src InputSource) {
	kb.Associated = &src
	if k.currentSource.ID == src.ID {
		k.current = kb
	}
	k.emitChanged()
}

// Deassociate removes kb's association. It does not pick another keyboard
// when kb was current. A disconnected keyboard is forgotten.
func (k *Keyboards) Deassociate(kb *Keyboard) {
	kb.Associated = nil
	if k.current == kb {
		k.current = nil
	}
	if !kb.Connected {
		k.delete(kb.ID)
	}
	k.emitChanged()
}

// Rules lists every associated keyboard, connected or not.
func (k *Keyboards) Rules() []Rule {
	var rules []Rule
	for _, id := range k.order {
		kb := k.byID[id]
		if kb.Associated == nil {
			continue
		}
		rules = append(rules, Rule{
			DeviceID:    kb.ID,
			Priority:    kb.Priority,
			DisplayName: kb.DisplayName,
			SourceID:    kb.Associated.ID,
		})
	}
	return rules
}

// SetRules restores disconnected, associated keyboards from rules. Rules
// pointing at unknown sources are dropped.
func (k *Keyboards) SetRules(rules []Rule) error {
	sources, err := k.ism.InputSources()
	if err != nil {
		return fmt.Errorf("list input sources: %w", err)
	}
	byID := make(map[string]InputSource, len(sources))
	for _, src := range sources {
		byID[src.ID] = src
	}

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			k.log.Warnw("dropping rule", "error", err)
			continue
		}
		src, ok := byID[rule.SourceID]
		if !ok {
			k.log.Warnw("input source is no longer valid, dropping rule", "source", rule.SourceID, "keyboard", rule.DeviceID)
			continue
		}
		if k.current != nil && k.current.ID == rule.DeviceID {
			k.current = nil
		}
		k.insert(&Keyboard{
			ID:          rule.DeviceID,
			Connected:   false,
			DisplayName: rule.DisplayName,
			Priority:    rule.Priority,
			Associated:  &src,
		})
	}

	k.emitChanged()
	return nil
}

// UpdateCurrentSource re-reads the active source and makes the connected
// keyboard associated with it current, if any.
func (k *Keyboards) UpdateCurrentSource() {
	src, err := k.ism.CurrentSource()
	if err != nil {
		k.log.Warnw("could not read current input source", "error", err)
		return
	}
	k.currentSource = src

	k.current = nil
	for _, id := range k.order {
		kb := k.byID[id]
		if kb.Connected && kb.Associated != nil && kb.Associated.ID == src.ID {
			k.current = kb
			break
		}
	}
	k.emitChanged()
}

// Reassert makes the best connected associated keyboard current when no
// keyboard is. Its source is activated only if it differs from the active
// one. It reports whether a keyboard was made current.
func (k *Keyboards) Reassert() bool {
	if k.current != nil {
		return false
	}
	best := k.bestCandidate(nil)
	if best == nil {
		return false
	}
	if best.Associated.ID != k.currentSource.ID {
		k.activate(best.Associated, "reassert")
	}
	k.current = best
	k.emitChanged()
	return true
}

func (k *Keyboards) Clear() {
	k.byID = make(map[string]*Keyboard)
	k.order = nil
	k.current = nil
	k.emitChanged()
}

func (k *Keyboards) Size() int {
	return len(k.byID)
}

func (k *Keyboards) Has(id string) bool {
	_, ok := k.byID[id]
	return ok
}

func (k *Keyboards) Get(id string) (*Keyboard, bool) {
	kb, ok := k.byID[id]
	return kb, ok
}

// Values returns the keyboards in insertion order.
func (k *Keyboards) Values() []*Keyboard {
	out := make([]*Keyboard, 0, len(k.order))
	for _, id := range k.order {
		out = append(out, k.byID[id])
	}
	return out
}
