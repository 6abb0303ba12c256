package pluggedkbd

const (
	LabelKeyboards   = "Keyboards"
	LabelNoKeyboards = "No external keyboards"
)

// StatusLabel is the one-line summary of the registry: the current
// keyboard's name, or a placeholder. visible is false when there is nothing
// to show and alwaysShow is off.
func StatusLabel(k *Keyboards, alwaysShow bool) (label string, visible bool) {
	if k.Size() == 0 {
		return LabelNoKeyboards, alwaysShow
	}
	if cur := k.Current(); cur != nil {
		return cur.DisplayName, true
	}
	return LabelKeyboards, true
}

// KeyboardState is a snapshot of one registry entry.
type KeyboardState struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Priority    int    `json:"priority"`
	Connected   bool   `json:"connected"`
	Current     bool   `json:"current"`
	SourceID    string `json:"source_id,omitempty"`
	SourceName  string `json:"source_name,omitempty"`
}

// Snapshot is a copy of the registry safe to hand to other goroutines.
type Snapshot struct {
	Label     string          `json:"label"`
	Visible   bool            `json:"visible"`
	Keyboards []KeyboardState `json:"keyboards"`
}

func TakeSnapshot(k *Keyboards, alwaysShow bool) Snapshot {
	label, visible := StatusLabel(k, alwaysShow)
	snap := Snapshot{
		Label:     label,
		Visible:   visible,
		Keyboards: make([]KeyboardState, 0, k.Size()),
	}
	for _, kb := range k.Values() {
		st := KeyboardState{
			ID:          kb.ID,
			DisplayName: kb.DisplayName,
			Priority:    kb.Priority,
			Connected:   kb.Connected,
			Current:     kb == k.Current(),
		}
		if kb.Associated != nil {
			st.SourceID = kb.Associated.ID
			st.SourceName = kb.Associated.ShortName
		}
		snap.Keyboards = append(snap.Keyboards, st)
	}
	return snap
}
