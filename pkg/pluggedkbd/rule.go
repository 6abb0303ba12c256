package pluggedkbd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RuleVersion is the version of the persisted rule tuple.
const RuleVersion = 1

var ErrMalformedRule = errors.New("malformed rule")

// Rule associates a keyboard with an input source. It is persisted as the
// tuple (deviceId, priority, displayName, sourceId).
type Rule struct {
	DeviceID    string
	Priority    int
	DisplayName string
	SourceID    string
}

func (r Rule) Validate() error {
	switch {
	case r.DeviceID == "":
		return fmt.Errorf("%w: empty device id", ErrMalformedRule)
	case r.Priority < 0:
		return fmt.Errorf("%w: negative priority %d for %q", ErrMalformedRule, r.Priority, r.DeviceID)
	case r.SourceID == "":
		return fmt.Errorf("%w: empty source id for %q", ErrMalformedRule, r.DeviceID)
	}
	return nil
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.DeviceID, r.Priority, r.DisplayName, r.SourceID})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	if len(fields) != 4 {
		return fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedRule, len(fields))
	}

	var rule Rule
	if err := json.Unmarshal(fields[0], &rule.DeviceID); err != nil {
		return fmt.Errorf("%w: device id: %v", ErrMalformedRule, err)
	}

	raw := bytes.TrimSpace(fields[1])
	if len(raw) == 0 || raw[0] == '"' {
		return fmt.Errorf("%w: priority is not a number", ErrMalformedRule)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var prio json.Number
	if err := dec.Decode(&prio); err != nil {
		return fmt.Errorf("%w: priority: %v", ErrMalformedRule, err)
	}
	p, err := prio.Int64()
	if err != nil {
		return fmt.Errorf("%w: priority: %v", ErrMalformedRule, err)
	}
	rule.Priority = int(p)

	if err := json.Unmarshal(fields[2], &rule.DisplayName); err != nil {
		return fmt.Errorf("%w: display name: %v", ErrMalformedRule, err)
	}
	if err := json.Unmarshal(fields[3], &rule.SourceID); err != nil {
		return fmt.Errorf("%w: source id: %v", ErrMalformedRule, err)
	}

	if err := rule.Validate(); err != nil {
		return err
	}

	*r = rule
	return nil
}
