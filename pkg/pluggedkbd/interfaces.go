package pluggedkbd

import (
	"context"
	"errors"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrUnknownSource = errors.New("unknown input source")
)

// InputSource is a keyboard layout the desktop can switch to.
type InputSource struct {
	ID          string
	ShortName   string
	DisplayName string
}

// InputSourceManager lists, reports and activates input sources.
type InputSourceManager interface {
	InputSources() ([]InputSource, error)
	CurrentSource() (InputSource, error)
	Activate(id string) error
}

type RuleStore interface {
	LoadRules(ctx context.Context) ([]Rule, error)
	SaveRules(ctx context.Context, rules []Rule) error
}

// Descriptor is what the registry needs to know about a detected device.
type Descriptor interface {
	Name() string
	DisplayName() string
}

type DeviceEventKind int

const (
	DeviceAdded DeviceEventKind = iota
	DeviceRemoved
)

func (k DeviceEventKind) String() string {
	switch k {
	case DeviceAdded:
		return "added"
	case DeviceRemoved:
		return "removed"
	}
	return "unknown"
}

type DeviceEvent struct {
	Kind DeviceEventKind
	ID   string
	// Device is nil for removals.
	Device Descriptor
}

type DevicePoller interface {
	Poll(ctx context.Context) ([]DeviceEvent, error)
}
