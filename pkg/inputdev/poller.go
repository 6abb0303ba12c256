package inputdev

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
	"go.uber.org/zap"
)

const DefaultDevicesFile = "/proc/bus/input/devices"

type Poller struct {
	log      *zap.SugaredLogger
	path     string
	resolver NameResolver
	timeout  time.Duration

	register map[string]*InputDevice
}

type PollerOption func(*Poller)

func WithDevicesFile(path string) PollerOption {
	return func(p *Poller) {
		p.path = path
	}
}

func WithNameResolver(r NameResolver) PollerOption {
	return func(p *Poller) {
		p.resolver = r
	}
}

// WithLookupTimeout bounds a single display name lookup.
func WithLookupTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.timeout = d
	}
}

func NewPoller(log *zap.SugaredLogger, opts ...PollerOption) *Poller {
	p := &Poller{
		log:      log,
		path:     DefaultDevicesFile,
		timeout:  2 * time.Second,
		register: make(map[string]*InputDevice),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll reads the device listing and returns added keyboards followed by
// removed ones. Removed keyboards are forgotten. If the listing cannot be
// read, the previous state is kept.
func (p *Poller) Poll(ctx context.Context) ([]pluggedkbd.DeviceEvent, error) {
	contents, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.path, err)
	}
	return p.apply(ctx, ParseBlocks(string(contents))), nil
}

func (p *Poller) apply(ctx context.Context, blocks []Block) []pluggedkbd.DeviceEvent {
	seen := make(map[string]bool)
	var added []pluggedkbd.DeviceEvent

	for _, b := range blocks {
		if !b.IsKeyboard() {
			continue
		}
		name := b.BaseName()
		seen[name] = true

		dev, ok := p.register[name]
		if !ok {
			dev = NewInputDevice(name, p.resolver)
			p.register[name] = dev
			added = append(added, pluggedkbd.DeviceEvent{
				Kind:   pluggedkbd.DeviceAdded,
				ID:     name,
				Device: dev,
			})
		}
		p.addPhys(ctx, dev, b.Handler, b.Phys)
	}

	events := added
	for _, name := range sortedKeys(p.register) {
		if seen[name] {
			continue
		}
		events = append(events, pluggedkbd.DeviceEvent{
			Kind: pluggedkbd.DeviceRemoved,
			ID:   name,
		})
		delete(p.register, name)
	}

	return events
}

func (p *Poller) addPhys(ctx context.Context, dev *InputDevice, handler, phys string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	wasDefault := dev.IsDefaultName()
	dev.AddPhys(ctx, handler, phys)
	if wasDefault && !dev.IsDefaultName() {
		p.log.Debugw("resolved device name", "device", dev.Name(), "name", dev.DisplayName())
	}
}

// Device returns the live descriptor of a present keyboard.
func (p *Poller) Device(id string) (*InputDevice, bool) {
	dev, ok := p.register[id]
	return dev, ok
}

func (p *Poller) String() string {
	devs := make([]string, 0, len(p.register))
	for _, name := range sortedKeys(p.register) {
		devs = append(devs, p.register[name].String())
	}
	return fmt.Sprintf("[ %s ]", strings.Join(devs, "; "))
}
