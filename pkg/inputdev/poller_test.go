package inputdev

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	kbd1      = "AT Translated Set 2"
	kbd1Dev   = "event3"
	kbd1Phys  = "isa0060/serio0/input0"
	kbd2      = "OLKB Planck"
	kbd2Dev1  = "event20"
	kbd2Phys1 = "usb-0000:00:14.0-2/input0"
	kbd2Dev2  = "event22"
)

// pollerOn returns a poller reading a copy of testdata/name, and a func that
// swaps the listing for another testdata file.
func pollerOn(t *testing.T, name string, opts ...PollerOption) (*Poller, func(string)) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "devices")
	swap := func(name string) {
		contents, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, contents, 0644))
	}
	swap(name)

	opts = append([]PollerOption{WithDevicesFile(path)}, opts...)
	return NewPoller(zaptest.NewLogger(t).Sugar(), opts...), swap
}

func TestPollerDevices1(t *testing.T) {
	p, _ := pollerOn(t, "devices1")

	events, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, pluggedkbd.DeviceAdded, events[0].Kind)
	assert.Equal(t, kbd1, events[0].ID)

	dev, ok := p.Device(kbd1)
	require.True(t, ok)
	assert.Equal(t, kbd1, dev.Name())
	assert.Contains(t, dev.EventHandlers(), kbd1Dev)
	phys, _ := dev.Phys(kbd1Dev)
	assert.Equal(t, kbd1Phys, phys)

	str := p.String()
	assert.Contains(t, str, kbd1)
	assert.Contains(t, str, kbd1Dev)
	assert.Contains(t, str, kbd1Phys)
}

func TestPollerMergesHandlers(t *testing.T) {
	p, _ := pollerOn(t, "devices2")

	events, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, kbd1, events[0].ID)
	assert.Equal(t, kbd2, events[1].ID)

	dev, ok := p.Device(kbd2)
	require.True(t, ok)
	assert.Equal(t, []string{kbd2Dev1, kbd2Dev2}, dev.EventHandlers())
	phys, _ := dev.Phys(kbd2Dev1)
	assert.Equal(t, kbd2Phys1, phys)
}

func TestPollerDetectsAdded(t *testing.T) {
	p, swap := pollerOn(t, "devices1")
	ctx := context.Background()

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	swap("devices2")
	events, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, pluggedkbd.DeviceAdded, events[0].Kind)
	assert.Equal(t, kbd2, events[0].ID)
	require.NotNil(t, events[0].Device)
	assert.Equal(t, kbd2, events[0].Device.Name())
}

func TestPollerDetectsRemoved(t *testing.T) {
	p, swap := pollerOn(t, "devices2")
	ctx := context.Background()

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	swap("devices1")
	events, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, pluggedkbd.DeviceRemoved, events[0].Kind)
	assert.Equal(t, kbd2, events[0].ID)
	assert.Nil(t, events[0].Device)

	_, ok := p.Device(kbd2)
	assert.False(t, ok)
	_, ok = p.Device(kbd1)
	assert.True(t, ok)
}

func TestPollerIsIdempotent(t *testing.T) {
	p, _ := pollerOn(t, "devices2")
	ctx := context.Background()

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	events, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPollerAddsBeforeRemoves(t *testing.T) {
	p, _ := pollerOn(t, "devices1")
	p.register["Gone"] = NewInputDevice("Gone", nil)

	events := p.apply(context.Background(), []Block{planckBlock("event20")})
	require.Len(t, events, 2)
	assert.Equal(t, pluggedkbd.DeviceAdded, events[0].Kind)
	assert.Equal(t, pluggedkbd.DeviceRemoved, events[1].Kind)
	assert.Equal(t, "Gone", events[1].ID)
}

func TestPollerKeepsStateOnReadError(t *testing.T) {
	p, _ := pollerOn(t, "devices1")
	ctx := context.Background()

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	p.path = filepath.Join(t.TempDir(), "missing")
	_, err = p.Poll(ctx)
	require.Error(t, err)

	_, ok := p.Device(kbd1)
	assert.True(t, ok)
}

func TestPollerResolvesNames(t *testing.T) {
	res := &fakeResolver{names: map[string]string{kbd2Dev1: "Planck"}}
	p, _ := pollerOn(t, "devices2", WithNameResolver(res))

	_, err := p.Poll(context.Background())
	require.NoError(t, err)

	dev, _ := p.Device(kbd2)
	assert.Equal(t, "Planck", dev.DisplayName())
	dev, _ = p.Device(kbd1)
	assert.Equal(t, kbd1, dev.DisplayName())
}

func planckBlock(handler string) Block {
	return Block{
		Name:    "OLKB Planck",
		EV:      "120013",
		Key:     "1000000000007 ff9f207ac14057ff febeffdfffefffff fffffffffffffffe",
		Phys:    "usb-0000:00:14.0-2/input0",
		Handler: handler,
	}
}

// hangingResolver blocks until the lookup is cancelled.
type hangingResolver struct{}

func (hangingResolver) ResolveName(ctx context.Context, _ string) (string, bool) {
	<-ctx.Done()
	return "", false
}

func TestPollerLookupTimeoutKeepsDefaultName(t *testing.T) {
	p, _ := pollerOn(t, "devices1",
		WithNameResolver(hangingResolver{}),
		WithLookupTimeout(50*time.Millisecond),
	)

	start := time.Now()
	events, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, events, 1)
	dev, ok := p.Device(kbd1)
	require.True(t, ok)
	assert.True(t, dev.IsDefaultName())
	assert.Equal(t, kbd1, dev.DisplayName())
}
