package inputdev

import (
	"context"

	"github.com/jochenvg/go-udev"
)

// UdevResolver reads ID_MODEL_ENC from the udev database through libudev,
// without spawning udevadm.
type UdevResolver struct {
	udev udev.Udev
}

func NewUdevResolver() *UdevResolver {
	return &UdevResolver{}
}

func (r *UdevResolver) ResolveName(ctx context.Context, handler string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	dev := r.udev.NewDeviceFromSubsystemSysname("input", handler)
	if dev == nil {
		return "", false
	}
	name := dev.PropertyValue("ID_MODEL_ENC")
	return name, name != ""
}
