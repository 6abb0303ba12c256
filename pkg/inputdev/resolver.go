package inputdev

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NameResolver looks up a vendor model name for an event handler such as
// "event3". It reports false when nothing was found; failures are not
// errors.
type NameResolver interface {
	ResolveName(ctx context.Context, handler string) (string, bool)
}

const killWaitDelay = 100 * time.Millisecond

var modelEncRe = regexp.MustCompile(`^E: ID_MODEL_ENC=(.*)$`)

// UdevadmResolver runs `udevadm info /dev/input/<handler>`.
type UdevadmResolver struct {
	Path string
	Log  *zap.SugaredLogger
}

func (r UdevadmResolver) ResolveName(ctx context.Context, handler string) (string, bool) {
	var stdout bytes.Buffer

	path := r.Path
	if path == "" {
		path = "udevadm"
	}

	cmd := exec.CommandContext(ctx, path, "info", "/dev/input/"+handler)
	cmd.Stdout = &stdout
	// a killed udevadm may leave children holding stdout open
	cmd.WaitDelay = killWaitDelay

	if err := cmd.Run(); err != nil {
		if r.Log != nil {
			r.Log.Debugw("udevadm lookup failed", "handler", handler, "error", err)
		}
		return "", false
	}

	return parseModelEnc(stdout.String())
}

func parseModelEnc(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		if m := modelEncRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			return m[1], true
		}
	}
	return "", false
}
