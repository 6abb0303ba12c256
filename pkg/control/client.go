package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

// Send issues req to the daemon listening on path.
func Send(ctx context.Context, path string, req Request) (pluggedkbd.Snapshot, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return pluggedkbd.Snapshot{}, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", req); err != nil {
		return pluggedkbd.Snapshot{}, fmt.Errorf("write request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return pluggedkbd.Snapshot{}, fmt.Errorf("read response: %w", err)
	}
	if !resp.OK {
		return pluggedkbd.Snapshot{}, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	if resp.Snapshot == nil {
		return pluggedkbd.Snapshot{}, nil
	}
	return *resp.Snapshot, nil
}
