package hyprland

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

var ErrNotRunning = errors.New("hyprland might not be running")

func connect(sock socketType) (net.Conn, error) {
	socketPath, err := getSocketPath(sock)
	if err != nil {
		return nil, fmt.Errorf("get socket path: %w", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return conn, nil
}

type socketType int

const (
	Hyperctl socketType = iota
	Socket2
)

func (s socketType) fileName() string {
	switch s {
	case Hyperctl:
		return ".socket.sock"
	case Socket2:
		return ".socket2.sock"
	}
	return ""
}

func getSocketPath(sock socketType) (string, error) {
	signature := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if signature == "" {
		return "", fmt.Errorf("HYPRLAND_INSTANCE_SIGNATURE is not set, %w", ErrNotRunning)
	}

	name := sock.fileName()
	if name == "" {
		return "", fmt.Errorf("unknown socket type: %d", sock)
	}

	return socketPathIn(instanceDirs(signature), name), nil
}

// instanceDirs lists where an instance keeps its sockets, newest layout first.
func instanceDirs(signature string) []string {
	return []string{
		filepath.Join(xdg.RuntimeDir, "hypr", signature),
		filepath.Join("/tmp/hypr", signature),
	}
}

func socketPathIn(dirs []string, name string) string {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(dirs[0], name)
}
