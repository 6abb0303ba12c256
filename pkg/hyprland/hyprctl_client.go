package hyprland

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrDeviceNotFound  = errors.New("device not found")
)

// Hyprctl talks to the request socket, like the hyprctl binary does.
type Hyprctl struct {
	dial func() (net.Conn, error)
}

func NewHyprctl() (*Hyprctl, error) {
	if _, err := getSocketPath(Hyperctl); err != nil {
		return nil, err
	}
	return &Hyprctl{dial: func() (net.Conn, error) { return connect(Hyperctl) }}, nil
}

func (c *Hyprctl) SwitchToLayout(keyboard string, idx int) error {
	conn, err := c.makeRequest(fmt.Sprintf("switchxkblayout %s %d", keyboard, idx), "")
	if err != nil {
		return err
	}
	defer conn.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, conn)
	if err != nil {
		return fmt.Errorf("read response from hyprctl socket: %w", err)
	}

	resp := strings.TrimSpace(buf.String())
	switch {
	case resp == "ok":
		return nil
	case strings.Contains(resp, "device not found"):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, keyboard)
	case strings.Contains(resp, "out of range"):
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)
	}

	return fmt.Errorf("hyprctl: %s", resp)
}

func (c *Hyprctl) GetKeyboards() ([]Keyboard, error) {
	conn, err := c.makeRequest("devices", "j")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dec := json.NewDecoder(conn)

	var devs devices
	if err := dec.Decode(&devs); err != nil {
		return nil, fmt.Errorf("unmarshal devices: %w", err)
	}

	keyboards := devs.Keyboards
	out := make([]Keyboard, 0, len(keyboards))
	for _, k := range keyboards {
		out = append(out, k.ToKeyboard())
	}

	return out, nil
}

func (c *Hyprctl) makeRequest(request string, args string) (net.Conn, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("connect to hyprctl socket: %w", err)
	}

	if args != "" {
		request = args + "/" + request
	}
	_, err = conn.Write([]byte(request))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("write to hyprctl socket: %w", err)
	}

	return conn, nil
}
