package control

import (
	"errors"
	"fmt"
	"strings"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

const (
	CommandList      = "list"
	CommandToggle    = "toggle"
	CommandAssociate = "associate"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrRemote     = errors.New("daemon error")
)

// Request is one command line: "list", "toggle <device>" or
// "associate <source> <device>". Device ids may contain spaces, source ids
// may not.
type Request struct {
	Command  string
	Device   string
	SourceID string
}

func (r Request) String() string {
	switch r.Command {
	case CommandToggle:
		return r.Command + " " + r.Device
	case CommandAssociate:
		return r.Command + " " + r.SourceID + " " + r.Device
	}
	return r.Command
}

func ParseRequest(line string) (Request, error) {
	line = strings.TrimSpace(line)
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case CommandList:
		return Request{Command: command}, nil
	case CommandToggle:
		if rest == "" {
			return Request{}, fmt.Errorf("%w: toggle needs a device", ErrBadRequest)
		}
		return Request{Command: command, Device: rest}, nil
	case CommandAssociate:
		src, dev, _ := strings.Cut(rest, " ")
		dev = strings.TrimSpace(dev)
		if src == "" || dev == "" {
			return Request{}, fmt.Errorf("%w: associate needs a source and a device", ErrBadRequest)
		}
		return Request{Command: command, Device: dev, SourceID: src}, nil
	case "":
		return Request{}, fmt.Errorf("%w: empty command", ErrBadRequest)
	}
	return Request{}, fmt.Errorf("%w: unknown command %q", ErrBadRequest, command)
}

type Response struct {
	OK       bool                 `json:"ok"`
	Error    string               `json:"error,omitempty"`
	Snapshot *pluggedkbd.Snapshot `json:"snapshot,omitempty"`
}
