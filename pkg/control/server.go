package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"go.uber.org/zap"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

const requestTimeout = 10 * time.Second

type Handler interface {
	Snapshot(ctx context.Context) (pluggedkbd.Snapshot, error)
	Toggle(ctx context.Context, id string) (pluggedkbd.Snapshot, error)
	Associate(ctx context.Context, id, sourceID string) (pluggedkbd.Snapshot, error)
}

func DefaultSocketPath() string {
	return filepath.Join(xdg.RuntimeDir, "pluggedkbd.sock")
}

// Server answers one request per connection on a unix socket.
type Server struct {
	log     *zap.SugaredLogger
	path    string
	handler Handler
	wg      sync.WaitGroup
}

func NewServer(path string, handler Handler, log *zap.SugaredLogger) *Server {
	return &Server{
		log:     log,
		path:    path,
		handler: handler,
	}
}

// Serve listens until ctx is done, then removes the socket.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	lis, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		lis.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}
	defer os.Remove(s.path)

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	s.log.Infow("control socket listening", "path", s.path)
	for {
		conn, err := lis.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(requestTimeout))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		s.log.Debugw("failed to read control request", "error", err)
		return
	}

	resp := s.handle(ctx, line)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Debugw("failed to write control response", "error", err)
	}
}

func (s *Server) handle(ctx context.Context, line string) Response {
	req, err := ParseRequest(line)
	if err != nil {
		return Response{Error: err.Error()}
	}
	s.log.Debugw("control request", "request", req.String())

	var snap pluggedkbd.Snapshot
	switch req.Command {
	case CommandList:
		snap, err = s.handler.Snapshot(ctx)
	case CommandToggle:
		snap, err = s.handler.Toggle(ctx, req.Device)
	case CommandAssociate:
		snap, err = s.handler.Associate(ctx, req.Device, req.SourceID)
	}
	if err != nil {
		if !errors.Is(err, pluggedkbd.ErrUnknownDevice) && !errors.Is(err, pluggedkbd.ErrUnknownSource) {
			s.log.Warnw("control request failed", "request", req.String(), "error", err)
		}
		return Response{Error: err.Error()}
	}
	return Response{OK: true, Snapshot: &snap}
}
