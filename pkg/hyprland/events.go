package hyprland

import (
	"context"
	"fmt"
	"strings"
)

type EventListener interface {
	ReadLine() (string, error)
}

// WatchLayouts reads socket2 events and calls changed whenever a keyboard
// reports a new active layout.
func WatchLayouts(ctx context.Context, listener EventListener, changed func(keyboard, layout string)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		for {
			line, err := listener.ReadLine()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-lines:
			if err := processLine(line, changed); err != nil {
				return fmt.Errorf("process line: %w", err)
			}
		case err := <-errCh:
			return fmt.Errorf("get line: %w", err)
		}
	}
}

func processLine(line string, changed func(keyboard, layout string)) error {
	evType, evData, found := strings.Cut(line, ">>")
	if !found {
		return fmt.Errorf("invalid line: %q", line)
	}

	switch evType {
	case "activelayout":
		keyboard, layout, found := strings.Cut(evData, ",")
		if !found {
			return fmt.Errorf("invalid layout change data: %q", evData)
		}
		changed(keyboard, layout)
	}

	return nil
}
