package telemetry

import (
	"context"
	"time"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

// Sources counts activations going through an InputSourceManager.
type Sources struct {
	pluggedkbd.InputSourceManager
}

func (s Sources) Activate(id string) error {
	err := s.InputSourceManager.Activate(id)
	result := "ok"
	if err != nil {
		result = "error"
	}
	Activations.WithLabelValues(id, result).Inc()
	return err
}

// Poller times polls and counts their events.
type Poller struct {
	pluggedkbd.DevicePoller
}

func (p Poller) Poll(ctx context.Context) ([]pluggedkbd.DeviceEvent, error) {
	start := time.Now()
	events, err := p.DevicePoller.Poll(ctx)
	PollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		PollErrors.Inc()
		return nil, err
	}
	for _, ev := range events {
		DeviceEvents.WithLabelValues(ev.Kind.String()).Inc()
	}
	return events, nil
}

// ObserveSnapshot updates the keyboard gauges.
func ObserveSnapshot(snap pluggedkbd.Snapshot) {
	var connected, associated float64
	for _, kb := range snap.Keyboards {
		if kb.Connected {
			connected++
		}
		if kb.SourceID != "" {
			associated++
		}
	}
	Keyboards.WithLabelValues("known").Set(float64(len(snap.Keyboards)))
	Keyboards.WithLabelValues("connected").Set(connected)
	Keyboards.WithLabelValues("associated").Set(associated)
}
