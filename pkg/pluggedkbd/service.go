package pluggedkbd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("service stopped")

type Options struct {
	PollInterval time.Duration
	// ReassertInterval is the period of forced re-activation. Zero disables it.
	ReassertInterval time.Duration
	TeachIn          bool
	AlwaysShow       bool
	// DefaultSource is activated when the last associated keyboard goes
	// away. Empty means the first listed source.
	DefaultSource string
}

// Service owns a Keyboards registry and is the only goroutine touching it.
// Poll ticks, source changes and commands are processed one at a time.
type Service struct {
	log       *zap.SugaredLogger
	ism       InputSourceManager
	poller    DevicePoller
	store     RuleStore
	keyboards *Keyboards
	opts      Options

	sourceChanged chan struct{}
	commands      chan func()
	stopped       chan struct{}

	listeners  []func(Snapshot)
	dirty      bool
	saveFailed bool
	lastSaved  []Rule
}

func NewService(
	ism InputSourceManager,
	poller DevicePoller,
	store RuleStore,
	log *zap.SugaredLogger,
	opts Options,
) *Service {
	return &Service{
		log:           log,
		ism:           ism,
		poller:        poller,
		store:         store,
		keyboards:     NewKeyboards(ism, log.Named("keyboards")),
		opts:          opts,
		sourceChanged: make(chan struct{}, 1),
		commands:      make(chan func()),
		stopped:       make(chan struct{}),
	}
}

// OnSnapshot registers fn to receive a snapshot after every batch of
// registry changes. It must be called before Run; fn runs on the service
// goroutine and must not block.
func (s *Service) OnSnapshot(fn func(Snapshot)) {
	s.listeners = append(s.listeners, fn)
}

// SourceChanged tells the service the active input source changed outside
// of it. Notifications are coalesced.
func (s *Service) SourceChanged() {
	select {
	case s.sourceChanged <- struct{}{}:
	default:
	}
}

func (s *Service) Run(ctx context.Context) error {
	defer close(s.stopped)

	// shutdown order: tickers, then subscriptions, then state
	defer s.keyboards.Clear()

	cancelDirty := s.keyboards.OnChanged(func() { s.dirty = true })
	defer cancelDirty()

	if err := s.restore(ctx); err != nil {
		return fmt.Errorf("restore rules: %w", err)
	}
	s.flush(ctx)

	pollTicker := time.NewTicker(s.opts.PollInterval)
	defer pollTicker.Stop()

	var reassert <-chan time.Time
	if s.opts.ReassertInterval > 0 {
		reassertTicker := time.NewTicker(s.opts.ReassertInterval)
		defer reassertTicker.Stop()
		reassert = reassertTicker.C
	}

	s.poll(ctx)
	s.flush(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.C:
			s.poll(ctx)
		case <-s.sourceChanged:
			s.keyboards.UpdateCurrentSource()
		case <-reassert:
			if !s.opts.TeachIn && s.keyboards.Reassert() {
				s.log.Debugw("reasserted current keyboard", "keyboard", s.keyboards.Current().ID)
			}
		case cmd := <-s.commands:
			cmd()
		}
		s.flush(ctx)
	}
}

func (s *Service) restore(ctx context.Context) error {
	rules, err := s.store.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	s.lastSaved = rules

	sources, err := s.ism.InputSources()
	if err != nil {
		return fmt.Errorf("list input sources: %w", err)
	}
	s.keyboards.SetDefaultSource(pickDefaultSource(sources, s.opts.DefaultSource))
	if def := s.keyboards.DefaultSource(); def != nil {
		s.log.Debugw("default input source", "source", def.ID)
	} else {
		s.log.Warnw("no default input source", "wanted", s.opts.DefaultSource)
	}

	if err := s.keyboards.SetRules(rules); err != nil {
		return err
	}
	s.log.Infow("restored rules", "rules", len(rules), "keyboards", s.keyboards.Size())
	return nil
}

func pickDefaultSource(sources []InputSource, id string) *InputSource {
	for _, src := range sources {
		if id == "" || src.ID == id {
			return &src
		}
	}
	return nil
}

func (s *Service) poll(ctx context.Context) {
	events, err := s.poller.Poll(ctx)
	if err != nil {
		s.log.Warnw("failed to poll input devices", "error", err)
		return
	}

	for _, ev := range events {
		s.log.Debugw("input device event", "kind", ev.Kind, "device", ev.ID)
		switch ev.Kind {
		case DeviceAdded:
			dev := ev.Device
			if dev == nil {
				dev = nameOnly(ev.ID)
			}
			s.keyboards.Add(dev)
		case DeviceRemoved:
			s.keyboards.Remove(ev.ID)
		}
	}
}

// flush persists the rules and notifies listeners if the registry changed
// since the last flush. A failed save is retried on every flush until it
// succeeds.
func (s *Service) flush(ctx context.Context) {
	if !s.dirty && !s.saveFailed {
		return
	}
	changed := s.dirty
	s.dirty = false

	rules := s.keyboards.Rules()
	if slices.Equal(rules, s.lastSaved) {
		s.saveFailed = false
	} else if err := s.store.SaveRules(ctx, rules); err != nil {
		if !s.saveFailed {
			s.log.Warnw("failed to save rules, will retry", "error", err)
		} else {
			s.log.Debugw("failed to save rules", "error", err)
		}
		s.saveFailed = true
	} else {
		if s.saveFailed {
			s.log.Infow("saved rules after earlier failure", "rules", len(rules))
		}
		s.lastSaved = rules
		s.saveFailed = false
	}

	if !changed {
		return
	}
	snap := TakeSnapshot(s.keyboards, s.opts.AlwaysShow)
	for _, fn := range s.listeners {
		fn(snap)
	}
}

// do runs fn on the service goroutine and waits for it.
func (s *Service) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
	}

	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() {
		snap = TakeSnapshot(s.keyboards, s.opts.AlwaysShow)
	})
	return snap, err
}

// Toggle deassociates an associated keyboard, or associates an
// unassociated one with the active input source.
func (s *Service) Toggle(ctx context.Context, id string) (Snapshot, error) {
	var (
		snap  Snapshot
		opErr error
	)
	err := s.do(ctx, func() {
		kb, ok := s.keyboards.Get(id)
		if !ok {
			opErr = fmt.Errorf("%w: %s", ErrUnknownDevice, id)
			return
		}

		if kb.Associated != nil {
			s.keyboards.Deassociate(kb)
		} else {
			src, err := s.ism.CurrentSource()
			if err != nil {
				opErr = fmt.Errorf("get current source: %w", err)
				return
			}
			s.keyboards.Associate(kb, src)
		}
		snap = TakeSnapshot(s.keyboards, s.opts.AlwaysShow)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, opErr
}

// Associate links a known keyboard to the input source with the given id.
func (s *Service) Associate(ctx context.Context, id, sourceID string) (Snapshot, error) {
	var (
		snap  Snapshot
		opErr error
	)
	err := s.do(ctx, func() {
		kb, ok := s.keyboards.Get(id)
		if !ok {
			opErr = fmt.Errorf("%w: %s", ErrUnknownDevice, id)
			return
		}

		sources, err := s.ism.InputSources()
		if err != nil {
			opErr = fmt.Errorf("list input sources: %w", err)
			return
		}
		idx := slices.IndexFunc(sources, func(src InputSource) bool { return src.ID == sourceID })
		if idx < 0 {
			opErr = fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
			return
		}

		s.keyboards.Associate(kb, sources[idx])
		snap = TakeSnapshot(s.keyboards, s.opts.AlwaysShow)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, opErr
}

func (s *Service) SetTeachIn(ctx context.Context, on bool) error {
	return s.do(ctx, func() {
		s.opts.TeachIn = on
	})
}

func (s *Service) SetAlwaysShow(ctx context.Context, on bool) error {
	return s.do(ctx, func() {
		if s.opts.AlwaysShow != on {
			s.opts.AlwaysShow = on
			s.dirty = true
		}
	})
}

type nameOnly string

func (n nameOnly) Name() string        { return string(n) }
func (n nameOnly) DisplayName() string { return string(n) }
