package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adrg/xdg"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codeberg.org/miketth/pluggedkbd/pkg/control"
	"codeberg.org/miketth/pluggedkbd/pkg/hyprland"
	"codeberg.org/miketth/pluggedkbd/pkg/inputdev"
	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
	"codeberg.org/miketth/pluggedkbd/pkg/rulestore/json"
	"codeberg.org/miketth/pluggedkbd/pkg/rulestore/memory"
	"codeberg.org/miketth/pluggedkbd/pkg/rulestore/sqlite"
	"codeberg.org/miketth/pluggedkbd/pkg/settings"
	"codeberg.org/miketth/pluggedkbd/pkg/telemetry"
	"codeberg.org/miketth/pluggedkbd/pkg/xkblayouts"
)

const jsonSaveInterval = 10 * time.Second

func runDaemon(cmd *cobra.Command, flags *globalFlags) error {
	ctx := cmd.Context()

	cfg, log, level, err := loadSettings(cmd, flags)
	if err != nil {
		return err
	}
	defer log.Sync()
	s := cfg.Get()

	registry, err := xkblayouts.ParseLayouts(s.EvdevXMLPath)
	if err != nil {
		return fmt.Errorf("parse layouts: %w", err)
	}

	hyprctl, err := hyprland.NewHyprctl()
	if err != nil {
		return fmt.Errorf("connect hyprctl: %w", err)
	}

	client, err := hyprland.Connect()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	store, err := openRuleStore(s.RuleStore, log.Named("rules"))
	if err != nil {
		return fmt.Errorf("open rule store: %w", err)
	}
	defer store.Close()

	var ism pluggedkbd.InputSourceManager = hyprland.NewSourceManager(hyprctl, registry)
	var poller pluggedkbd.DevicePoller = inputdev.NewPoller(log.Named("poller"), pollerOptions(s, log)...)
	metrics := s.MetricsAddress != ""
	if metrics {
		telemetry.InitMetrics()
		ism = telemetry.Sources{InputSourceManager: ism}
		poller = telemetry.Poller{DevicePoller: poller}
	}

	svc := pluggedkbd.NewService(ism, poller, store, log.Named("service"), pluggedkbd.Options{
		PollInterval:     s.PollInterval,
		ReassertInterval: s.ReassertInterval,
		TeachIn:          s.TeachIn,
		AlwaysShow:       s.AlwaysShowMenuItem,
		DefaultSource:    s.DefaultSource,
	})

	status := make(chan string, 1)
	svc.OnSnapshot(func(snap pluggedkbd.Snapshot) {
		if metrics {
			telemetry.ObserveSnapshot(snap)
		}
		publishStatus(status, snap)
	})

	g, ctx := errgroup.WithContext(ctx)

	cancelSettings := cfg.OnChange(func(s settings.Settings) {
		level.SetLevel(levelFor(s.DebugMessages))
		if err := svc.SetTeachIn(ctx, s.TeachIn); err != nil {
			log.Debugw("could not apply teach-in", "error", err)
		}
		if err := svc.SetAlwaysShow(ctx, s.AlwaysShowMenuItem); err != nil {
			log.Debugw("could not apply always-show-menuitem", "error", err)
		}
	})
	defer cancelSettings()
	cfg.Watch()

	g.Go(func() error {
		return svc.Run(ctx)
	})

	g.Go(func() error {
		return hyprland.WatchLayouts(ctx, client, func(keyboard, layout string) {
			log.Debugw("active layout changed", "keyboard", keyboard, "layout", layout)
			svc.SourceChanged()
		})
	})

	g.Go(func() error {
		return control.NewServer(flags.socket, svc, log.Named("control")).Serve(ctx)
	})

	g.Go(func() error {
		return systemdNotifyLoop(ctx, status)
	})

	if metrics {
		g.Go(func() error {
			return telemetry.Serve(ctx, s.MetricsAddress, log.Named("metrics"))
		})
	}

	if looper, ok := store.(saveLooper); ok {
		g.Go(func() error {
			return looper.SaveLooper(ctx, jsonSaveInterval)
		})
	}

	log.Infow("started pluggedkbd", "config", cfg.ConfigFile(), "rule-store", s.RuleStore)

	err = g.Wait()
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("shutting down")
		return nil
	case err != nil:
		return err
	}

	return nil
}

func pollerOptions(s settings.Settings, log *zap.SugaredLogger) []inputdev.PollerOption {
	opts := []inputdev.PollerOption{
		inputdev.WithDevicesFile(s.DevicesFile),
		inputdev.WithLookupTimeout(s.NameLookupTimeout),
	}
	switch s.NameResolver {
	case "udevadm":
		opts = append(opts, inputdev.WithNameResolver(inputdev.UdevadmResolver{Log: log.Named("udevadm")}))
	case "libudev":
		opts = append(opts, inputdev.WithNameResolver(inputdev.NewUdevResolver()))
	}
	return opts
}

type ruleStore interface {
	pluggedkbd.RuleStore
	Close() error
}

type saveLooper interface {
	SaveLooper(ctx context.Context, interval time.Duration) error
}

type nopCloser struct {
	pluggedkbd.RuleStore
}

func (nopCloser) Close() error { return nil }

// jsonStore flushes once more on Close.
type jsonStore struct {
	*json.RuleStore
}

func (s jsonStore) Close() error { return s.Flush() }

func openRuleStore(kind string, log *zap.SugaredLogger) (ruleStore, error) {
	switch kind {
	case "memory":
		return nopCloser{memory.NewRuleStore()}, nil
	case "json":
		path, err := xdg.DataFile("pluggedkbd/rules.json")
		if err != nil {
			return nil, fmt.Errorf("get data file path: %w", err)
		}
		store, err := json.NewRuleStore(path, log)
		if err != nil {
			return nil, err
		}
		return jsonStore{store}, nil
	case "sqlite":
		path, err := xdg.DataFile("pluggedkbd/rules.db")
		if err != nil {
			return nil, fmt.Errorf("get data file path: %w", err)
		}
		return sqlite.NewRuleStore(path, log)
	}
	return nil, fmt.Errorf("unknown rule store %q", kind)
}

// publishStatus replaces any status systemd has not been told about yet.
func publishStatus(status chan string, snap pluggedkbd.Snapshot) {
	msg := "Watching for keyboards"
	if snap.Visible {
		msg = snap.Label
	}
	select {
	case <-status:
	default:
	}
	select {
	case status <- msg:
	default:
	}
}

func systemdNotifyLoop(ctx context.Context, status <-chan string) error {
	// tell systemd that we're ready
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return nil
	}

	var watchdog <-chan time.Time
	t, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("check watchdog: %w", err)
	}
	if t != 0 {
		ticker := time.NewTicker(t / 2)
		defer ticker.Stop()
		watchdog = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return ctx.Err()

		case msg := <-status:
			_, _ = daemon.SdNotify(false, "STATUS="+msg)

		case <-watchdog:
			_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			if err != nil {
				return fmt.Errorf("notify watchdog: %w", err)
			}
		}
	}
}
