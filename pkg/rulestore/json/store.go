package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

var ErrUnsupportedVersion = errors.New("unsupported rules file version")

type file struct {
	Version int               `json:"version"`
	Rules   []json.RawMessage `json:"rules"`
}

// RuleStore keeps rules in memory and writes them to a JSON file from
// SaveLooper, or on Flush.
type RuleStore struct {
	log      *zap.SugaredLogger
	filename string

	lock  sync.Mutex
	rules []pluggedkbd.Rule
	dirty bool
}

func NewRuleStore(filename string, log *zap.SugaredLogger) (*RuleStore, error) {
	store := &RuleStore{
		log:      log,
		filename: filename,
	}

	err := store.load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		store.dirty = true
	case err != nil:
		return nil, fmt.Errorf("load: %w", err)
	}

	return store, nil
}

func (s *RuleStore) load() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if f.Version != pluggedkbd.RuleVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}

	s.rules = make([]pluggedkbd.Rule, 0, len(f.Rules))
	for i, raw := range f.Rules {
		var rule pluggedkbd.Rule
		if err := json.Unmarshal(raw, &rule); err != nil {
			s.log.Warnw("dropping persisted rule", "index", i, "error", err)
			continue
		}
		s.rules = append(s.rules, rule)
	}

	return nil
}

// Flush writes the rules to disk if they changed since the last write.
func (s *RuleStore) Flush() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.dirty {
		return nil
	}

	f := file{
		Version: pluggedkbd.RuleVersion,
		Rules:   make([]json.RawMessage, 0, len(s.rules)),
	}
	for _, rule := range s.rules {
		raw, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("encode rule: %w", err)
		}
		f.Rules = append(f.Rules, raw)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filename), filepath.Base(s.filename)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filename); err != nil {
		return fmt.Errorf("replace rules file: %w", err)
	}

	s.dirty = false
	return nil
}

func (s *RuleStore) SaveLooper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				return fmt.Errorf("save: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				return fmt.Errorf("save: %w", err)
			}
		}
	}
}

func (s *RuleStore) LoadRules(context.Context) ([]pluggedkbd.Rule, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.rules), nil
}

func (s *RuleStore) SaveRules(_ context.Context, rules []pluggedkbd.Rule) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.rules = slices.Clone(rules)
	s.dirty = true
	return nil
}
