package pluggedkbd

import (
	"context"
	"errors"
	"sync"
)

type fakeSources struct {
	mu        sync.Mutex
	sources   []InputSource
	current   InputSource
	activated []string
	listErr   error
}

func newFakeSources(sources ...InputSource) *fakeSources {
	return &fakeSources{sources: sources, current: sources[0]}
}

func (f *fakeSources) InputSources() ([]InputSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]InputSource(nil), f.sources...), nil
}

func (f *fakeSources) CurrentSource() (InputSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeSources) Activate(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeSources) setCurrent(src InputSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = src
}

func (f *fakeSources) activations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.activated...)
}

type device struct {
	name        string
	displayName string
}

func (d device) Name() string { return d.name }

func (d device) DisplayName() string {
	if d.displayName == "" {
		return d.name
	}
	return d.displayName
}

type memStore struct {
	mu    sync.Mutex
	rules []Rule
	saves int
	err   error

	saveErr error
}

func (m *memStore) LoadRules(context.Context) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]Rule(nil), m.rules...), nil
}

func (m *memStore) SaveRules(_ context.Context, rules []Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rules = append([]Rule(nil), rules...)
	m.saves++
	return nil
}

func (m *memStore) failSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *memStore) saved() ([]Rule, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Rule(nil), m.rules...), m.saves
}

var errBoom = errors.New("boom")
