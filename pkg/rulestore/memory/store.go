package memory

import (
	"context"
	"slices"
	"sync"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
)

// RuleStore keeps rules for the lifetime of the process.
type RuleStore struct {
	lock  sync.Mutex
	rules []pluggedkbd.Rule
}

func NewRuleStore(rules ...pluggedkbd.Rule) *RuleStore {
	return &RuleStore{rules: slices.Clone(rules)}
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
	return nil
}
