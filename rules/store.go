package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleExists   = errors.New("rule already exists")
)

// RuleStore holds rule definitions. ListActive must return rules in evaluation
// order: ascending Priority, then ID.
type RuleStore interface {
	Get(id string) (*Rule, error)
	ListActive() ([]*Rule, error)
}

// InMemoryRuleStore is a RuleStore backed by a map. It stores copies, so callers
// may reuse the Rule values they pass in.
type InMemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewInMemoryRuleStore creates an empty store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{rules: make(map[string]Rule)}
}

// LoadRules creates a store holding rules, all marked active. Duplicate or
// malformed rules are reported together.
func LoadRules(rules ...Rule) (*InMemoryRuleStore, error) {
	s := NewInMemoryRuleStore()
	var errs []error
	for _, r := range rules {
		r.Active = true
		if err := s.Add(&r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func checkRule(r *Rule) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	if strings.TrimSpace(r.Expression) == "" {
		return fmt.Errorf("rule %s: expression is required", r.ID)
	}
	return nil
}

// Add stores a copy of rule.
func (s *InMemoryRuleStore) Add(rule *Rule) error {
	if err := checkRule(rule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; ok {
		return fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}

	s.rules[rule.ID] = *rule
	return nil
}

func (s *InMemoryRuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return &r, nil
}

func (s *InMemoryRuleStore) ListActive() ([]*Rule, error) {
	s.mu.RLock()
	active := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Active {
			active = append(active, &r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})
	return active, nil
}
