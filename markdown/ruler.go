package markdown

import (
	"errors"
	"fmt"
)

var (
	// ErrRuleNotFound is returned when anchor rule does not exist.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrRuleExists is returned when rule name is already taken.
	ErrRuleExists = errors.New("rule already exists")
)

// RuleFunc is a single processing pass over state.
type RuleFunc func(s *State) error

type rule struct {
	name    string
	fn      RuleFunc
	enabled bool
}

// Chain is an ordered list of named rules. Rules are positioned relative to
// other rules by name when they are added, order never changes afterwards.
type Chain struct {
	rules []rule
}

func (c *Chain) find(name string) int {
	for i, r := range c.rules {
		if r.name == name {
			return i
		}
	}
	return -1
}

func (c *Chain) insert(at int, name string, fn RuleFunc) error {
	if c.find(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrRuleExists, name)
	}
	c.rules = append(c.rules, rule{})
	copy(c.rules[at+1:], c.rules[at:])
	c.rules[at] = rule{name: name, fn: fn, enabled: true}
	return nil
}

// Push adds rule to the end of chain.
func (c *Chain) Push(name string, fn RuleFunc) error {
	return c.insert(len(c.rules), name, fn)
}

// Before adds rule immediately before anchor.
func (c *Chain) Before(anchor, name string, fn RuleFunc) error {
	i := c.find(anchor)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, anchor)
	}
	return c.insert(i, name, fn)
}

// After adds rule immediately after anchor.
func (c *Chain) After(anchor, name string, fn RuleFunc) error {
	i := c.find(anchor)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, anchor)
	}
	return c.insert(i+1, name, fn)
}

// At replaces implementation of existing rule.
func (c *Chain) At(name string, fn RuleFunc) error {
	i := c.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}
	c.rules[i].fn = fn
	return nil
}

// Disable turns rules off.
func (c *Chain) Disable(names ...string) error {
	return c.toggle(false, names)
}

// Enable turns rules on.
func (c *Chain) Enable(names ...string) error {
	return c.toggle(true, names)
}

func (c *Chain) toggle(on bool, names []string) error {
	for _, name := range names {
		i := c.find(name)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, name)
		}
		c.rules[i].enabled = on
	}
	return nil
}

// Names returns names of enabled rules in execution order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		if r.enabled {
			names = append(names, r.name)
		}
	}
	return names
}

// Run executes enabled rules in order, first error stops processing.
func (c *Chain) Run(s *State) error {
	for _, r := range c.rules {
		if !r.enabled {
			continue
		}
		if err := r.fn(s); err != nil {
			return fmt.Errorf("rule %s: %w", r.name, err)
		}
	}
	return nil
}
