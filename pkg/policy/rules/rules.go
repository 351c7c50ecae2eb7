// Package rules compiles configured rules once and selects the ones whose
// match predicate holds for a request.
package rules

import (
	"fmt"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/expr"
	"mercator-hq/mixer/pkg/schema"
)

// Rule is a configured rule with its parsed match predicate.
type Rule struct {
	// Index is the position of the rule in its configuration.
	Index int

	// Match is the parsed match predicate. An empty source parses to true.
	Match expr.Node

	// Actions are the configured actions in declared order.
	Actions []schema.Action

	Source schema.Rule
}

// Ref returns a stable reference to the rule, such as "rules[2]".
func (r *Rule) Ref() string {
	return fmt.Sprintf("rules[%d]", r.Index)
}

// ActionRef returns a stable reference to one of the rule's actions.
func (r *Rule) ActionRef(i int) string {
	return fmt.Sprintf("rules[%d].actions[%d]", r.Index, i)
}

// Matches reports whether the rule's predicate holds for bag.
func (r *Rule) Matches(bag attribute.Bag) bool {
	return expr.EvalBool(r.Match, bag)
}

// ParseError reports a rule whose match predicate does not parse.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rules[%d].match: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Index is an immutable, ordered set of compiled rules.
type Index struct {
	rules []*Rule
}

// Compile parses the match predicate of every rule. It fails on the first
// rule that does not parse; callers wanting every violation validate first.
func Compile(src []schema.Rule) (*Index, error) {
	idx := &Index{rules: make([]*Rule, 0, len(src))}
	for i, r := range src {
		node, err := expr.Parse(r.Match)
		if err != nil {
			return nil, &ParseError{Index: i, Err: err}
		}
		idx.rules = append(idx.rules, &Rule{
			Index:   i,
			Match:   node,
			Actions: r.Actions,
			Source:  r,
		})
	}
	return idx, nil
}

// Select returns the rules whose predicate holds for bag, in declared order.
func (x *Index) Select(bag attribute.Bag) []*Rule {
	var selected []*Rule
	for _, r := range x.rules {
		if r.Matches(bag) {
			selected = append(selected, r)
		}
	}
	return selected
}

// Rules returns every compiled rule in declared order.
func (x *Index) Rules() []*Rule {
	out := make([]*Rule, len(x.rules))
	copy(out, x.rules)
	return out
}

// Len returns the number of rules.
func (x *Index) Len() int {
	return len(x.rules)
}
