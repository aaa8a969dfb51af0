// Package pattern compiles ordered include/exclude glob rules into a
// predicate over slash-separated relative paths.
//
// Rules are evaluated in declaration order and the last matching rule wins,
// so a later exclude can veto an earlier include and vice versa. Globs
// support '*' within a path segment, '**' across segments, '?' for a single
// non-separator character, character classes and brace alternatives.
package pattern

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Sense says whether a rule selects or rejects matching paths.
type Sense uint8

const (
	Include Sense = iota
	Exclude
)

// String returns the sense name.
func (s Sense) String() string {
	if s == Exclude {
		return "exclude"
	}
	return "include"
}

// Rule is one ordered glob rule. Textual '!' negation is folded into Sense
// by ParseRules; Glob itself never carries a negation prefix.
type Rule struct {
	Glob  string
	Sense Sense
}

// Decision is the outcome of evaluating a path against a rule set.
type Decision uint8

const (
	// NoMatch means no rule matched the path.
	NoMatch Decision = iota
	// Included means the last matching rule was an include.
	Included
	// Excluded means the last matching rule was an exclude.
	Excluded
)

// PatternError reports a malformed glob, identifying the offending pattern
// and its position in the rule list.
type PatternError struct {
	Pattern string
	Index   int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %d %q: %v", e.Index, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// ParseRules converts raw glob strings into rules, folding a leading '!'
// into an Exclude sense and trimming a leading '/' (globs are always
// root-relative).
func ParseRules(globs []string) []Rule {
	rules := make([]Rule, 0, len(globs))
	for _, g := range globs {
		sense := Include
		if strings.HasPrefix(g, "!") {
			sense = Exclude
			g = g[1:]
		}
		g = strings.TrimPrefix(g, "/")
		rules = append(rules, Rule{Glob: g, Sense: sense})
	}
	return rules
}

// Matcher evaluates an ordered rule set against relative paths.
type Matcher struct {
	rules []Rule
}

// Compile validates every rule's glob and returns a matcher. A malformed
// glob fails the whole compile with a *PatternError; no partial matcher is
// returned.
func Compile(rules []Rule) (*Matcher, error) {
	for i, r := range rules {
		if !doublestar.ValidatePattern(r.Glob) {
			return nil, &PatternError{Pattern: r.Glob, Index: i, Err: doublestar.ErrBadPattern}
		}
	}
	return &Matcher{rules: append([]Rule(nil), rules...)}, nil
}

// MustCompile is Compile for rule sets known to be valid, such as the
// built-in defaults. It panics on a malformed glob.
func MustCompile(rules []Rule) *Matcher {
	m, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return m
}

// Decide evaluates path against all rules in order and returns the sense of
// the last rule that matched, or NoMatch if none did. The path must be a
// slash-separated relative path.
func (m *Matcher) Decide(path string) Decision {
	decision := NoMatch
	for _, r := range m.rules {
		// Globs were validated at compile time, so the match cannot fail.
		ok, _ := doublestar.Match(r.Glob, path)
		if !ok {
			continue
		}
		if r.Sense == Exclude {
			decision = Excluded
		} else {
			decision = Included
		}
	}
	return decision
}

// Len returns the number of rules in the matcher.
func (m *Matcher) Len() int { return len(m.rules) }
