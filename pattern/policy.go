package pattern

import "strings"

// Policy wraps a Matcher with the packaging default: paths no rule matched
// are kept only when they fall under an always-included root (the entry
// script, the manifest). Explicit rules always outrank the default, so a
// user exclude can veto an always-included root.
type Policy struct {
	matcher *Matcher
	roots   []string
}

// NewPolicy builds a policy over matcher. Each root is a slash-separated
// relative path; a root names either a single file or a directory whose
// descendants are all covered.
func NewPolicy(matcher *Matcher, alwaysInclude ...string) *Policy {
	roots := make([]string, 0, len(alwaysInclude))
	for _, r := range alwaysInclude {
		r = strings.Trim(r, "/")
		if r != "" {
			roots = append(roots, r)
		}
	}
	return &Policy{matcher: matcher, roots: roots}
}

// Keep reports whether path survives selection: the matcher's decision when
// one exists, otherwise the always-included-root default.
func (p *Policy) Keep(path string) bool {
	switch p.matcher.Decide(path) {
	case Included:
		return true
	case Excluded:
		return false
	}
	return p.underRoot(path)
}

func (p *Policy) underRoot(path string) bool {
	for _, root := range p.roots {
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return false
}
