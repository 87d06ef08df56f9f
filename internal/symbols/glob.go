package symbols

import (
	"fmt"
	"strings"
)

// IdentifierGlob matches type names with an optional template wildcard.
// "MyClass<*>" matches any instantiation of MyClass with at least one
// template argument; the match score is the number of arguments the
// wildcard consumed (so more specific globs can outrank it). A glob
// without a wildcard matches exactly with score 0.
type IdentifierGlob struct {
	pattern  string
	base     string
	wildcard bool
}

func ParseIdentifierGlob(pattern string) (IdentifierGlob, error) {
	if pattern == "" {
		return IdentifierGlob{}, fmt.Errorf("empty identifier glob")
	}
	if strings.HasSuffix(pattern, "<*>") {
		base := strings.TrimSuffix(pattern, "<*>")
		if base == "" {
			return IdentifierGlob{}, fmt.Errorf("identifier glob %q has no base name", pattern)
		}
		return IdentifierGlob{pattern: pattern, base: base, wildcard: true}, nil
	}
	return IdentifierGlob{pattern: pattern, base: pattern}, nil
}

func (g IdentifierGlob) String() string { return g.pattern }

// Matches reports whether name matches the glob, and on a wildcard
// match, how many template arguments the wildcard absorbed.
func (g IdentifierGlob) Matches(name string) (score int, ok bool) {
	if !g.wildcard {
		if name == g.base {
			return 0, true
		}
		return 0, false
	}

	base, args, hasTemplate := splitTemplate(name)
	if !hasTemplate || base != g.base {
		return 0, false
	}
	// "Name<>" has zero arguments; the wildcard requires at least one.
	if len(args) == 0 {
		return 0, false
	}
	return len(args), true
}

// splitTemplate divides "Base<a, b<c,d>>" into the base name and the
// top-level template arguments.
func splitTemplate(name string) (base string, args []string, ok bool) {
	open := strings.IndexByte(name, '<')
	if open < 0 || !strings.HasSuffix(name, ">") {
		return name, nil, false
	}
	base = name[:open]
	inner := name[open+1 : len(name)-1]
	if strings.TrimSpace(inner) == "" {
		return base, nil, true
	}

	depth := 0
	start := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(inner[start:]))
	return base, args, true
}
