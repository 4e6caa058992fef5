package typestr

import (
	"strings"
)

// ParseLocationType turns a raw type string from the oracle into its
// canonical location. The second return is false when the text contains no
// recognizable location at all (primitives, unrelated generics, garbage).
//
// The raw text may wrap the location arbitrarily deep: references, dataflow
// containers whose generic arguments embed the location, and Tick scopes.
// Tick nesting is counted, never collapsed.
func ParseLocationType(typeText string) (LocationKind, bool) {
	s := strings.TrimSpace(typeText)
	if s == "" {
		return LocationKind{}, false
	}

	// A single reference or mutable-reference prefix is transparent, and so
	// is an opaque-type marker in hover text.
	s = strings.TrimPrefix(s, "&mut ")
	s = strings.TrimPrefix(s, "&")
	s = strings.TrimPrefix(s, "impl ")
	s = strings.TrimSpace(s)

	if name, args, ok := splitGeneric(s); ok {
		if idx, isWrapper := collectionWrappers[name]; isWrapper {
			// The location sits at a wrapper-specific argument index.
			if idx < len(args) {
				return ParseLocationType(args[idx])
			}
			return LocationKind{}, false
		}
	}

	out := stripTicks(s)
	switch out.state {
	case resolvedOutcome:
		return out.kind, true
	case wrappedOutcome:
		kind, ok := resolveKind(out.inner)
		if !ok {
			return LocationKind{}, false
		}
		kind.TickDepth = out.depth
		return kind, true
	default:
		return resolveKind(s)
	}
}

type outcomeState int

const (
	unresolvedOutcome outcomeState = iota
	wrappedOutcome
	resolvedOutcome
)

// parseOutcome is the intermediate state of a parse: either nothing matched
// yet, some Tick layers were peeled off an inner string, or a location was
// fully resolved. Keeping this explicit keeps the tick-unwrap and
// collection-unwrap phases from contaminating each other.
type parseOutcome struct {
	state outcomeState
	depth int
	inner string
	kind  LocationKind
}

// stripTicks peels Tick<...> layers, counting depth but deferring the
// re-wrap until the innermost kind is known.
func stripTicks(s string) parseOutcome {
	depth := 0
	for {
		name, args, ok := splitGeneric(s)
		if !ok || name != "Tick" {
			break
		}
		inner := firstNonLifetime(args)
		if inner == "" {
			break
		}
		depth++
		s = inner
	}
	if depth == 0 {
		return parseOutcome{state: unresolvedOutcome, inner: s}
	}
	if kind, ok := resolveKind(s); ok {
		kind.TickDepth = depth
		return parseOutcome{state: resolvedOutcome, kind: kind}
	}
	return parseOutcome{state: wrappedOutcome, depth: depth, inner: s}
}

var locationKinds = []string{KindProcess, KindCluster, KindExternal}

// resolveKind matches the innermost text against Kind<'lifetime, Param>,
// accepting the already-canonical Kind<Param> form as well. Truncated input
// degrades to the bare kind instead of failing.
func resolveKind(s string) (LocationKind, bool) {
	s = strings.TrimSpace(s)
	name, args, ok := splitGeneric(s)
	if ok {
		for _, kind := range locationKinds {
			if name != kind {
				continue
			}
			param := firstNonLifetime(args)
			if param == "" {
				return LocationKind{Kind: kind}, true
			}
			return LocationKind{Kind: kind, Param: param}, true
		}
		return LocationKind{}, false
	}
	// Unbalanced or truncated text still identifies the kind when the
	// Kind< prefix is present.
	for _, kind := range locationKinds {
		if strings.HasPrefix(s, kind+"<") {
			return LocationKind{Kind: kind}, true
		}
	}
	return LocationKind{}, false
}

// firstNonLifetime returns the first generic argument that is not a lifetime
// token ('a, '_, 'static).
func firstNonLifetime(args []string) string {
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" || strings.HasPrefix(arg, "'") {
			continue
		}
		return arg
	}
	return ""
}

// splitGeneric decomposes "Name<a, b, c>" into its head identifier and
// top-level argument list. It fails on anything else, including text with
// trailing garbage or unbalanced brackets. Path-qualified heads
// (hydro_lang::Stream) reduce to their final segment.
func splitGeneric(s string) (string, []string, bool) {
	open := strings.IndexByte(s, '<')
	if open <= 0 || !strings.HasSuffix(s, ">") {
		return "", nil, false
	}
	name := strings.TrimSpace(s[:open])
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	if !isIdent(name) {
		return "", nil, false
	}
	inner := s[open+1 : len(s)-1]
	args, balanced := splitTopLevel(inner)
	if !balanced {
		return "", nil, false
	}
	return name, args, true
}

// splitTopLevel splits a comma-separated generic argument list at bracket
// depth zero. It is a bracket counter, not a grammar: '<' '>' '(' ')' '[' ']'
// are tracked, and '>' is ignored when it closes an arrow ("->") so function
// types inside arguments do not unbalance the scan.
func splitTopLevel(s string) ([]string, bool) {
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case ')', ']':
			depth--
		case '>':
			if i > 0 && s[i-1] == '-' {
				continue
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
		if depth < 0 {
			return nil, false
		}
	}
	if depth != 0 {
		return nil, false
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		args = append(args, tail)
	}
	return args, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
