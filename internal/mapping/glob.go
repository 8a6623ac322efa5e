package mapping

import (
	"fmt"
	"strings"
)

// GlobKind discriminates the shape of a compiled device-ID glob.
type GlobKind uint8

const (
	GlobAll    GlobKind = iota // "*"
	GlobExact                  // no wildcard
	GlobPrefix                 // "prefix*"
	GlobSuffix                 // "*suffix"
	GlobInfix                  // "*infix*"
)

// Glob is a compiled device-ID pattern (spec.md §3: "*, prefix*, *suffix,
// *infix*"). The zero value matches every device (equivalent to "*").
type Glob struct {
	Kind GlobKind
	Text string // the literal part, without wildcard stars
	Raw  string // original pattern, for diagnostics
}

// CompileGlob validates and compiles a device-ID glob pattern. Per
// spec.md §4.4, "no unbounded wildcards beyond *" — at most one leading and
// one trailing '*' are accepted; any '*' elsewhere in the pattern is a
// compile error.
func CompileGlob(pattern string) (Glob, error) {
	if pattern == "" {
		return Glob{}, fmt.Errorf("device pattern must not be empty")
	}
	if pattern == "*" {
		return Glob{Kind: GlobAll, Raw: pattern}, nil
	}

	hasLeading := strings.HasPrefix(pattern, "*")
	hasTrailing := strings.HasSuffix(pattern, "*")
	body := pattern
	if hasLeading {
		body = strings.TrimPrefix(body, "*")
	}
	if hasTrailing {
		body = strings.TrimSuffix(body, "*")
	}
	if strings.Contains(body, "*") {
		return Glob{}, fmt.Errorf("device pattern %q has an unbounded wildcard; only a single leading and/or trailing '*' is allowed", pattern)
	}
	if body == "" {
		return Glob{}, fmt.Errorf("device pattern %q has no literal content", pattern)
	}

	switch {
	case hasLeading && hasTrailing:
		return Glob{Kind: GlobInfix, Text: body, Raw: pattern}, nil
	case hasLeading:
		return Glob{Kind: GlobSuffix, Text: body, Raw: pattern}, nil
	case hasTrailing:
		return Glob{Kind: GlobPrefix, Text: body, Raw: pattern}, nil
	default:
		return Glob{Kind: GlobExact, Text: body, Raw: pattern}, nil
	}
}

// Match reports whether deviceID satisfies the compiled pattern.
func (g Glob) Match(deviceID string) bool {
	switch g.Kind {
	case GlobAll:
		return true
	case GlobExact:
		return deviceID == g.Text
	case GlobPrefix:
		return strings.HasPrefix(deviceID, g.Text)
	case GlobSuffix:
		return strings.HasSuffix(deviceID, g.Text)
	case GlobInfix:
		return strings.Contains(deviceID, g.Text)
	default:
		return false
	}
}

// String renders the original pattern text.
func (g Glob) String() string {
	if g.Raw != "" {
		return g.Raw
	}
	return "*"
}
