package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is a single gitignore-style pattern.
type IgnorePattern struct {
	raw      string
	negation bool // "!pattern"
	dirOnly  bool // "pattern/"
	anchored bool // "/pattern" or a pattern containing a slash
	segments []string
	base     string // directory of the ignore file, relative to the root
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{raw: pattern}

	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	} else if strings.Contains(pattern, "/") {
		p.anchored = true
	}
	p.segments = strings.Split(pattern, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.raw
}

// IsNegation reports whether the pattern re-includes matching paths.
func (p IgnorePattern) IsNegation() bool {
	return p.negation
}

// Match reports whether the slash-separated relative path matches. A
// trailing slash marks rel as a directory. Directory patterns also match
// every path below the directory.
func (p IgnorePattern) Match(rel string) bool {
	isDir := strings.HasSuffix(rel, "/")
	rel = strings.TrimSuffix(rel, "/")

	if p.base != "" {
		if !strings.HasPrefix(rel, p.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, p.base+"/")
	}
	segs := strings.Split(rel, "/")

	// Every proper prefix of the path is a directory.
	for n := 1; n <= len(segs); n++ {
		if n == len(segs) && p.dirOnly && !isDir {
			break
		}
		if p.matchPrefix(segs[:n]) {
			return true
		}
	}
	return false
}

func (p IgnorePattern) matchPrefix(segs []string) bool {
	if p.anchored {
		return matchSegments(p.segments, segs)
	}
	for start := range segs {
		if matchSegments(p.segments, segs[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches pattern segments against path segments, with "**"
// standing for any number of directories.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
