package label

import (
	"fmt"
	"strings"
)

// Pattern matches a set of labels. The zero value is the relative "..."
// pattern (every target at or below the invocation directory); build
// patterns with ParsePattern.
//
//	//foo/bar:baz   exactly one target
//	//foo/bar       all targets of one package
//	//foo/...       all targets below foo, recursively
//	//...           the whole workspace
//	:name, bar:ic_* relative to the invocation directory
//	-//foo/...      negation (subtracts from composed sets)
type Pattern struct {
	pkg      pkgPattern
	target   targetPattern
	absolute bool
	negative bool
}

type pkgKind int

const (
	pkgAll pkgKind = iota
	pkgExact
	pkgGlob
)

type pkgPattern struct {
	kind pkgKind
	path string
}

type targetKind int

const (
	targetAll targetKind = iota
	targetExact
	targetGlob
)

type targetPattern struct {
	kind targetKind
	name string
}

// Set is an ordered collection of patterns evaluated together: a label
// matches when at least one positive pattern matches and no negative
// pattern does.
type Set []Pattern

func ParsePattern(s string) (Pattern, error) {
	p := Pattern{}
	rest := s
	if strings.HasPrefix(rest, "-") {
		p.negative = true
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, "//") {
		p.absolute = true
		rest = rest[2:]
	}

	pkgPart := rest
	targetPart := ""
	hasTarget := false
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		pkgPart, targetPart = rest[:i], rest[i+1:]
		hasTarget = true
	}

	var err error
	p.pkg, err = parsePkgPattern(pkgPart)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: %w", s, err)
	}
	if hasTarget {
		p.target, err = parseTargetPattern(targetPart)
		if err != nil {
			return Pattern{}, fmt.Errorf("pattern %q: %w", s, err)
		}
	} else {
		p.target = targetPattern{kind: targetAll}
	}
	return p, nil
}

// ParseSet parses every element; an empty input selects the whole
// workspace.
func ParseSet(args []string) (Set, error) {
	if len(args) == 0 {
		return Set{{pkg: pkgPattern{kind: pkgAll}, target: targetPattern{kind: targetAll}, absolute: true}}, nil
	}
	set := make(Set, 0, len(args))
	for _, a := range args {
		p, err := ParsePattern(a)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

func parsePkgPattern(s string) (pkgPattern, error) {
	if s == "..." {
		return pkgPattern{kind: pkgAll}, nil
	}
	for _, part := range strings.Split(s, "/") {
		if part == "..." {
			continue
		}
		if s != "" && !validPackageSegment(part) {
			return pkgPattern{}, fmt.Errorf("invalid package segment %q", part)
		}
	}
	if strings.Contains(s, "...") {
		return pkgPattern{kind: pkgGlob, path: s}, nil
	}
	return pkgPattern{kind: pkgExact, path: s}, nil
}

func parseTargetPattern(s string) (targetPattern, error) {
	if s == "*" || s == "all" {
		return targetPattern{kind: targetAll}, nil
	}
	if s == "" {
		return targetPattern{}, fmt.Errorf("empty target")
	}
	for _, c := range s {
		if !isWordChar(c) && c != '*' {
			return targetPattern{}, fmt.Errorf("invalid character %q in target", c)
		}
	}
	if strings.Contains(s, "*") {
		return targetPattern{kind: targetGlob, name: s}, nil
	}
	return targetPattern{kind: targetExact, name: s}, nil
}

// Matches reports whether the set selects l, with relative patterns
// resolved against currentDir.
func (s Set) Matches(l Label, currentDir Package) bool {
	positive, negative := false, false
	for _, p := range s {
		m := p.matches(l, currentDir)
		if p.negative {
			negative = negative || m
		} else {
			positive = positive || m
		}
	}
	return positive && !negative
}

// MatchesPackage reports whether the set can select targets of pkg itself;
// packages below pkg are not considered.
func (s Set) MatchesPackage(pkg Package, currentDir Package) bool {
	positive, negative := false, false
	for _, p := range s {
		m := p.matchesPackage(pkg, currentDir)
		if p.negative {
			// A negative pattern only excludes a package when it covers all
			// of its targets.
			negative = negative || (m && p.target.kind == targetAll)
		} else {
			positive = positive || m
		}
	}
	return positive && !negative
}

func (p Pattern) matches(l Label, currentDir Package) bool {
	if !p.matchesPackage(l.Package, currentDir) {
		return false
	}
	switch p.target.kind {
	case targetAll:
		return true
	case targetExact:
		return l.Name == p.target.name
	default:
		return globMatch(p.target.name, l.Name)
	}
}

func (p Pattern) matchesPackage(pkg Package, currentDir Package) bool {
	switch p.pkg.kind {
	case pkgAll:
		if p.absolute {
			return true
		}
		return pkg == currentDir || strings.HasPrefix(string(pkg), string(currentDir)+"/") || currentDir == ""
	case pkgExact:
		want := p.pkg.path
		if !p.absolute {
			want = joinPkg(currentDir, want)
		}
		return string(pkg) == want
	default:
		want := p.pkg.path
		if !p.absolute {
			want = joinPkg(currentDir, want)
		}
		return matchPkgGlob(strings.Split(want, "/"), splitPkg(pkg))
	}
}

func joinPkg(dir Package, rel string) string {
	if dir == "" {
		return rel
	}
	if rel == "" {
		return string(dir)
	}
	return string(dir) + "/" + rel
}

func splitPkg(pkg Package) []string {
	if pkg == "" {
		return nil
	}
	return strings.Split(string(pkg), "/")
}

// matchPkgGlob matches pattern segments against path segments, where the
// segment "..." spans zero or more path segments.
func matchPkgGlob(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "..." {
		for skip := 0; skip <= len(parts); skip++ {
			if matchPkgGlob(pattern[1:], parts[skip:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 || pattern[0] != parts[0] {
		return false
	}
	return matchPkgGlob(pattern[1:], parts[1:])
}

// globMatch implements '*'-only glob matching for target names.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}
