// Package label implements Bazel-style resource labels and the patterns
// used to select them on the command line.
//
// A label like //foo/bar:lib identifies the resource "lib" declared by the
// package manifest in directory foo/bar. Patterns extend labels with
// wildcards: //... selects everything, //foo/...:ic_* selects by glob,
// a leading dash negates.
package label

import (
	"fmt"
	"path"
	"strings"
)

// Package is the workspace-relative directory of a manifest, slash
// separated. The workspace root is the empty string.
type Package string

func (p Package) String() string { return string(p) }

// Label is a fully-qualified identifier of a resource inside a package.
type Label struct {
	Package Package
	Name    string
}

func New(pkg, name string) (Label, error) {
	p, err := parsePackage(pkg)
	if err != nil {
		return Label{}, err
	}
	if err := validateName(name); err != nil {
		return Label{}, err
	}
	return Label{Package: p, Name: name}, nil
}

func (l Label) String() string {
	return fmt.Sprintf("//%s:%s", l.Package, l.Name)
}

// Fitted renders the label truncated in the middle to at most max runes,
// keeping the resource name intact.
func (l Label) Fitted(max int) string {
	s := l.String()
	if len(s) <= max || max < 8 {
		return s
	}
	tail := ":" + l.Name
	if len(tail)+5 >= max {
		return s
	}
	head := s[:max-len(tail)-3]
	return head + "..." + tail
}

func parsePackage(pkg string) (Package, error) {
	pkg = strings.TrimPrefix(pkg, "//")
	if pkg == "" {
		return "", nil
	}
	if strings.HasPrefix(pkg, "/") {
		return "", fmt.Errorf("package path must be workspace-relative: %q", pkg)
	}
	for _, part := range strings.Split(pkg, "/") {
		if !validPackageSegment(part) {
			return "", fmt.Errorf("invalid package path segment %q in %q", part, pkg)
		}
	}
	return Package(path.Clean(pkg)), nil
}

func validPackageSegment(part string) bool {
	if part == "" || part == "." || part == ".." {
		return false
	}
	for _, c := range part {
		if !isWordChar(c) {
			return false
		}
	}
	return true
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("resource name is empty")
	}
	for _, c := range name {
		if !isWordChar(c) {
			return fmt.Errorf("invalid character %q in resource name %q", c, name)
		}
	}
	return nil
}

func isWordChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
