package label

import "testing"

func target(t *testing.T, pkg, name string) Label {
	t.Helper()
	l, err := New(pkg, name)
	if err != nil {
		t.Fatalf("New(%q, %q): %v", pkg, name, err)
	}
	return l
}

func set(t *testing.T, patterns ...string) Set {
	t.Helper()
	s, err := ParseSet(patterns)
	if err != nil {
		t.Fatalf("ParseSet(%v): %v", patterns, err)
	}
	return s
}

func TestParsePatternRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"//foo/bar*", "*foo/bar", "../bar:xyz", "//foo:"} {
		if _, err := ParsePattern(bad); err == nil {
			t.Errorf("ParsePattern(%q): expected error", bad)
		}
	}
}

func TestMatchesExactLabel(t *testing.T) {
	t.Parallel()

	s := set(t, "//foo/bar:wiz")
	if !s.Matches(target(t, "foo/bar", "wiz"), "") {
		t.Error("expected //foo/bar:wiz to match")
	}
	if s.Matches(target(t, "foo/bar", "other"), "") {
		t.Error("did not expect //foo/bar:other to match")
	}
	if s.Matches(target(t, "foo/baz", "wiz"), "") {
		t.Error("did not expect //foo/baz:wiz to match")
	}
}

func TestMatchesAllTargetsInPackage(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"//foo/bar", "//foo/bar:*", "//foo/bar:all"} {
		s := set(t, pattern)
		if !s.Matches(target(t, "foo/bar", "xyz"), "") {
			t.Errorf("%s: expected //foo/bar:xyz to match", pattern)
		}
		if s.Matches(target(t, "foo/baz", "xyz"), "") {
			t.Errorf("%s: did not expect //foo/baz:xyz to match", pattern)
		}
	}
}

func TestMatchesRecursiveWildcard(t *testing.T) {
	t.Parallel()

	s := set(t, "//foo/...")
	for _, pkg := range []string{"foo", "foo/bar", "foo/buz/biz/nun"} {
		if !s.Matches(target(t, pkg, "x"), "") {
			t.Errorf("expected //%s:x to match //foo/...", pkg)
		}
	}
	if s.Matches(target(t, "fee/bar", "x"), "") {
		t.Error("did not expect //fee/bar:x to match //foo/...")
	}
}

func TestMatchesMidPathWildcard(t *testing.T) {
	t.Parallel()

	s := set(t, "//foo/.../bar:*")
	if !s.Matches(target(t, "foo/abc/bar", "x"), "") {
		t.Error("expected //foo/abc/bar:x to match")
	}
	if !s.Matches(target(t, "foo/bar", "x"), "") {
		t.Error("expected //foo/bar:x to match (wildcard spans zero segments)")
	}
	if s.Matches(target(t, "foo/abc/baz", "x"), "") {
		t.Error("did not expect //foo/abc/baz:x to match")
	}
}

func TestMatchesTargetGlob(t *testing.T) {
	t.Parallel()

	s := set(t, "//icons:ic_*")
	if !s.Matches(target(t, "icons", "ic_home"), "") {
		t.Error("expected ic_home to match ic_*")
	}
	if s.Matches(target(t, "icons", "home"), "") {
		t.Error("did not expect home to match ic_*")
	}
}

func TestMatchesRelativeToCurrentDir(t *testing.T) {
	t.Parallel()

	s := set(t, "bar:*")
	if !s.Matches(target(t, "foo/bar", "x"), "foo") {
		t.Error("expected bar:* to match //foo/bar:x from foo")
	}
	if s.Matches(target(t, "fox/bar", "x"), "foo") {
		t.Error("did not expect bar:* to match //fox/bar:x from foo")
	}

	local := set(t, ":name")
	if !local.Matches(target(t, "foo", "name"), "foo") {
		t.Error("expected :name to match //foo:name from foo")
	}
	if local.Matches(target(t, "foo/sub", "name"), "foo") {
		t.Error("did not expect :name to match a subpackage")
	}
}

func TestMatchesNegativePatterns(t *testing.T) {
	t.Parallel()

	s := set(t, "//foo/...", "-//foo/bar/...")
	if !s.Matches(target(t, "foo/jkl", "x"), "") {
		t.Error("expected //foo/jkl:x to survive subtraction")
	}
	if s.Matches(target(t, "foo/bar/qwe", "x"), "") {
		t.Error("did not expect //foo/bar/qwe:x to survive subtraction")
	}
}

func TestEmptySetSelectsWorkspace(t *testing.T) {
	t.Parallel()

	s := set(t)
	if !s.Matches(target(t, "any/where", "x"), "deep/dir") {
		t.Error("expected empty pattern set to select everything")
	}
}

func TestMatchesPackagePruning(t *testing.T) {
	t.Parallel()

	s := set(t, "//foo/bar:wiz")
	if !s.MatchesPackage("foo/bar", "") {
		t.Error("expected package foo/bar to be kept")
	}
	if s.MatchesPackage("foo/baz", "") {
		t.Error("expected package foo/baz to be pruned")
	}

	// A negative pattern with a specific target must not prune the package.
	s = set(t, "//foo/...", "-//foo/bar:one")
	if !s.MatchesPackage("foo/bar", "") {
		t.Error("expected foo/bar to be kept despite target-level negation")
	}
}

func TestLabelFitted(t *testing.T) {
	t.Parallel()

	l := target(t, "some/very/long/package/path/inside/the/workspace", "icon")
	got := l.Fitted(30)
	if len(got) > 30 {
		t.Errorf("Fitted(30) = %q (len %d)", got, len(got))
	}
}
