package config

import (
	"testing"

	"github.com/tonykolomeytsev/figx/internal/label"
)

func mustPatterns(t *testing.T, patterns ...string) label.Set {
	t.Helper()
	s, err := label.ParseSet(patterns)
	if err != nil {
		t.Fatalf("ParseSet(%v): %v", patterns, err)
	}
	return s
}
