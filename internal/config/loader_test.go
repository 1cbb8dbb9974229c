package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tonykolomeytsev/figx/internal/auth"
	"github.com/tonykolomeytsev/figx/internal/figerr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const minimalFigtree = `
remotes:
  icons:
    file_key: "abcdefg"
    container_node_ids: ["42-42"]
    access_token: "fig_123456789"
`

func TestLoadMinimalWorkspace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree)
	writeFile(t, filepath.Join(dir, "ui", ResourcesFileName), `
svg:
  puzzle: "Environment / Puzzle"
`)

	ws, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ws.DefaultRemote != "icons" {
		t.Errorf("DefaultRemote = %q", ws.DefaultRemote)
	}
	if got := ws.Remotes["icons"].FileKey; got != "abcdefg" {
		t.Errorf("FileKey = %q", got)
	}

	resources := ws.AllResources()
	if len(resources) != 1 {
		t.Fatalf("resources = %d, want 1", len(resources))
	}
	res := resources[0]
	if res.Label.String() != "//ui:puzzle" {
		t.Errorf("label = %s", res.Label)
	}
	if res.NodeName != "Environment / Puzzle" {
		t.Errorf("node name = %q", res.NodeName)
	}
	if res.Profile.Kind != KindSVG {
		t.Errorf("profile kind = %s", res.Profile.Kind)
	}
	if res.Line == 0 {
		t.Error("resource lost its declaration line")
	}
}

func TestLoadFromSubdirectorySetsCurrentDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree)
	sub := filepath.Join(dir, "app", "icons")
	writeFile(t, filepath.Join(sub, ResourcesFileName), "svg:\n  a: \"A\"\n")

	ws, err := Load(sub, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(ws.CurrentDir) != "app/icons" {
		t.Errorf("CurrentDir = %q", ws.CurrentDir)
	}
}

func TestLoadOutsideWorkspaceFails(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), LoadOptions{})
	if figerr.KindOf(err) != figerr.KindConfig {
		t.Fatalf("error = %v, want config error", err)
	}
}

func TestUnknownProfileReportsFileAndLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree)
	figFile := filepath.Join(dir, "ui", ResourcesFileName)
	writeFile(t, figFile, "nope:\n  a: \"A\"\n")

	_, err := Load(dir, LoadOptions{})
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	msg := err.Error()
	if !strings.Contains(msg, figFile+":1") {
		t.Errorf("diagnostic %q does not point at the manifest line", msg)
	}
}

func TestMultipleRemotesRequireDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), `
remotes:
  icons:
    file_key: "aaa"
  illustrations:
    file_key: "bbb"
`)
	_, err := Load(dir, LoadOptions{})
	if err == nil || !strings.Contains(err.Error(), "default") {
		t.Fatalf("error = %v, want missing-default diagnostic", err)
	}
}

func TestContainerTagsParsed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), `
remotes:
  icons:
    file_key: "aaa"
    container_node_ids:
      "42-42": core
      "43-43": extra
`)
	ws, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := ws.Remotes["icons"]
	if r.TagFor("42-42") != "core" || r.TagFor("43-43") != "extra" {
		t.Errorf("container tags = %#v", r.Containers)
	}
}

func TestTokenSourcePriorityList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), `
remotes:
  icons:
    file_key: "aaa"
    access_token:
      - env: MY_TOKEN_VAR
      - keychain: true
      - "fallback_key"
`)
	ws, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	chain := ws.Remotes["icons"].Token
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if _, ok := chain[0].(auth.Env); !ok {
		t.Errorf("chain[0] = %T, want Env", chain[0])
	}
	if _, ok := chain[1].(auth.Keychain); !ok {
		t.Errorf("chain[1] = %T, want Keychain", chain[1])
	}
	if s, ok := chain[2].(auth.Static); !ok || string(s) != "fallback_key" {
		t.Errorf("chain[2] = %#v, want static fallback", chain[2])
	}
}

func TestProfileExtendsBuiltin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree+`
profiles:
  app-icons:
    extends: compose
    package: com.example.icons
    variants: ["16", "24", "32"]
  webp:
    quality: 85
`)
	ws, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := ws.Profiles["app-icons"]
	if p.Kind != KindCompose {
		t.Errorf("kind = %s, want compose", p.Kind)
	}
	if p.Package != "com.example.icons" {
		t.Errorf("package = %q", p.Package)
	}
	if p.Variants == nil || len(p.Variants.List) != 3 {
		t.Fatalf("variants = %#v", p.Variants)
	}
	if p.Variants.LocalName != "{base}{variant}" || p.Variants.FigmaName != "{base} / {variant}" {
		t.Errorf("variant naming defaults = %#v", p.Variants)
	}

	// Overriding a built-in by name keeps its kind.
	if ws.Profiles["webp"].Quality != 85 || ws.Profiles["webp"].Kind != KindWebp {
		t.Errorf("webp override = %#v", ws.Profiles["webp"])
	}
}

func TestProfileWithoutExtendsRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree+`
profiles:
  mystery:
    scale: 2.0
`)
	_, err := Load(dir, LoadOptions{})
	if err == nil || !strings.Contains(err.Error(), "extend") {
		t.Fatalf("error = %v, want extends diagnostic", err)
	}
}

func TestChainedExtendsRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree+`
profiles:
  base-icons:
    extends: compose
  more-icons:
    extends: base-icons
`)
	_, err := Load(dir, LoadOptions{})
	if err == nil || !strings.Contains(err.Error(), "built-in") {
		t.Fatalf("error = %v, want single-level extends diagnostic", err)
	}
}

func TestResourceOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree+`
profiles:
  sized-icons:
    extends: compose
    variants: ["16", "24", "32"]
`)
	writeFile(t, filepath.Join(dir, "ui", ResourcesFileName), `
sized-icons:
  Puzzle:
    name: "Icons / Puzzle"
    variants: ["16", "24"]
png:
  photo:
    name: "Shots / Photo"
    scale: 2.0
    output_dir: img
`)
	ws, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	resources := ws.AllResources()
	if len(resources) != 2 {
		t.Fatalf("resources = %d", len(resources))
	}
	puzzle, photo := resources[0], resources[1]
	if len(puzzle.Variants) != 2 {
		t.Errorf("puzzle variants = %v", puzzle.Variants)
	}
	if photo.EffectiveScale() != 2.0 || photo.EffectiveOutputDir() != "img" {
		t.Errorf("photo overrides = %#v", photo)
	}
}

func TestVariantSelectionWithoutProfileVariantsRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree)
	writeFile(t, filepath.Join(dir, "ui", ResourcesFileName), `
svg:
  a:
    name: "A"
    variants: ["16"]
`)
	_, err := Load(dir, LoadOptions{})
	if err == nil || !strings.Contains(err.Error(), "variants") {
		t.Fatalf("error = %v, want variants diagnostic", err)
	}
}

func TestMatchResourcesHonorsPatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, WorkspaceFileName), minimalFigtree)
	writeFile(t, filepath.Join(dir, "a", ResourcesFileName), "svg:\n  one: \"One\"\n")
	writeFile(t, filepath.Join(dir, "b", ResourcesFileName), "svg:\n  two: \"Two\"\n")

	ws, err := Load(dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	all := mustPatterns(t, "//...")
	if got := len(ws.MatchResources(all)); got != 2 {
		t.Errorf("//... matched %d resources", got)
	}
	onlyA := mustPatterns(t, "//a:all")
	matched := ws.MatchResources(onlyA)
	if len(matched) != 1 || matched[0].Label.String() != "//a:one" {
		t.Errorf("//a:all matched %#v", matched)
	}
}
