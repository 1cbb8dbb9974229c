// Package config loads and validates the workspace manifests: the root
// .figtree.yaml (remotes and profiles) and per-package .fig.yaml files
// (resources). The output is a fully resolved Workspace the planner can
// consume without touching the filesystem again.
package config

import (
	"github.com/tonykolomeytsev/figx/internal/auth"
	"github.com/tonykolomeytsev/figx/internal/label"
)

const (
	WorkspaceFileName = ".figtree.yaml"
	ResourcesFileName = ".fig.yaml"
	OutDirName        = ".figx-out"
	CacheDirName      = ".figx-out/caches"
)

// Workspace is the resolved configuration for one invocation.
type Workspace struct {
	// Dir is the absolute workspace root, File the manifest that marks it.
	Dir  string
	File string

	// CurrentDir is the invocation directory relative to Dir; relative
	// label patterns resolve against it.
	CurrentDir label.Package

	OutDir   string
	CacheDir string

	Remotes       map[string]*Remote
	RemoteOrder   []string
	DefaultRemote string

	Profiles map[string]*Profile

	Packages []*PackageManifest
}

// Remote is a reference to a remote design-file subtree plus its
// credentials policy. Immutable for the lifetime of a run.
type Remote struct {
	ID         string
	FileKey    string
	Containers []Container
	Token      auth.Chain
	Default    bool
}

// ContainerIDs returns the node ids narrowing the indexed subtree.
func (r *Remote) ContainerIDs() []string {
	ids := make([]string, 0, len(r.Containers))
	for _, c := range r.Containers {
		ids = append(ids, c.NodeID)
	}
	return ids
}

// TagFor returns the container tag for a container node id, when tagging
// is enabled for this remote.
func (r *Remote) TagFor(containerID string) string {
	for _, c := range r.Containers {
		if c.NodeID == containerID {
			return c.Tag
		}
	}
	return ""
}

// Container narrows the indexed subtree to one node, optionally tagging
// every component found beneath it.
type Container struct {
	NodeID string
	Tag    string
}

type ProfileKind string

const (
	KindPNG             ProfileKind = "png"
	KindSVG             ProfileKind = "svg"
	KindPDF             ProfileKind = "pdf"
	KindWebp            ProfileKind = "webp"
	KindCompose         ProfileKind = "compose"
	KindAndroidWebp     ProfileKind = "android-webp"
	KindAndroidDrawable ProfileKind = "android-drawable"
)

// Profile is a named recipe selecting pipeline step kinds and their
// parameters. User-defined profiles extend exactly one built-in.
type Profile struct {
	Name   string
	Kind   ProfileKind
	Remote string // remote id; empty means the workspace default

	Scale     float64
	Quality   int
	OutputDir string

	// compose
	SrcDir            string
	Package           string
	KotlinExplicitAPI bool
	ExtensionTarget   string
	FileSuppressLint  []string
	ComposableGet     bool
	ColorMappings     []ColorMapping
	Preview           *Preview

	// android-webp / android-drawable
	AndroidResDir string
	Densities     []Density
	Night         string // figma-name template for the night variant
	LegacyLoader  bool

	Variants *VariantSpec
}

// VariantSpec multiplies a resource into several pipelines. LocalName and
// FigmaName are templates over {base} and {variant}.
type VariantSpec struct {
	LocalName string
	FigmaName string
	List      []string
}

type ColorMapping struct {
	From    string
	To      string
	Imports []string
}

type Preview struct {
	Imports []string
	Code    string
}

// Density is an Android screen-density bucket.
type Density string

const (
	DensityLDPI    Density = "ldpi"
	DensityMDPI    Density = "mdpi"
	DensityHDPI    Density = "hdpi"
	DensityXHDPI   Density = "xhdpi"
	DensityXXHDPI  Density = "xxhdpi"
	DensityXXXHDPI Density = "xxxhdpi"
)

// Scale returns the raster scale factor relative to mdpi.
func (d Density) Scale() float64 {
	switch d {
	case DensityLDPI:
		return 0.75
	case DensityMDPI:
		return 1.0
	case DensityHDPI:
		return 1.5
	case DensityXHDPI:
		return 2.0
	case DensityXXHDPI:
		return 3.0
	case DensityXXXHDPI:
		return 4.0
	default:
		return 0
	}
}

// PackageManifest is one loaded .fig.yaml file.
type PackageManifest struct {
	Package   label.Package
	Dir       string
	File      string
	Resources []*Resource
}

// Resource is a single declared import: one node in a remote, one
// profile, zero or more per-resource overrides.
type Resource struct {
	Label    label.Label
	Profile  *Profile
	NodeName string

	// Declaration site, for diagnostics.
	File string
	Line int

	// Per-resource overrides; zero values defer to the profile.
	Variants  []string
	Scale     float64
	OutputDir string
}

// EffectiveScale returns the resource's export scale.
func (r *Resource) EffectiveScale() float64 {
	if r.Scale > 0 {
		return r.Scale
	}
	if r.Profile.Scale > 0 {
		return r.Profile.Scale
	}
	return 1.0
}

// EffectiveOutputDir returns the output directory relative to the package.
func (r *Resource) EffectiveOutputDir() string {
	if r.OutputDir != "" {
		return r.OutputDir
	}
	return r.Profile.OutputDir
}

// RemoteFor resolves the remote a resource imports from.
func (w *Workspace) RemoteFor(r *Resource) *Remote {
	id := r.Profile.Remote
	if id == "" {
		id = w.DefaultRemote
	}
	return w.Remotes[id]
}

// AllResources flattens every package manifest.
func (w *Workspace) AllResources() []*Resource {
	var out []*Resource
	for _, pkg := range w.Packages {
		out = append(out, pkg.Resources...)
	}
	return out
}

// MatchResources returns the resources selected by the pattern set, in
// manifest order.
func (w *Workspace) MatchResources(patterns label.Set) []*Resource {
	var out []*Resource
	for _, pkg := range w.Packages {
		for _, res := range pkg.Resources {
			if patterns.Matches(res.Label, w.CurrentDir) {
				out = append(out, res)
			}
		}
	}
	return out
}
