package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tonykolomeytsev/figx/internal/cache"
	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/figma"
	"github.com/tonykolomeytsev/figx/internal/transform"
)

// Pipeline specializes one resource-variant combination into an ordered
// step chain ending in a file write.
type Pipeline struct {
	Resource *config.Resource
	Remote   *config.Remote

	// Variant is the axis value that produced this pipeline, empty for the
	// base pipeline.
	Variant string

	// NodeName is the fully substituted remote node name.
	NodeName string

	// OutputName is the substituted local name (without extension).
	OutputName string

	Steps []Step
}

// ID names the pipeline in events and diagnostics.
func (p *Pipeline) ID() string {
	if p.Variant == "" {
		return p.Resource.Label.String()
	}
	return fmt.Sprintf("%s (%s)", p.Resource.Label, p.Variant)
}

// OutputPath returns the terminal write path.
func (p *Pipeline) OutputPath() string {
	return p.Steps[len(p.Steps)-1].Path
}

// ExportStep returns the leading export step.
func (p *Pipeline) ExportStep() Step { return p.Steps[0] }

// StaticFingerprints computes the plan-time fingerprint chain keyed by
// node name. The executor replaces the export link with the resolved node
// id and subtree hash; these values feed aquery and explain output only.
func (p *Pipeline) StaticFingerprints() []cache.Key {
	out := make([]cache.Key, 0, len(p.Steps))
	var prev cache.Key
	for _, s := range p.Steps {
		b := cache.NewKey(cache.TagByproduct)
		if !prev.IsZero() {
			b.WriteKey(prev)
		} else {
			b.WriteString(p.Remote.FileKey).WriteString(p.NodeName)
		}
		s.fingerprintInto(b)
		prev = b.Build()
		out = append(out, prev)
	}
	return out
}

// Describe renders the chain for aquery output.
func (p *Pipeline) Describe() []string {
	fps := p.StaticFingerprints()
	out := make([]string, 0, len(p.Steps))
	for i, s := range p.Steps {
		out = append(out, fmt.Sprintf("%s #%s", s.describe(), fps[i]))
	}
	return out
}

// Plan expands the resources into pipelines and verifies the global
// invariants: every pipeline owns its output path exclusively, every
// variant selection refers to a declared variant.
func Plan(ws *config.Workspace, resources []*config.Resource) ([]*Pipeline, error) {
	var pipelines []*Pipeline
	for _, res := range resources {
		expanded, err := expandResource(ws, res)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, expanded...)
	}

	owners := make(map[string]*Pipeline, len(pipelines))
	for _, p := range pipelines {
		path := p.OutputPath()
		if prev, clash := owners[path]; clash {
			return nil, figerr.Config(p.Resource.File, p.Resource.Line,
				"output path %s written by both %s and %s", path, prev.ID(), p.ID())
		}
		owners[path] = p
	}
	return pipelines, nil
}

func expandResource(ws *config.Workspace, res *config.Resource) ([]*Pipeline, error) {
	remote := ws.RemoteFor(res)
	if remote == nil {
		return nil, figerr.Config(res.File, res.Line,
			"resource %s references unknown remote %q", res.Label, res.Profile.Remote)
	}

	switch res.Profile.Kind {
	case config.KindAndroidWebp:
		return expandAndroidWebp(res, remote)
	case config.KindAndroidDrawable:
		return expandAndroidDrawable(res, remote)
	default:
		return expandVariants(res, remote)
	}
}

// variantPoint is one (variant, node-name, output-name) combination.
type variantPoint struct {
	variant  string
	nodeName string
	outName  string
}

func variantPoints(res *config.Resource) ([]variantPoint, error) {
	spec := res.Profile.Variants
	if spec == nil || len(spec.List) == 0 {
		return []variantPoint{{nodeName: res.NodeName, outName: res.Label.Name}}, nil
	}

	selected := spec.List
	if len(res.Variants) > 0 {
		declared := make(map[string]struct{}, len(spec.List))
		for _, v := range spec.List {
			declared[v] = struct{}{}
		}
		for _, v := range res.Variants {
			if _, ok := declared[v]; !ok {
				return nil, figerr.Config(res.File, res.Line,
					"resource %s selects undeclared variant %q", res.Label, v)
			}
		}
		selected = res.Variants
	}

	points := make([]variantPoint, 0, len(selected))
	for _, v := range selected {
		points = append(points, variantPoint{
			variant:  v,
			nodeName: expandTemplate(spec.FigmaName, res.NodeName, v),
			outName:  expandTemplate(spec.LocalName, res.Label.Name, v),
		})
	}
	return points, nil
}

func expandTemplate(tpl, base, variant string) string {
	s := strings.ReplaceAll(tpl, "{base}", base)
	return strings.ReplaceAll(s, "{variant}", variant)
}

func expandVariants(res *config.Resource, remote *config.Remote) ([]*Pipeline, error) {
	points, err := variantPoints(res)
	if err != nil {
		return nil, err
	}
	pipelines := make([]*Pipeline, 0, len(points))
	for _, pt := range points {
		steps, err := stepsFor(res, pt)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, &Pipeline{
			Resource:   res,
			Remote:     remote,
			Variant:    pt.variant,
			NodeName:   pt.nodeName,
			OutputName: pt.outName,
			Steps:      steps,
		})
	}
	return pipelines, nil
}

func stepsFor(res *config.Resource, pt variantPoint) ([]Step, error) {
	p := res.Profile
	outDir := filepath.Join(filepath.Dir(res.File), res.EffectiveOutputDir())

	switch p.Kind {
	case config.KindSVG:
		return []Step{
			{Kind: StepExportFromRemote, Format: "svg", Scale: 1.0},
			{Kind: StepWriteFile, Path: filepath.Join(outDir, pt.outName+".svg")},
		}, nil
	case config.KindPDF:
		return []Step{
			{Kind: StepExportFromRemote, Format: "pdf", Scale: 1.0},
			{Kind: StepWriteFile, Path: filepath.Join(outDir, pt.outName+".pdf")},
		}, nil
	case config.KindPNG:
		return []Step{
			{Kind: StepExportFromRemote, Format: "png", Scale: res.EffectiveScale()},
			{Kind: StepWriteFile, Path: filepath.Join(outDir, pt.outName+".png")},
		}, nil
	case config.KindWebp:
		return []Step{
			{Kind: StepExportFromRemote, Format: "png", Scale: res.EffectiveScale()},
			{Kind: StepWebpEncode, Quality: p.Quality},
			{Kind: StepWriteFile, Path: filepath.Join(outDir, pt.outName+".webp")},
		}, nil
	case config.KindCompose:
		dir := composeOutputDir(res)
		opts := &transform.ImageVectorOptions{
			Name:              pt.outName,
			Package:           composePackage(res),
			KotlinExplicitAPI: p.KotlinExplicitAPI,
			ExtensionTarget:   p.ExtensionTarget,
			FileSuppressLint:  p.FileSuppressLint,
			ComposableGet:     p.ComposableGet,
			ColorMappings:     mappings(p.ColorMappings),
			Preview:           preview(p.Preview),
		}
		return []Step{
			{Kind: StepExportFromRemote, Format: "svg", Scale: 1.0},
			{Kind: StepSimplifySvg},
			{Kind: StepImageVector, IVOptions: opts},
			{Kind: StepWriteFile, Path: filepath.Join(dir, pt.outName+".kt")},
		}, nil
	default:
		return nil, figerr.Config(res.File, res.Line,
			"resource %s: profile kind %q cannot be planned here", res.Label, p.Kind)
	}
}

// composeOutputDir is {package_dir}/{src_dir}/{package-as-path}. When the
// profile declares no package, src_dir is assumed to already point at the
// final directory.
func composeOutputDir(res *config.Resource) string {
	pkgPath := strings.ReplaceAll(res.Profile.Package, ".", string(filepath.Separator))
	return filepath.Join(filepath.Dir(res.File), res.Profile.SrcDir, pkgPath)
}

var kotlinSourceRoots = []string{
	"src/main/kotlin",
	"src/main/java",
	"src/debug/kotlin",
	"src/release/kotlin",
	"src/commonMain/kotlin",
	"src/jvmMain/kotlin",
	"src/jsMain/kotlin",
}

// composePackage returns the declared Kotlin package, or infers it from a
// known source-root segment of src_dir (src/main/kotlin/com/foo → com.foo).
func composePackage(res *config.Resource) string {
	if res.Profile.Package != "" {
		return res.Profile.Package
	}
	dir := filepath.ToSlash(filepath.Join(filepath.Dir(res.File), res.Profile.SrcDir))
	for _, root := range kotlinSourceRoots {
		if i := strings.Index(dir, root+"/"); i >= 0 {
			return strings.ReplaceAll(dir[i+len(root)+1:], "/", ".")
		}
	}
	return ""
}

func expandAndroidWebp(res *config.Resource, remote *config.Remote) ([]*Pipeline, error) {
	p := res.Profile
	resDir := filepath.Join(filepath.Dir(res.File), p.AndroidResDir)
	fileName := androidResourceName(res.Label.Name)

	var pipelines []*Pipeline
	add := func(night bool) {
		nodeName := res.NodeName
		variantPrefix := ""
		if night {
			nodeName = expandTemplate(p.Night, res.NodeName, "night")
			variantPrefix = "night-"
		}
		for _, density := range p.Densities {
			qualifier := "drawable-" + string(density)
			if night {
				qualifier = "drawable-night-" + string(density)
			}
			out := filepath.Join(resDir, qualifier, fileName+".webp")

			var steps []Step
			if p.LegacyLoader {
				// Legacy chain: the remote rasterizes at each density.
				steps = []Step{
					{Kind: StepExportFromRemote, Format: "png", Scale: density.Scale(), LegacyLoader: true},
					{Kind: StepWebpEncode, Quality: p.Quality},
					{Kind: StepWriteFile, Path: out},
				}
			} else {
				// Default chain: export the vector base once, render locally.
				steps = []Step{
					{Kind: StepExportFromRemote, Format: "svg", Scale: 1.0},
					{Kind: StepSimplifySvg},
					{Kind: StepRenderRaster, Scale: density.Scale()},
					{Kind: StepWebpEncode, Quality: p.Quality},
					{Kind: StepWriteFile, Path: out},
				}
			}
			pipelines = append(pipelines, &Pipeline{
				Resource:   res,
				Remote:     remote,
				Variant:    variantPrefix + string(density),
				NodeName:   nodeName,
				OutputName: fileName,
				Steps:      steps,
			})
		}
	}

	add(false)
	if p.Night != "" {
		add(true)
	}
	return pipelines, nil
}

func expandAndroidDrawable(res *config.Resource, remote *config.Remote) ([]*Pipeline, error) {
	p := res.Profile
	resDir := filepath.Join(filepath.Dir(res.File), p.AndroidResDir)
	fileName := androidResourceName(res.Label.Name)

	var pipelines []*Pipeline
	add := func(night bool) {
		nodeName := res.NodeName
		variant := ""
		qualifier := "drawable"
		if night {
			nodeName = expandTemplate(p.Night, res.NodeName, "night")
			variant = "night"
			qualifier = "drawable-night"
		}
		pipelines = append(pipelines, &Pipeline{
			Resource:   res,
			Remote:     remote,
			Variant:    variant,
			NodeName:   nodeName,
			OutputName: fileName,
			Steps: []Step{
				{Kind: StepExportFromRemote, Format: "svg", Scale: 1.0},
				{Kind: StepSimplifySvg},
				{Kind: StepAndroidDrawable},
				{Kind: StepWriteFile, Path: filepath.Join(resDir, qualifier, fileName+".xml")},
			},
		})
	}

	add(false)
	if p.Night != "" {
		add(true)
	}
	return pipelines, nil
}

// androidResourceName lowers a resource name into the character set
// Android resource files allow.
func androidResourceName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func mappings(in []config.ColorMapping) []transform.ColorMappingSpec {
	out := make([]transform.ColorMappingSpec, 0, len(in))
	for _, m := range in {
		out = append(out, transform.ColorMappingSpec{From: m.From, To: m.To, Imports: m.Imports})
	}
	return out
}

func preview(p *config.Preview) *transform.PreviewSpec {
	if p == nil {
		return nil
	}
	return &transform.PreviewSpec{Imports: p.Imports, Code: p.Code}
}

// RuntimeFingerprint computes the real fingerprint chain link for a step,
// given the resolved node and the previous step's fingerprint.
func RuntimeFingerprint(p *Pipeline, step Step, prev cache.Key, node figma.Node) cache.Key {
	b := cache.NewKey(cache.TagByproduct)
	if step.Kind == StepExportFromRemote {
		b = cache.NewKey(cache.TagExportedImage)
		b.WriteString(p.Remote.FileKey).WriteString(node.ID).WriteUint64(node.Hash)
	} else {
		b.WriteKey(prev)
	}
	step.fingerprintInto(b)
	return b.Build()
}
