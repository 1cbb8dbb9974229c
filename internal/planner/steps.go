// Package planner expands declared resources into concrete pipelines: one
// totally ordered step chain per resource-variant combination, validated
// against the global invariants before anything executes.
package planner

import (
	"fmt"

	"github.com/tonykolomeytsev/figx/internal/cache"
	"github.com/tonykolomeytsev/figx/internal/transform"
)

// StepKind is the closed set of pipeline step kinds. All kinds are known
// at build time; there is no plugin dispatch.
type StepKind int

const (
	StepExportFromRemote StepKind = iota + 1
	StepSimplifySvg
	StepRenderRaster
	StepWebpEncode
	StepImageVector
	StepAndroidDrawable
	StepWriteFile
)

func (k StepKind) String() string {
	switch k {
	case StepExportFromRemote:
		return "export-from-remote"
	case StepSimplifySvg:
		return "simplify-svg"
	case StepRenderRaster:
		return "render-raster"
	case StepWebpEncode:
		return "webp-encode"
	case StepImageVector:
		return "svg-to-image-vector"
	case StepAndroidDrawable:
		return "svg-to-android-drawable"
	case StepWriteFile:
		return "write-file"
	default:
		return "unknown"
	}
}

// Step is one unit of work: a pure function of its parameters plus the
// previous step's bytes.
type Step struct {
	Kind StepKind

	// StepExportFromRemote
	Format       string
	Scale        float64
	LegacyLoader bool

	// StepWebpEncode
	Quality int

	// StepImageVector
	IVOptions *transform.ImageVectorOptions

	// StepWriteFile
	Path string
}

// describe renders the step with its parameters for aquery/explain output.
func (s Step) describe() string {
	switch s.Kind {
	case StepExportFromRemote:
		return fmt.Sprintf("%s{format=%s scale=%v}", s.Kind, s.Format, s.Scale)
	case StepRenderRaster:
		return fmt.Sprintf("%s{scale=%v}", s.Kind, s.Scale)
	case StepWebpEncode:
		return fmt.Sprintf("%s{quality=%d}", s.Kind, s.Quality)
	case StepImageVector:
		return fmt.Sprintf("%s{package=%s}", s.Kind, s.IVOptions.Package)
	case StepWriteFile:
		return fmt.Sprintf("%s{path=%s}", s.Kind, s.Path)
	default:
		return s.Kind.String()
	}
}

// fingerprintInto folds the step's stable parameters into a key builder.
// The dependency fingerprint and the export step's node identity are
// folded in by the executor at run time.
func (s Step) fingerprintInto(b *cache.KeyBuilder) {
	b.WriteUint64(uint64(s.Kind))
	switch s.Kind {
	case StepExportFromRemote:
		b.WriteString(s.Format).WriteFloat64(s.Scale).WriteBool(s.LegacyLoader)
	case StepRenderRaster:
		b.WriteFloat64(s.Scale)
	case StepWebpEncode:
		b.WriteUint64(uint64(s.Quality))
	case StepImageVector:
		o := s.IVOptions
		b.WriteString(o.Name).WriteString(o.Package).WriteBool(o.KotlinExplicitAPI)
		b.WriteString(o.ExtensionTarget).WriteBool(o.ComposableGet)
		for _, l := range o.FileSuppressLint {
			b.WriteString(l)
		}
		for _, m := range o.ColorMappings {
			b.WriteString(m.From).WriteString(m.To)
			for _, imp := range m.Imports {
				b.WriteString(imp)
			}
		}
		if o.Preview != nil {
			b.WriteString(o.Preview.Code)
			for _, imp := range o.Preview.Imports {
				b.WriteString(imp)
			}
		}
	case StepWriteFile:
		b.WriteString(s.Path)
	}
}
