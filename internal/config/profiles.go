package config

// Built-in profile defaults. A user profile in .figtree.yaml either reuses
// one of these names directly (overriding fields) or extends exactly one
// of them via `extends`; deeper chains are rejected.

func builtinProfiles() map[string]*Profile {
	all := []*Profile{
		{
			Name:  string(KindPNG),
			Kind:  KindPNG,
			Scale: 1.0,
		},
		{
			Name: string(KindSVG),
			Kind: KindSVG,
		},
		{
			Name: string(KindPDF),
			Kind: KindPDF,
		},
		{
			Name:    string(KindWebp),
			Kind:    KindWebp,
			Scale:   1.0,
			Quality: 100,
		},
		{
			Name:  string(KindCompose),
			Kind:  KindCompose,
			Scale: 1.0,
		},
		{
			Name:          string(KindAndroidWebp),
			Kind:          KindAndroidWebp,
			Quality:       100,
			AndroidResDir: "src/main/res",
			Densities: []Density{
				DensityMDPI, DensityHDPI, DensityXHDPI, DensityXXHDPI, DensityXXXHDPI,
			},
		},
		{
			Name:          string(KindAndroidDrawable),
			Kind:          KindAndroidDrawable,
			AndroidResDir: "src/main/res",
		},
	}
	m := make(map[string]*Profile, len(all))
	for _, p := range all {
		m[p.Name] = p
	}
	return m
}

// IsBuiltinProfile reports whether name is one of the seven built-ins.
func IsBuiltinProfile(name string) bool {
	_, ok := builtinProfiles()[name]
	return ok
}

// ExportFormat returns the remote export format the profile's first
// pipeline step requests. Raster profiles that render locally still export
// the vector base.
func (p *Profile) ExportFormat() string {
	switch p.Kind {
	case KindPNG:
		return "png"
	case KindPDF:
		return "pdf"
	case KindWebp:
		return "png"
	case KindAndroidWebp:
		if p.LegacyLoader {
			return "png"
		}
		return "svg"
	default:
		return "svg"
	}
}

// clone returns a deep copy so extension never aliases builtin state.
func (p *Profile) clone() *Profile {
	out := *p
	out.FileSuppressLint = append([]string(nil), p.FileSuppressLint...)
	out.ColorMappings = append([]ColorMapping(nil), p.ColorMappings...)
	out.Densities = append([]Density(nil), p.Densities...)
	if p.Preview != nil {
		pv := *p.Preview
		pv.Imports = append([]string(nil), p.Preview.Imports...)
		out.Preview = &pv
	}
	if p.Variants != nil {
		v := *p.Variants
		v.List = append([]string(nil), p.Variants.List...)
		out.Variants = &v
	}
	return &out
}
