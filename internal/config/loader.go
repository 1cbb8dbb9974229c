package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tonykolomeytsev/figx/internal/auth"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/label"
	"github.com/tonykolomeytsev/figx/internal/log"
)

// LoadOptions tweaks workspace loading for commands that do not hit the
// network (query, info) and therefore tolerate missing credentials.
type LoadOptions struct {
	// IgnoreMissingToken keeps loading even when no token source is
	// configured for a remote.
	IgnoreMissingToken bool
}

// Load discovers the workspace enclosing startDir and parses every
// manifest in it.
func Load(startDir string, opts LoadOptions) (*Workspace, error) {
	logger := log.WithComponent("config")

	wsDir, wsFile, err := findWorkspaceFile(startDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("workspace found", "dir", wsDir)

	current, err := filepath.Rel(wsDir, startDir)
	if err != nil || strings.HasPrefix(current, "..") {
		return nil, figerr.Config(wsFile, 0, "invocation directory %s is outside the workspace", startDir)
	}
	if current == "." {
		current = ""
	}

	ws := &Workspace{
		Dir:        wsDir,
		File:       wsFile,
		CurrentDir: label.Package(filepath.ToSlash(current)),
		OutDir:     filepath.Join(wsDir, OutDirName),
		CacheDir:   filepath.Join(wsDir, filepath.FromSlash(CacheDirName)),
	}

	if err := parseWorkspaceFile(ws, wsFile, opts); err != nil {
		return nil, err
	}

	figFiles, err := findFigFiles(wsDir)
	if err != nil {
		return nil, fmt.Errorf("traverse workspace: %w", err)
	}
	for _, figFile := range figFiles {
		pkg, err := packageFor(wsDir, figFile)
		if err != nil {
			return nil, figerr.Config(figFile, 0, "%v", err)
		}
		manifest, err := parseFigFile(ws, pkg, figFile)
		if err != nil {
			return nil, err
		}
		ws.Packages = append(ws.Packages, manifest)
	}

	return ws, nil
}

func findWorkspaceFile(startDir string) (dir, file string, err error) {
	dir, err = filepath.Abs(startDir)
	if err != nil {
		return "", "", err
	}
	for {
		candidate := filepath.Join(dir, WorkspaceFileName)
		if _, err := os.Stat(candidate); err == nil {
			return dir, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", figerr.Config("", 0,
				"not inside a figx workspace: no %s found in %s or any parent", WorkspaceFileName, startDir)
		}
		dir = parent
	}
}

func findFigFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == ResourcesFileName {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func packageFor(wsDir, figFile string) (label.Package, error) {
	rel, err := filepath.Rel(wsDir, filepath.Dir(figFile))
	if err != nil {
		return "", err
	}
	if rel == "." {
		rel = ""
	}
	return label.Package(filepath.ToSlash(rel)), nil
}

// region: .figtree.yaml

type figtreeDTO struct {
	Remotes  map[string]remoteDTO  `yaml:"remotes"`
	Profiles map[string]profileDTO `yaml:"profiles"`
}

type remoteDTO struct {
	FileKey          string        `yaml:"file_key"`
	ContainerNodeIDs containersDTO `yaml:"container_node_ids"`
	AccessToken      tokenChainDTO `yaml:"access_token"`
	Default          bool          `yaml:"default"`
}

type containersDTO []Container

func (c *containersDTO) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var ids []string
		if err := node.Decode(&ids); err != nil {
			return err
		}
		for _, id := range ids {
			if id == "" {
				return fmt.Errorf("line %d: container node id cannot be empty", node.Line)
			}
			*c = append(*c, Container{NodeID: id})
		}
		return nil
	case yaml.MappingNode:
		// id -> tag form enables container tagging.
		for i := 0; i+1 < len(node.Content); i += 2 {
			id, tag := node.Content[i].Value, node.Content[i+1].Value
			if id == "" || tag == "" {
				return fmt.Errorf("line %d: container node id and tag cannot be empty", node.Content[i].Line)
			}
			*c = append(*c, Container{NodeID: id, Tag: tag})
		}
		return nil
	default:
		return fmt.Errorf("line %d: container_node_ids must be a list or an id-to-tag map", node.Line)
	}
}

type tokenChainDTO auth.Chain

func (t *tokenChainDTO) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		for _, item := range node.Content {
			src, err := tokenSourceFromNode(item)
			if err != nil {
				return err
			}
			*t = append(*t, src)
		}
		return nil
	}
	src, err := tokenSourceFromNode(node)
	if err != nil {
		return err
	}
	*t = append(*t, src)
	return nil
}

func tokenSourceFromNode(node *yaml.Node) (auth.TokenSource, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return nil, fmt.Errorf("line %d: access token cannot be empty", node.Line)
		}
		return auth.Static(node.Value), nil
	case yaml.MappingNode:
		var spec struct {
			Env      string `yaml:"env"`
			Keychain bool   `yaml:"keychain"`
		}
		if err := node.Decode(&spec); err != nil {
			return nil, err
		}
		switch {
		case spec.Env != "":
			return auth.Env(spec.Env), nil
		case spec.Keychain:
			return auth.Keychain{}, nil
		default:
			return nil, fmt.Errorf("line %d: expected `env: NAME` or `keychain: true`", node.Line)
		}
	default:
		return nil, fmt.Errorf("line %d: unsupported access_token entry", node.Line)
	}
}

type profileDTO struct {
	Extends           string            `yaml:"extends"`
	Remote            string            `yaml:"remote"`
	Scale             *float64          `yaml:"scale"`
	Quality           *int              `yaml:"quality"`
	OutputDir         *string           `yaml:"output_dir"`
	SrcDir            *string           `yaml:"src_dir"`
	Package           *string           `yaml:"package"`
	KotlinExplicitAPI *bool             `yaml:"kotlin_explicit_api"`
	ExtensionTarget   *string           `yaml:"extension_target"`
	FileSuppressLint  []string          `yaml:"file_suppress_lint"`
	ComposableGet     *bool             `yaml:"composable_get"`
	ColorMappings     []colorMappingDTO `yaml:"color_mappings"`
	Preview           *previewDTO       `yaml:"preview"`
	AndroidResDir     *string           `yaml:"android_res_dir"`
	Densities         []string          `yaml:"densities"`
	Night             *string           `yaml:"night"`
	LegacyLoader      *bool             `yaml:"legacy_loader"`
	VariantNaming     *variantNameDTO   `yaml:"variant_naming"`
	Variants          []string          `yaml:"variants"`
}

type colorMappingDTO struct {
	From    string   `yaml:"from"`
	To      string   `yaml:"to"`
	Imports []string `yaml:"imports"`
}

type previewDTO struct {
	Imports []string `yaml:"imports"`
	Code    string   `yaml:"code"`
}

type variantNameDTO struct {
	LocalName string `yaml:"local_name"`
	FigmaName string `yaml:"figma_name"`
}

func parseWorkspaceFile(ws *Workspace, path string, opts LoadOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read workspace manifest: %w", err)
	}
	var dto figtreeDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return figerr.Config(path, 0, "malformed workspace manifest: %v", err)
	}

	if len(dto.Remotes) == 0 {
		return figerr.Config(path, 0, "workspace declares no remotes")
	}

	ws.Remotes = make(map[string]*Remote, len(dto.Remotes))
	for id := range dto.Remotes {
		ws.RemoteOrder = append(ws.RemoteOrder, id)
	}
	sort.Strings(ws.RemoteOrder)

	for _, id := range ws.RemoteOrder {
		r := dto.Remotes[id]
		if r.FileKey == "" {
			return figerr.Config(path, 0, "remote %q: file_key cannot be empty", id)
		}
		chain := auth.Chain(r.AccessToken)
		if len(chain) == 0 {
			if opts.IgnoreMissingToken {
				chain = auth.Chain{auth.Static(":)")}
			} else {
				chain = auth.Chain{auth.Env(auth.DefaultEnvVar)}
			}
		}
		ws.Remotes[id] = &Remote{
			ID:         id,
			FileKey:    r.FileKey,
			Containers: r.ContainerNodeIDs,
			Token:      chain,
			Default:    r.Default,
		}
		if r.Default {
			if ws.DefaultRemote != "" {
				return figerr.Config(path, 0, "only one remote can be marked as default")
			}
			ws.DefaultRemote = id
		}
	}
	if ws.DefaultRemote == "" {
		if len(ws.RemoteOrder) > 1 {
			return figerr.Config(path, 0, "at least one remote should be marked as default")
		}
		ws.DefaultRemote = ws.RemoteOrder[0]
	}

	ws.Profiles = builtinProfiles()
	var profileNames []string
	for name := range dto.Profiles {
		profileNames = append(profileNames, name)
	}
	sort.Strings(profileNames)
	for _, name := range profileNames {
		p, err := resolveProfile(ws, path, name, dto.Profiles[name])
		if err != nil {
			return err
		}
		ws.Profiles[name] = p
	}

	// Every profile's remote reference must exist.
	for _, p := range ws.Profiles {
		if p.Remote != "" {
			if _, ok := ws.Remotes[p.Remote]; !ok {
				return figerr.Config(path, 0, "profile %q references unknown remote %q", p.Name, p.Remote)
			}
		}
	}
	return nil
}

func resolveProfile(ws *Workspace, path, name string, dto profileDTO) (*Profile, error) {
	baseName := dto.Extends
	if baseName == "" {
		// A profile named after a built-in overrides that built-in's fields.
		if !IsBuiltinProfile(name) {
			return nil, figerr.Config(path, 0,
				"profile %q must extend one of the built-in profiles", name)
		}
		baseName = name
	}
	base, ok := builtinProfiles()[baseName]
	if !ok {
		return nil, figerr.Config(path, 0,
			"profile %q extends %q which is not a built-in profile (chained extends is not supported)", name, baseName)
	}

	p := base.clone()
	p.Name = name
	p.Remote = dto.Remote
	if dto.Scale != nil {
		if *dto.Scale < 0.01 || *dto.Scale > 4.0 {
			return nil, figerr.Config(path, 0, "profile %q: scale must be within 0.01..4", name)
		}
		p.Scale = *dto.Scale
	}
	if dto.Quality != nil {
		if *dto.Quality < 1 || *dto.Quality > 100 {
			return nil, figerr.Config(path, 0, "profile %q: quality must be within 1..100", name)
		}
		p.Quality = *dto.Quality
	}
	if dto.OutputDir != nil {
		p.OutputDir = *dto.OutputDir
	}
	if dto.SrcDir != nil {
		p.SrcDir = *dto.SrcDir
	}
	if dto.Package != nil {
		p.Package = *dto.Package
	}
	if dto.KotlinExplicitAPI != nil {
		p.KotlinExplicitAPI = *dto.KotlinExplicitAPI
	}
	if dto.ExtensionTarget != nil {
		p.ExtensionTarget = *dto.ExtensionTarget
	}
	if dto.FileSuppressLint != nil {
		p.FileSuppressLint = append([]string(nil), dto.FileSuppressLint...)
		sort.Strings(p.FileSuppressLint)
	}
	if dto.ComposableGet != nil {
		p.ComposableGet = *dto.ComposableGet
	}
	for _, m := range dto.ColorMappings {
		p.ColorMappings = append(p.ColorMappings, ColorMapping(m))
	}
	if dto.Preview != nil {
		p.Preview = &Preview{Imports: dto.Preview.Imports, Code: dto.Preview.Code}
	}
	if dto.AndroidResDir != nil {
		p.AndroidResDir = *dto.AndroidResDir
	}
	if dto.Densities != nil {
		p.Densities = nil
		for _, d := range dto.Densities {
			density := Density(d)
			if density.Scale() == 0 {
				return nil, figerr.Config(path, 0, "profile %q: unknown density %q", name, d)
			}
			p.Densities = append(p.Densities, density)
		}
	}
	if dto.Night != nil {
		p.Night = *dto.Night
	}
	if dto.LegacyLoader != nil {
		p.LegacyLoader = *dto.LegacyLoader
	}
	if dto.Variants != nil || dto.VariantNaming != nil {
		v := &VariantSpec{LocalName: "{base}{variant}", FigmaName: "{base} / {variant}"}
		if p.Variants != nil {
			v = p.Variants
		}
		if dto.VariantNaming != nil {
			if dto.VariantNaming.LocalName != "" {
				v.LocalName = dto.VariantNaming.LocalName
			}
			if dto.VariantNaming.FigmaName != "" {
				v.FigmaName = dto.VariantNaming.FigmaName
			}
		}
		if dto.Variants != nil {
			v.List = append([]string(nil), dto.Variants...)
		}
		p.Variants = v
	}
	return p, nil
}

// endregion: .figtree.yaml

// region: .fig.yaml

// parseFigFile walks the document node by hand so every resource keeps the
// line it was declared on; NotFound diagnostics point back here.
func parseFigFile(ws *Workspace, pkg label.Package, path string) (*PackageManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, figerr.Config(path, 0, "malformed package manifest: %v", err)
	}

	manifest := &PackageManifest{
		Package: pkg,
		Dir:     filepath.Dir(path),
		File:    path,
	}
	if len(doc.Content) == 0 {
		return manifest, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, figerr.Config(path, root.Line, "package manifest must be a mapping of profile name to resources")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		profileKey, resourcesNode := root.Content[i], root.Content[i+1]
		profile, ok := ws.Profiles[profileKey.Value]
		if !ok {
			return nil, figerr.Config(path, profileKey.Line, "unknown profile %q", profileKey.Value)
		}
		if resourcesNode.Kind != yaml.MappingNode {
			return nil, figerr.Config(path, resourcesNode.Line, "profile %q must hold a mapping of resource name to node", profileKey.Value)
		}
		for j := 0; j+1 < len(resourcesNode.Content); j += 2 {
			nameNode, specNode := resourcesNode.Content[j], resourcesNode.Content[j+1]
			res, err := parseResource(pkg, path, profile, nameNode, specNode)
			if err != nil {
				return nil, err
			}
			manifest.Resources = append(manifest.Resources, res)
		}
	}
	return manifest, nil
}

func parseResource(pkg label.Package, path string, profile *Profile, nameNode, specNode *yaml.Node) (*Resource, error) {
	lbl, err := label.New(string(pkg), nameNode.Value)
	if err != nil {
		return nil, figerr.Config(path, nameNode.Line, "%v", err)
	}
	res := &Resource{
		Label:   lbl,
		Profile: profile,
		File:    path,
		Line:    nameNode.Line,
	}
	switch specNode.Kind {
	case yaml.ScalarNode:
		res.NodeName = specNode.Value
	case yaml.MappingNode:
		var spec struct {
			Name      string   `yaml:"name"`
			Variants  []string `yaml:"variants"`
			Scale     float64  `yaml:"scale"`
			OutputDir string   `yaml:"output_dir"`
		}
		if err := specNode.Decode(&spec); err != nil {
			return nil, figerr.Config(path, specNode.Line, "resource %q: %v", nameNode.Value, err)
		}
		res.NodeName = spec.Name
		res.Variants = spec.Variants
		res.Scale = spec.Scale
		res.OutputDir = spec.OutputDir
	default:
		return nil, figerr.Config(path, specNode.Line, "resource %q must be a node name or a mapping", nameNode.Value)
	}
	if res.NodeName == "" {
		res.NodeName = nameNode.Value
	}
	if res.Variants != nil && profile.Variants == nil {
		return nil, figerr.Config(path, specNode.Line,
			"resource %q selects variants but profile %q declares none", nameNode.Value, profile.Name)
	}
	return res, nil
}

// endregion: .fig.yaml
