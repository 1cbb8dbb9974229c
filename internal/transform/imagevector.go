package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ColorMappingSpec substitutes a concrete color with a theme expression in
// generated code. From is a #RRGGBB literal or "*" for any color.
type ColorMappingSpec struct {
	From    string
	To      string
	Imports []string
}

// PreviewSpec replaces the default generated preview composable.
type PreviewSpec struct {
	Imports []string
	Code    string
}

// ImageVectorOptions parameterize the Kotlin code generator.
type ImageVectorOptions struct {
	// Name is the resource name; the generated identifier derives from it.
	Name              string
	Package           string
	KotlinExplicitAPI bool
	ExtensionTarget   string
	FileSuppressLint  []string
	ComposableGet     bool
	ColorMappings     []ColorMappingSpec
	Preview           *PreviewSpec
}

// TransformSvgToImageVector compiles a canonical SVG into a Kotlin file
// declaring a lazily-built ImageVector. Identifier names derive from the
// resource name only, so output is deterministic.
func TransformSvgToImageVector(svg []byte, opts ImageVectorOptions) ([]byte, error) {
	vector, err := ParseVector(svg)
	if err != nil {
		return nil, err
	}

	g := &kotlinGen{opts: opts}
	g.addImport("androidx.compose.ui.graphics.vector.ImageVector")
	g.addImport("androidx.compose.ui.unit.dp")
	if opts.ComposableGet {
		g.addImport("androidx.compose.runtime.Composable")
	}

	name := identifier(opts.Name)
	propertyName := name
	if opts.ExtensionTarget != "" {
		simple := opts.ExtensionTarget
		if i := strings.LastIndex(simple, "."); i >= 0 {
			simple = simple[i+1:]
			g.addImport(opts.ExtensionTarget)
		}
		propertyName = simple + "." + name
	}

	builder := g.renderBuilder(name, vector)

	var b strings.Builder
	if len(opts.FileSuppressLint) > 0 {
		quoted := make([]string, 0, len(opts.FileSuppressLint))
		sorted := append([]string(nil), opts.FileSuppressLint...)
		sort.Strings(sorted)
		for _, s := range sorted {
			quoted = append(quoted, strconv.Quote(s))
		}
		fmt.Fprintf(&b, "@file:Suppress(%s)\n\n", strings.Join(quoted, ", "))
	}
	if opts.Package != "" {
		fmt.Fprintf(&b, "package %s\n\n", opts.Package)
	}

	preview := g.renderPreview(name, propertyName)

	imports := make([]string, 0, len(g.imports))
	for imp := range g.imports {
		imports = append(imports, imp)
	}
	sort.Strings(imports)
	for _, imp := range imports {
		fmt.Fprintf(&b, "import %s\n", imp)
	}
	b.WriteString("\n")

	visibility := ""
	if opts.KotlinExplicitAPI {
		visibility = "public "
	}
	getter := "get()"
	if opts.ComposableGet {
		getter = "@Composable get()"
	}

	fmt.Fprintf(&b, "%sval %s: ImageVector\n", visibility, propertyName)
	fmt.Fprintf(&b, "    %s {\n", getter)
	fmt.Fprintf(&b, "        if (_%s != null) {\n", name)
	fmt.Fprintf(&b, "            return _%s!!\n", name)
	fmt.Fprintf(&b, "        }\n")
	fmt.Fprintf(&b, "        _%s = %s\n", name, strings.TrimPrefix(indentBlock(builder, "        "), "        "))
	fmt.Fprintf(&b, "        return _%s!!\n", name)
	fmt.Fprintf(&b, "    }\n\n")

	fmt.Fprintf(&b, "@Suppress(\"ObjectPropertyName\")\n")
	fmt.Fprintf(&b, "private var _%s: ImageVector? = null\n", name)

	if preview != "" {
		b.WriteString("\n")
		b.WriteString(preview)
	}
	return []byte(b.String()), nil
}

type kotlinGen struct {
	opts    ImageVectorOptions
	imports map[string]struct{}
}

func (g *kotlinGen) addImport(imp string) {
	if g.imports == nil {
		g.imports = make(map[string]struct{})
	}
	g.imports[imp] = struct{}{}
}

func (g *kotlinGen) renderBuilder(name string, v *Vector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ImageVector.Builder(\n")
	fmt.Fprintf(&b, "    name = %q,\n", name)
	fmt.Fprintf(&b, "    defaultWidth = %s.dp,\n", ktNum(v.Width))
	fmt.Fprintf(&b, "    defaultHeight = %s.dp,\n", ktNum(v.Height))
	fmt.Fprintf(&b, "    viewportWidth = %sf,\n", ktNum(v.ViewportWidth))
	fmt.Fprintf(&b, "    viewportHeight = %sf,\n", ktNum(v.ViewportHeight))
	fmt.Fprintf(&b, ").apply {\n")
	for _, node := range v.Nodes {
		b.WriteString(indentBlock(g.renderNode(node), "    "))
	}
	fmt.Fprintf(&b, "}.build()")
	return b.String()
}

func (g *kotlinGen) renderNode(node VectorNode) string {
	switch n := node.(type) {
	case *VectorGroup:
		return g.renderGroup(n)
	case *VectorPath:
		return g.renderPath(n)
	default:
		return ""
	}
}

func (g *kotlinGen) renderGroup(n *VectorGroup) string {
	g.addImport("androidx.compose.ui.graphics.vector.group")
	var b strings.Builder
	groupName := "null"
	if n.Name != "" {
		groupName = strconv.Quote(n.Name)
	}
	fmt.Fprintf(&b, "group(\n")
	fmt.Fprintf(&b, "    name = %s,\n", groupName)
	fmt.Fprintf(&b, "    rotate = %sf,\n", ktNum(n.Rotate))
	fmt.Fprintf(&b, "    pivotX = %sf,\n", ktNum(n.PivotX))
	fmt.Fprintf(&b, "    pivotY = %sf,\n", ktNum(n.PivotY))
	fmt.Fprintf(&b, "    scaleX = %sf,\n", ktNum(n.ScaleX))
	fmt.Fprintf(&b, "    scaleY = %sf,\n", ktNum(n.ScaleY))
	fmt.Fprintf(&b, "    translationX = %sf,\n", ktNum(n.TranslateX))
	fmt.Fprintf(&b, "    translationY = %sf,\n", ktNum(n.TranslateY))
	fmt.Fprintf(&b, "    clipPathData = emptyList(),\n")
	fmt.Fprintf(&b, ") {\n")
	for _, child := range n.Nodes {
		b.WriteString(indentBlock(g.renderNode(child), "    "))
	}
	fmt.Fprintf(&b, "}\n")
	return b.String()
}

func (g *kotlinGen) renderPath(n *VectorPath) string {
	g.addImport("androidx.compose.ui.graphics.vector.path")
	var b strings.Builder
	fmt.Fprintf(&b, "path(\n")
	if n.Fill != nil {
		fmt.Fprintf(&b, "    fill = %s,\n", g.colorExpr(*n.Fill))
	}
	if n.FillAlpha != 1 {
		fmt.Fprintf(&b, "    fillAlpha = %sf,\n", ktNum(n.FillAlpha))
	}
	if n.Stroke != nil {
		fmt.Fprintf(&b, "    stroke = %s,\n", g.colorExpr(*n.Stroke))
		if n.StrokeAlpha != 1 {
			fmt.Fprintf(&b, "    strokeAlpha = %sf,\n", ktNum(n.StrokeAlpha))
		}
		if n.StrokeWidth != 0 {
			fmt.Fprintf(&b, "    strokeLineWidth = %sf,\n", ktNum(n.StrokeWidth))
		}
		if capExpr := strokeCapExpr(n.StrokeCap); capExpr != "" {
			g.addImport("androidx.compose.ui.graphics.StrokeCap")
			fmt.Fprintf(&b, "    strokeLineCap = %s,\n", capExpr)
		}
		if join := strokeJoinExpr(n.StrokeJoin); join != "" {
			g.addImport("androidx.compose.ui.graphics.StrokeJoin")
			fmt.Fprintf(&b, "    strokeLineJoin = %s,\n", join)
		}
		if n.StrokeMiter != 4 {
			fmt.Fprintf(&b, "    strokeLineMiter = %sf,\n", ktNum(n.StrokeMiter))
		}
	}
	if n.EvenOdd {
		g.addImport("androidx.compose.ui.graphics.PathFillType")
		fmt.Fprintf(&b, "    pathFillType = PathFillType.EvenOdd,\n")
	}
	fmt.Fprintf(&b, ") {\n")
	for _, cmd := range n.Commands {
		fmt.Fprintf(&b, "    %s\n", commandExpr(cmd))
	}
	fmt.Fprintf(&b, "}\n")
	return b.String()
}

func (g *kotlinGen) colorExpr(c Color) string {
	hex := c.HexRGB()
	for _, m := range g.opts.ColorMappings {
		if strings.EqualFold(m.From, hex) || m.From == "*" {
			for _, imp := range m.Imports {
				g.addImport(imp)
			}
			return fmt.Sprintf("SolidColor(%s)", m.To)
		}
	}
	g.addImport("androidx.compose.ui.graphics.Color")
	g.addImport("androidx.compose.ui.graphics.SolidColor")
	return fmt.Sprintf("SolidColor(Color(0x%08X))", c.ARGB())
}

func (g *kotlinGen) renderPreview(name, propertyName string) string {
	if g.opts.Preview != nil {
		for _, imp := range g.opts.Preview.Imports {
			g.addImport(imp)
		}
		return strings.ReplaceAll(g.opts.Preview.Code, "{name}", name) + "\n"
	}
	g.addImport("androidx.compose.material3.Icon")
	g.addImport("androidx.compose.runtime.Composable")
	g.addImport("androidx.compose.ui.tooling.preview.Preview")
	var b strings.Builder
	fmt.Fprintf(&b, "@Preview(showBackground = true)\n")
	fmt.Fprintf(&b, "@Composable\n")
	fmt.Fprintf(&b, "private fun %sPreview() {\n", name)
	fmt.Fprintf(&b, "    Icon(\n")
	fmt.Fprintf(&b, "        imageVector = %s,\n", propertyName)
	fmt.Fprintf(&b, "        contentDescription = null,\n")
	fmt.Fprintf(&b, "    )\n")
	fmt.Fprintf(&b, "}\n")
	return b.String()
}

func commandExpr(cmd PathCommand) string {
	switch cmd.Op {
	case 'M':
		return fmt.Sprintf("moveTo(%sf, %sf)", ktNum(cmd.Points[0].X), ktNum(cmd.Points[0].Y))
	case 'L':
		return fmt.Sprintf("lineTo(%sf, %sf)", ktNum(cmd.Points[0].X), ktNum(cmd.Points[0].Y))
	case 'C':
		return fmt.Sprintf("curveTo(%sf, %sf, %sf, %sf, %sf, %sf)",
			ktNum(cmd.Points[0].X), ktNum(cmd.Points[0].Y),
			ktNum(cmd.Points[1].X), ktNum(cmd.Points[1].Y),
			ktNum(cmd.Points[2].X), ktNum(cmd.Points[2].Y))
	case 'Q':
		return fmt.Sprintf("quadTo(%sf, %sf, %sf, %sf)",
			ktNum(cmd.Points[0].X), ktNum(cmd.Points[0].Y),
			ktNum(cmd.Points[1].X), ktNum(cmd.Points[1].Y))
	case 'Z':
		return "close()"
	default:
		return ""
	}
}

func strokeCapExpr(cap string) string {
	switch cap {
	case "round":
		return "StrokeCap.Round"
	case "square":
		return "StrokeCap.Square"
	default:
		return "" // butt is the Compose default
	}
}

func strokeJoinExpr(join string) string {
	switch join {
	case "round":
		return "StrokeJoin.Round"
	case "bevel":
		return "StrokeJoin.Bevel"
	default:
		return "" // miter is the Compose default
	}
}

// identifier derives a deterministic Kotlin identifier from a resource
// name: non-alphanumeric runs become word boundaries, words are
// capitalized.
func identifier(name string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			if upperNext && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upperNext = false
		case r >= '0' && r <= '9':
			if b.Len() == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			upperNext = true
		default:
			upperNext = true
		}
	}
	if b.Len() == 0 {
		return "Icon"
	}
	return b.String()
}

// ktNum formats a float the shortest way that round-trips, with Kotlin's
// mandatory fractional digit.
func ktNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func indentBlock(block, prefix string) string {
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
