package transform

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Vector is the shared in-memory form both code generators compile from.
// It is produced from a canonical (simplified) SVG document.
type Vector struct {
	Width          float64
	Height         float64
	ViewportWidth  float64
	ViewportHeight float64
	Nodes          []VectorNode
}

// VectorNode is either *VectorGroup or *VectorPath.
type VectorNode interface{ isVectorNode() }

type VectorGroup struct {
	Name        string
	Rotate      float64
	PivotX      float64
	PivotY      float64
	ScaleX      float64
	ScaleY      float64
	TranslateX  float64
	TranslateY  float64
	Nodes       []VectorNode
}

type VectorPath struct {
	Commands    []PathCommand
	Fill        *Color
	FillAlpha   float64
	EvenOdd     bool
	Stroke      *Color
	StrokeAlpha float64
	StrokeWidth float64
	StrokeCap   string // butt, round, square
	StrokeJoin  string // miter, round, bevel
	StrokeMiter float64
}

func (*VectorGroup) isVectorNode() {}
func (*VectorPath) isVectorNode()  {}

type svgElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Children []svgElement `xml:",any"`
}

func (e *svgElement) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ParseVector compiles a canonical SVG document into the shared vector
// model. Unsupported features (gradients, masks, embedded images) are
// transform errors: the caller reports them against the offending step.
func ParseVector(svg []byte) (*Vector, error) {
	var root svgElement
	if err := xml.Unmarshal(svg, &root); err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if root.XMLName.Local != "svg" {
		return nil, fmt.Errorf("not an svg document: <%s>", root.XMLName.Local)
	}

	v := &Vector{}
	if vb := root.attr("viewBox"); vb != "" {
		fields := strings.Fields(strings.ReplaceAll(vb, ",", " "))
		if len(fields) != 4 {
			return nil, fmt.Errorf("invalid viewBox %q", vb)
		}
		w, err1 := strconv.ParseFloat(fields[2], 64)
		h, err2 := strconv.ParseFloat(fields[3], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid viewBox %q", vb)
		}
		v.ViewportWidth, v.ViewportHeight = w, h
	}
	v.Width = sizeAttr(root.attr("width"), v.ViewportWidth)
	v.Height = sizeAttr(root.attr("height"), v.ViewportHeight)
	if v.ViewportWidth == 0 {
		v.ViewportWidth = v.Width
	}
	if v.ViewportHeight == 0 {
		v.ViewportHeight = v.Height
	}
	if v.Width == 0 || v.Height == 0 {
		return nil, fmt.Errorf("svg document has no usable dimensions")
	}

	inherited := pathStyle{FillAlpha: 1, StrokeAlpha: 1, StrokeWidth: 1, StrokeMiter: 4, StrokeCap: "butt", StrokeJoin: "miter"}
	fill := Color{0, 0, 0, 0xff}
	inherited.Fill = &fill

	nodes, err := parseChildren(root.Children, inherited)
	if err != nil {
		return nil, err
	}
	v.Nodes = nodes
	return v, nil
}

func sizeAttr(s string, fallback float64) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

// pathStyle carries inheritable presentation attributes down the tree.
type pathStyle struct {
	Fill        *Color
	FillAlpha   float64
	EvenOdd     bool
	Stroke      *Color
	StrokeAlpha float64
	StrokeWidth float64
	StrokeCap   string
	StrokeJoin  string
	StrokeMiter float64
}

func parseChildren(children []svgElement, style pathStyle) ([]VectorNode, error) {
	var out []VectorNode
	for i := range children {
		child := &children[i]
		switch child.XMLName.Local {
		case "g":
			node, err := parseGroup(child, style)
			if err != nil {
				return nil, err
			}
			out = append(out, node)
		case "path":
			node, err := parsePathElement(child, style)
			if err != nil {
				return nil, err
			}
			if node != nil {
				out = append(out, node)
			}
		case "defs", "clipPath":
			// No reference resolution: canonical documents from the remote
			// carry geometry inline.
			continue
		case "mask", "image", "linearGradient", "radialGradient", "pattern", "use", "text":
			return nil, fmt.Errorf("unsupported svg feature <%s>", child.XMLName.Local)
		default:
			// Unknown wrapper: descend, inheriting style.
			nested, err := parseChildren(child.Children, style)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}

func parseGroup(e *svgElement, style pathStyle) (VectorNode, error) {
	style, err := applyStyle(e, style)
	if err != nil {
		return nil, err
	}

	g := &VectorGroup{Name: e.attr("id"), ScaleX: 1, ScaleY: 1}
	if tf := e.attr("transform"); tf != "" {
		if err := applyTransform(g, tf); err != nil {
			return nil, err
		}
	}
	nodes, err := parseChildren(e.Children, style)
	if err != nil {
		return nil, err
	}
	g.Nodes = nodes
	return g, nil
}

func applyTransform(g *VectorGroup, tf string) error {
	for _, fn := range splitTransforms(tf) {
		name, args, err := parseTransformFunc(fn)
		if err != nil {
			return err
		}
		switch name {
		case "translate":
			g.TranslateX = args[0]
			if len(args) > 1 {
				g.TranslateY = args[1]
			}
		case "scale":
			g.ScaleX = args[0]
			g.ScaleY = args[0]
			if len(args) > 1 {
				g.ScaleY = args[1]
			}
		case "rotate":
			g.Rotate = args[0]
			if len(args) == 3 {
				g.PivotX, g.PivotY = args[1], args[2]
			}
		default:
			return fmt.Errorf("unsupported transform %q", name)
		}
	}
	return nil
}

func splitTransforms(tf string) []string {
	var out []string
	for {
		i := strings.IndexByte(tf, ')')
		if i < 0 {
			break
		}
		fn := strings.TrimSpace(tf[:i+1])
		if fn != "" {
			out = append(out, fn)
		}
		tf = tf[i+1:]
	}
	return out
}

func parseTransformFunc(fn string) (string, []float64, error) {
	open := strings.IndexByte(fn, '(')
	if open < 0 || !strings.HasSuffix(fn, ")") {
		return "", nil, fmt.Errorf("invalid transform %q", fn)
	}
	name := strings.TrimSpace(fn[:open])
	argsStr := strings.ReplaceAll(fn[open+1:len(fn)-1], ",", " ")
	var args []float64
	for _, f := range strings.Fields(argsStr) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid transform argument %q", f)
		}
		args = append(args, v)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("transform %q has no arguments", name)
	}
	return name, args, nil
}

func parsePathElement(e *svgElement, style pathStyle) (VectorNode, error) {
	style, err := applyStyle(e, style)
	if err != nil {
		return nil, err
	}
	d := e.attr("d")
	if d == "" {
		return nil, nil
	}
	commands, err := ParsePath(d)
	if err != nil {
		return nil, err
	}
	return &VectorPath{
		Commands:    commands,
		Fill:        style.Fill,
		FillAlpha:   style.FillAlpha,
		EvenOdd:     style.EvenOdd,
		Stroke:      style.Stroke,
		StrokeAlpha: style.StrokeAlpha,
		StrokeWidth: style.StrokeWidth,
		StrokeCap:   style.StrokeCap,
		StrokeJoin:  style.StrokeJoin,
		StrokeMiter: style.StrokeMiter,
	}, nil
}

func applyStyle(e *svgElement, style pathStyle) (pathStyle, error) {
	if v := e.attr("fill"); v != "" {
		c, ok, err := ParseColor(v)
		if err != nil {
			return style, err
		}
		if ok {
			style.Fill = &c
		} else {
			style.Fill = nil
		}
	}
	if v := e.attr("stroke"); v != "" {
		c, ok, err := ParseColor(v)
		if err != nil {
			return style, err
		}
		if ok {
			style.Stroke = &c
		} else {
			style.Stroke = nil
		}
	}
	var err error
	if style.FillAlpha, err = floatAttr(e, "fill-opacity", style.FillAlpha); err != nil {
		return style, err
	}
	if style.StrokeAlpha, err = floatAttr(e, "stroke-opacity", style.StrokeAlpha); err != nil {
		return style, err
	}
	if style.StrokeWidth, err = floatAttr(e, "stroke-width", style.StrokeWidth); err != nil {
		return style, err
	}
	if style.StrokeMiter, err = floatAttr(e, "stroke-miterlimit", style.StrokeMiter); err != nil {
		return style, err
	}
	if opacity, err := floatAttr(e, "opacity", 1); err != nil {
		return style, err
	} else if opacity != 1 {
		style.FillAlpha *= opacity
		style.StrokeAlpha *= opacity
	}
	if v := e.attr("fill-rule"); v != "" {
		style.EvenOdd = v == "evenodd"
	}
	if v := e.attr("stroke-linecap"); v != "" {
		style.StrokeCap = v
	}
	if v := e.attr("stroke-linejoin"); v != "" {
		style.StrokeJoin = v
	}
	return style, nil
}

func floatAttr(e *svgElement, name string, fallback float64) (float64, error) {
	v := e.attr(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return f, nil
}
