package transform

import (
	"fmt"
	"strings"
)

// TransformSvgToAndroidDrawable compiles a canonical SVG into an Android
// vector drawable XML document. It shares ParseVector with the Compose
// generator, so both consume the identical canonical form.
func TransformSvgToAndroidDrawable(svg []byte) ([]byte, error) {
	vector, err := ParseVector(svg)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<vector xmlns:android="http://schemas.android.com/apk/res/android"` + "\n")
	fmt.Fprintf(&b, `    android:width="%sdp"`+"\n", ktNum(vector.Width))
	fmt.Fprintf(&b, `    android:height="%sdp"`+"\n", ktNum(vector.Height))
	fmt.Fprintf(&b, `    android:viewportWidth="%s"`+"\n", ktNum(vector.ViewportWidth))
	fmt.Fprintf(&b, `    android:viewportHeight="%s">`+"\n", ktNum(vector.ViewportHeight))
	for _, node := range vector.Nodes {
		writeDrawableNode(&b, node, "    ")
	}
	b.WriteString("</vector>\n")
	return []byte(b.String()), nil
}

func writeDrawableNode(b *strings.Builder, node VectorNode, indent string) {
	switch n := node.(type) {
	case *VectorGroup:
		writeDrawableGroup(b, n, indent)
	case *VectorPath:
		writeDrawablePath(b, n, indent)
	}
}

func writeDrawableGroup(b *strings.Builder, g *VectorGroup, indent string) {
	fmt.Fprintf(b, "%s<group", indent)
	if g.Name != "" {
		fmt.Fprintf(b, "\n%s    android:name=%q", indent, g.Name)
	}
	if g.Rotate != 0 {
		fmt.Fprintf(b, "\n%s    android:rotation=\"%s\"", indent, ktNum(g.Rotate))
	}
	if g.PivotX != 0 || g.PivotY != 0 {
		fmt.Fprintf(b, "\n%s    android:pivotX=\"%s\"", indent, ktNum(g.PivotX))
		fmt.Fprintf(b, "\n%s    android:pivotY=\"%s\"", indent, ktNum(g.PivotY))
	}
	if g.ScaleX != 1 || g.ScaleY != 1 {
		fmt.Fprintf(b, "\n%s    android:scaleX=\"%s\"", indent, ktNum(g.ScaleX))
		fmt.Fprintf(b, "\n%s    android:scaleY=\"%s\"", indent, ktNum(g.ScaleY))
	}
	if g.TranslateX != 0 || g.TranslateY != 0 {
		fmt.Fprintf(b, "\n%s    android:translateX=\"%s\"", indent, ktNum(g.TranslateX))
		fmt.Fprintf(b, "\n%s    android:translateY=\"%s\"", indent, ktNum(g.TranslateY))
	}
	b.WriteString(">\n")
	for _, child := range g.Nodes {
		writeDrawableNode(b, child, indent+"    ")
	}
	fmt.Fprintf(b, "%s</group>\n", indent)
}

func writeDrawablePath(b *strings.Builder, p *VectorPath, indent string) {
	fmt.Fprintf(b, "%s<path\n", indent)
	fmt.Fprintf(b, "%s    android:pathData=%q", indent, serializePathData(p.Commands))
	if p.Fill != nil {
		fmt.Fprintf(b, "\n%s    android:fillColor=\"%s\"", indent, argbHex(*p.Fill))
		if p.FillAlpha != 1 {
			fmt.Fprintf(b, "\n%s    android:fillAlpha=\"%s\"", indent, ktNum(p.FillAlpha))
		}
	}
	if p.EvenOdd {
		fmt.Fprintf(b, "\n%s    android:fillType=\"evenOdd\"", indent)
	}
	if p.Stroke != nil {
		fmt.Fprintf(b, "\n%s    android:strokeColor=\"%s\"", indent, argbHex(*p.Stroke))
		fmt.Fprintf(b, "\n%s    android:strokeWidth=\"%s\"", indent, ktNum(p.StrokeWidth))
		if p.StrokeAlpha != 1 {
			fmt.Fprintf(b, "\n%s    android:strokeAlpha=\"%s\"", indent, ktNum(p.StrokeAlpha))
		}
		if p.StrokeCap != "butt" && p.StrokeCap != "" {
			fmt.Fprintf(b, "\n%s    android:strokeLineCap=\"%s\"", indent, p.StrokeCap)
		}
		if p.StrokeJoin != "miter" && p.StrokeJoin != "" {
			fmt.Fprintf(b, "\n%s    android:strokeLineJoin=\"%s\"", indent, p.StrokeJoin)
		}
		if p.StrokeMiter != 4 {
			fmt.Fprintf(b, "\n%s    android:strokeMiterLimit=\"%s\"", indent, ktNum(p.StrokeMiter))
		}
	}
	b.WriteString(" />\n")
}

func serializePathData(cmds []PathCommand) string {
	var b strings.Builder
	for _, cmd := range cmds {
		b.WriteByte(cmd.Op)
		for i, pt := range cmd.Points {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(pathNum(pt.X))
			b.WriteByte(',')
			b.WriteString(pathNum(pt.Y))
		}
	}
	return b.String()
}

func pathNum(v float64) string {
	s := ktNum(v)
	return strings.TrimSuffix(s, ".0")
}

func argbHex(c Color) string {
	return fmt.Sprintf("#%08X", c.ARGB())
}
