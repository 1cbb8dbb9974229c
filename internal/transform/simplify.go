// Package transform holds the pure per-format transforms of the pipeline:
// SVG canonicalization, CPU rasterization, WebP encoding, and the two
// vector code generators. Every function is deterministic over its inputs,
// which the caching model depends on.
package transform

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Elements that carry no graphic meaning and are dropped during
// canonicalization.
var droppedElements = map[string]struct{}{
	"title":    {},
	"desc":     {},
	"metadata": {},
}

// SimplifySvg normalizes an SVG document to a canonical subset: comments,
// processing instructions and descriptive elements are dropped, style=""
// declarations are inlined as presentation attributes, attributes are
// sorted, and the output is minified. The function is idempotent, so
// fingerprint chains through it stay stable.
func SimplifySvg(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out bytes.Buffer
	depth := 0
	skipDepth := -1

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("simplify svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if skipDepth >= 0 {
				continue
			}
			if _, drop := droppedElements[t.Name.Local]; drop {
				skipDepth = depth
				continue
			}
			writeStartElement(&out, t)
		case xml.EndElement:
			if skipDepth >= 0 {
				if depth == skipDepth {
					skipDepth = -1
				}
				depth--
				continue
			}
			depth--
			fmt.Fprintf(&out, "</%s>", qualifiedName(t.Name))
		case xml.CharData:
			if skipDepth >= 0 {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text != "" {
				_ = xml.EscapeText(&out, []byte(text))
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
			// Dropped: none of these affect rendering.
		}
	}
	return out.Bytes(), nil
}

func writeStartElement(out *bytes.Buffer, t xml.StartElement) {
	attrs := make(map[string]string, len(t.Attr))
	for _, a := range t.Attr {
		name := attrQualifiedName(a.Name)
		if name == "style" {
			for k, v := range parseStyle(a.Value) {
				// Presentation attributes win over style declarations only
				// if already present; otherwise the declaration is inlined.
				if _, exists := attrs[k]; !exists {
					attrs[k] = v
				}
			}
			continue
		}
		attrs[name] = normalizeAttrValue(name, a.Value)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "<%s", qualifiedName(t.Name))
	for _, name := range names {
		fmt.Fprintf(out, ` %s="`, name)
		_ = xml.EscapeText(out, []byte(attrs[name]))
		out.WriteByte('"')
	}
	out.WriteByte('>')
}

// parseStyle splits a CSS style attribute into property pairs.
func parseStyle(style string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// normalizeAttrValue collapses whitespace runs in geometry-bearing
// attributes so that formatting differences do not leak into fingerprints.
func normalizeAttrValue(name, value string) string {
	switch name {
	case "d", "points", "viewBox", "transform":
		return strings.Join(strings.Fields(value), " ")
	default:
		return strings.TrimSpace(value)
	}
}

// qualifiedName restores the original spelling: RawToken keeps namespace
// prefixes unresolved in Name.Space.
func qualifiedName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

func attrQualifiedName(n xml.Name) string {
	return qualifiedName(n)
}
