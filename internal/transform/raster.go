package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// RenderRasterFromSvg rasterizes a simplified SVG at the given scale into
// a premultiplied RGBA framebuffer and PNG-encodes it. The renderer is
// CPU-only; identical inputs produce byte-identical PNGs on every host.
func RenderRasterFromSvg(svg []byte, scale float64) ([]byte, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("render raster: invalid scale %v", scale)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("render raster: %w", err)
	}

	vb := icon.ViewBox
	if vb.W <= 0 || vb.H <= 0 {
		return nil, fmt.Errorf("render raster: svg has no usable viewBox")
	}
	w := int(math.Ceil(vb.W * scale))
	h := int(math.Ceil(vb.H * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render raster: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
