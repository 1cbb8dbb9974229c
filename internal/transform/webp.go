package transform

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/webp"
)

// TransformRasterToWebp re-encodes PNG bytes as WebP. quality selects the
// lossy quantizer from 1 to 99; 100 selects lossless mode.
func TransformRasterToWebp(pngBytes []byte, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("webp: quality %d out of range 1..100", quality)
	}
	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("webp: decode png: %w", err)
	}

	opts := webp.Options{
		Quality:  quality,
		Lossless: quality == 100,
		Method:   6,
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, fmt.Errorf("webp: encode: %w", err)
	}
	return buf.Bytes(), nil
}
