package transform

import (
	"bytes"
	"testing"
)

func renderedPng(t *testing.T) []byte {
	t.Helper()
	data, err := RenderRasterFromSvg([]byte(squareSvg), 1.0)
	if err != nil {
		t.Fatalf("render fixture: %v", err)
	}
	return data
}

func TestWebpEncodeProducesRiffContainer(t *testing.T) {
	t.Parallel()

	data, err := TransformRasterToWebp(renderedPng(t), 80)
	if err != nil {
		t.Fatalf("TransformRasterToWebp: %v", err)
	}
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Fatalf("output is not a webp container: % x", data[:min(16, len(data))])
	}
}

func TestWebpQuality100SelectsLossless(t *testing.T) {
	t.Parallel()

	lossless, err := TransformRasterToWebp(renderedPng(t), 100)
	if err != nil {
		t.Fatal(err)
	}
	lossy, err := TransformRasterToWebp(renderedPng(t), 50)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(lossless, lossy) {
		t.Error("quality 100 and 50 produced identical bytes")
	}
	// Lossless streams carry the VP8L chunk.
	if !bytes.Contains(lossless[:min(64, len(lossless))], []byte("VP8L")) {
		t.Errorf("quality 100 did not select lossless: % x", lossless[:min(32, len(lossless))])
	}
}

func TestWebpRejectsInvalidQuality(t *testing.T) {
	t.Parallel()

	for _, q := range []int{0, -5, 101} {
		if _, err := TransformRasterToWebp(renderedPng(t), q); err == nil {
			t.Errorf("quality %d accepted", q)
		}
	}
}

func TestWebpRejectsNonPngInput(t *testing.T) {
	t.Parallel()

	if _, err := TransformRasterToWebp([]byte("garbage"), 80); err == nil {
		t.Error("expected error for non-png input")
	}
}
