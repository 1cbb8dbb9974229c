package transform

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
)

func TestAndroidDrawableBasicStructure(t *testing.T) {
	t.Parallel()

	out, err := TransformSvgToAndroidDrawable([]byte(puzzleSvg))
	if err != nil {
		t.Fatalf("TransformSvgToAndroidDrawable: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		`<vector xmlns:android="http://schemas.android.com/apk/res/android"`,
		`android:width="24.0dp"`,
		`android:height="24.0dp"`,
		`android:viewportWidth="24.0"`,
		`android:viewportHeight="24.0"`,
		`android:fillColor="#FFFF0000"`,
		`android:pathData="M2,2L22,2L22,22Z"`,
		`<group`,
		`android:translateX="1.0"`,
		`android:scaleX="2.0"`,
		`android:strokeColor="#FF00FF00"`,
		`android:strokeWidth="2.0"`,
		`android:strokeLineCap="round"`,
		`</vector>`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestAndroidDrawableIsWellFormedXML(t *testing.T) {
	t.Parallel()

	out, err := TransformSvgToAndroidDrawable([]byte(puzzleSvg))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		XMLName xml.Name `xml:"vector"`
	}
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not well-formed XML: %v\n%s", err, out)
	}
}

func TestAndroidDrawableEvenOddFillType(t *testing.T) {
	t.Parallel()

	svg := `<svg viewBox="0 0 10 10" width="10" height="10"><path fill-rule="evenodd" d="M0 0 L10 0 L10 10 Z"/></svg>`
	out, err := TransformSvgToAndroidDrawable([]byte(svg))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `android:fillType="evenOdd"`) {
		t.Errorf("fillType missing:\n%s", out)
	}
}

func TestAndroidDrawableSharesCanonicalModelWithCompose(t *testing.T) {
	t.Parallel()

	// The same simplified input must parse into the same vector model for
	// both generators; spot-check via the serialized path data.
	simplified, err := SimplifySvg([]byte(puzzleSvg))
	if err != nil {
		t.Fatal(err)
	}
	fromRaw, err := TransformSvgToAndroidDrawable([]byte(puzzleSvg))
	if err != nil {
		t.Fatal(err)
	}
	fromSimplified, err := TransformSvgToAndroidDrawable(simplified)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fromRaw, fromSimplified) {
		t.Errorf("simplification changed generator output:\n%s\nvs\n%s", fromRaw, fromSimplified)
	}
}

func TestAndroidDrawableDeterminism(t *testing.T) {
	t.Parallel()

	a, _ := TransformSvgToAndroidDrawable([]byte(puzzleSvg))
	b, _ := TransformSvgToAndroidDrawable([]byte(puzzleSvg))
	if !bytes.Equal(a, b) {
		t.Error("generator output differs across runs")
	}
}
