package transform

import (
	"math"
	"testing"
)

func TestParsePathBasicCommands(t *testing.T) {
	t.Parallel()

	cmds, err := ParsePath("M1 2 L3 4 C5 6 7 8 9 10 Q11 12 13 14 Z")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	ops := make([]byte, 0, len(cmds))
	for _, c := range cmds {
		ops = append(ops, c.Op)
	}
	if string(ops) != "MLCQZ" {
		t.Fatalf("ops = %s", ops)
	}
	if cmds[2].Points[2] != (Point{9, 10}) {
		t.Errorf("curve endpoint = %v", cmds[2].Points[2])
	}
}

func TestParsePathRelativeCommands(t *testing.T) {
	t.Parallel()

	cmds, err := ParsePath("m10 10 l5 0 l0 5 z")
	if err != nil {
		t.Fatal(err)
	}
	if cmds[1].Points[0] != (Point{15, 10}) {
		t.Errorf("relative lineto = %v", cmds[1].Points[0])
	}
	if cmds[2].Points[0] != (Point{15, 15}) {
		t.Errorf("second relative lineto = %v", cmds[2].Points[0])
	}
}

func TestParsePathHorizontalVerticalFoldIntoLineTo(t *testing.T) {
	t.Parallel()

	cmds, err := ParsePath("M0 0 H10 V20 h-5 v-5")
	if err != nil {
		t.Fatal(err)
	}
	want := []Point{{10, 0}, {10, 20}, {5, 20}, {5, 15}}
	for i, w := range want {
		c := cmds[i+1]
		if c.Op != 'L' || c.Points[0] != w {
			t.Errorf("cmd %d = %c %v, want L %v", i+1, c.Op, c.Points[0], w)
		}
	}
}

func TestParsePathSmoothCurveReflection(t *testing.T) {
	t.Parallel()

	cmds, err := ParsePath("M0 0 C0 10 10 10 10 0 S20 -10 20 0")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 3 || cmds[2].Op != 'C' {
		t.Fatalf("cmds = %#v", cmds)
	}
	// The first control point reflects (10,10) around (10,0).
	if cmds[2].Points[0] != (Point{10, -10}) {
		t.Errorf("reflected control = %v", cmds[2].Points[0])
	}
}

func TestParsePathImplicitLineToAfterMove(t *testing.T) {
	t.Parallel()

	cmds, err := ParsePath("M0 0 10 10 20 20")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 3 || cmds[1].Op != 'L' || cmds[2].Op != 'L' {
		t.Fatalf("cmds = %#v", cmds)
	}
}

func TestParsePathArcBecomesCubics(t *testing.T) {
	t.Parallel()

	cmds, err := ParsePath("M0 0 A10 10 0 0 1 20 0")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) < 2 {
		t.Fatalf("cmds = %#v", cmds)
	}
	last := cmds[len(cmds)-1]
	if last.Op != 'C' {
		t.Fatalf("arc did not convert to curves: %#v", cmds)
	}
	end := last.Points[2]
	if math.Abs(end.X-20) > 1e-9 || math.Abs(end.Y) > 1e-9 {
		t.Errorf("arc endpoint = %v, want (20,0)", end)
	}
	for _, c := range cmds[1:] {
		if c.Op != 'C' {
			t.Errorf("unexpected op %c in arc conversion", c.Op)
		}
	}
}

func TestParsePathZeroRadiusArcIsLine(t *testing.T) {
	t.Parallel()

	cmds, err := ParsePath("M0 0 A0 0 0 0 1 5 5")
	if err != nil {
		t.Fatal(err)
	}
	if cmds[1].Op != 'L' || cmds[1].Points[0] != (Point{5, 5}) {
		t.Errorf("degenerate arc = %#v", cmds[1])
	}
}

func TestParsePathCompactNumbers(t *testing.T) {
	t.Parallel()

	// Negative signs act as separators, as do glued arc flags.
	cmds, err := ParsePath("M1.5-2.5l-1-1")
	if err != nil {
		t.Fatal(err)
	}
	if cmds[0].Points[0] != (Point{1.5, -2.5}) {
		t.Errorf("move = %v", cmds[0].Points[0])
	}
	if cmds[1].Points[0] != (Point{0.5, -3.5}) {
		t.Errorf("line = %v", cmds[1].Points[0])
	}
}

func TestParsePathRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"X1 2", "M1", "M 1 2 L", "M0 0 A10 10 0 7 1 20 0"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("ParsePath(%q): expected error", bad)
		}
	}
}
