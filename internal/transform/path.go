package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PathCommand is one normalized path instruction. Only the absolute
// subset M/L/C/Q/Z survives parsing: H and V fold into LineTo, S and T
// into their reflected curve forms, and arcs are approximated by cubics.
// Both code generators and the drawable serializer consume this form, so
// their fingerprint prefixes agree by construction.
type PathCommand struct {
	Op     byte // 'M', 'L', 'C', 'Q', 'Z'
	Points []Point
}

type Point struct {
	X, Y float64
}

// ParsePath parses an SVG path data attribute into normalized commands.
func ParsePath(d string) ([]PathCommand, error) {
	p := &pathParser{rest: d}
	return p.parse()
}

type pathParser struct {
	rest string

	cmds    []PathCommand
	cur     Point
	start   Point
	lastOp  byte
	lastCtl Point // previous control point, for S/T reflection
}

func (p *pathParser) parse() ([]PathCommand, error) {
	for {
		p.skipSeparators()
		if p.rest == "" {
			return p.cmds, nil
		}
		op := p.rest[0]
		if !isPathOp(op) {
			return nil, fmt.Errorf("path data: expected command, got %q", op)
		}
		p.rest = p.rest[1:]
		if err := p.applyOp(op); err != nil {
			return nil, err
		}
	}
}

func isPathOp(c byte) bool {
	return strings.IndexByte("MmLlHhVvCcSsQqTtAaZz", c) >= 0
}

func (p *pathParser) applyOp(op byte) error {
	rel := op >= 'a'
	upper := op & 0xdf

	switch upper {
	case 'Z':
		p.emit('Z')
		p.cur = p.start
		p.lastOp = 'Z'
		return nil
	case 'M':
		first := true
		return p.eachArgGroup(2, func(args []float64) {
			pt := p.point(args[0], args[1], rel)
			if first {
				p.emit('M', pt)
				p.start = pt
				first = false
			} else {
				// Subsequent coordinate pairs after a moveto are implicit
				// linetos.
				p.emit('L', pt)
			}
			p.cur = pt
			p.lastOp = 'M'
		})
	case 'L':
		return p.eachArgGroup(2, func(args []float64) {
			pt := p.point(args[0], args[1], rel)
			p.emit('L', pt)
			p.cur = pt
			p.lastOp = 'L'
		})
	case 'H':
		return p.eachArgGroup(1, func(args []float64) {
			x := args[0]
			if rel {
				x += p.cur.X
			}
			pt := Point{X: x, Y: p.cur.Y}
			p.emit('L', pt)
			p.cur = pt
			p.lastOp = 'L'
		})
	case 'V':
		return p.eachArgGroup(1, func(args []float64) {
			y := args[0]
			if rel {
				y += p.cur.Y
			}
			pt := Point{X: p.cur.X, Y: y}
			p.emit('L', pt)
			p.cur = pt
			p.lastOp = 'L'
		})
	case 'C':
		return p.eachArgGroup(6, func(args []float64) {
			c1 := p.point(args[0], args[1], rel)
			c2 := p.point(args[2], args[3], rel)
			end := p.point(args[4], args[5], rel)
			p.emit('C', c1, c2, end)
			p.cur, p.lastCtl, p.lastOp = end, c2, 'C'
		})
	case 'S':
		return p.eachArgGroup(4, func(args []float64) {
			c1 := p.reflected('C')
			c2 := p.point(args[0], args[1], rel)
			end := p.point(args[2], args[3], rel)
			p.emit('C', c1, c2, end)
			p.cur, p.lastCtl, p.lastOp = end, c2, 'C'
		})
	case 'Q':
		return p.eachArgGroup(4, func(args []float64) {
			c := p.point(args[0], args[1], rel)
			end := p.point(args[2], args[3], rel)
			p.emit('Q', c, end)
			p.cur, p.lastCtl, p.lastOp = end, c, 'Q'
		})
	case 'T':
		return p.eachArgGroup(2, func(args []float64) {
			c := p.reflected('Q')
			end := p.point(args[0], args[1], rel)
			p.emit('Q', c, end)
			p.cur, p.lastCtl, p.lastOp = end, c, 'Q'
		})
	case 'A':
		return p.eachArcGroup(func(rx, ry, rot float64, large, sweep bool, end Point) {
			p.arcToCubics(rx, ry, rot, large, sweep, end)
			p.cur = end
			p.lastOp = 'L'
		}, rel)
	default:
		return fmt.Errorf("path data: unsupported command %q", op)
	}
}

func (p *pathParser) emit(op byte, pts ...Point) {
	p.cmds = append(p.cmds, PathCommand{Op: op, Points: pts})
}

func (p *pathParser) point(x, y float64, rel bool) Point {
	if rel {
		return Point{X: p.cur.X + x, Y: p.cur.Y + y}
	}
	return Point{X: x, Y: y}
}

// reflected returns the reflection of the previous control point around
// the current point, the S/T smooth-curve rule.
func (p *pathParser) reflected(prev byte) Point {
	if p.lastOp != prev {
		return p.cur
	}
	return Point{X: 2*p.cur.X - p.lastCtl.X, Y: 2*p.cur.Y - p.lastCtl.Y}
}

func (p *pathParser) eachArgGroup(n int, apply func([]float64)) error {
	args := make([]float64, n)
	groups := 0
	for {
		p.skipSeparators()
		if p.rest == "" || isPathOp(p.rest[0]) && !startsNumber(p.rest) {
			if groups == 0 {
				return fmt.Errorf("path data: command needs %d arguments", n)
			}
			return nil
		}
		for i := 0; i < n; i++ {
			v, err := p.number()
			if err != nil {
				return err
			}
			args[i] = v
		}
		apply(args)
		groups++
	}
}

func (p *pathParser) eachArcGroup(apply func(rx, ry, rot float64, large, sweep bool, end Point), rel bool) error {
	groups := 0
	for {
		p.skipSeparators()
		if p.rest == "" || isPathOp(p.rest[0]) && !startsNumber(p.rest) {
			if groups == 0 {
				return fmt.Errorf("path data: arc needs 7 arguments")
			}
			return nil
		}
		var vals [3]float64
		for i := range vals {
			v, err := p.number()
			if err != nil {
				return err
			}
			vals[i] = v
		}
		large, err := p.flag()
		if err != nil {
			return err
		}
		sweep, err := p.flag()
		if err != nil {
			return err
		}
		x, err := p.number()
		if err != nil {
			return err
		}
		y, err := p.number()
		if err != nil {
			return err
		}
		apply(vals[0], vals[1], vals[2], large, sweep, p.point(x, y, rel))
		groups++
	}
}

func startsNumber(s string) bool {
	c := s[0]
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

func (p *pathParser) skipSeparators() {
	p.rest = strings.TrimLeft(p.rest, " \t\r\n,")
}

func (p *pathParser) number() (float64, error) {
	p.skipSeparators()
	i := 0
	seenDot, seenExp := false, false
	for i < len(p.rest) {
		c := p.rest[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && !seenExp && i > 0:
			seenExp = true
		case (c == '-' || c == '+') && (i == 0 || p.rest[i-1] == 'e' || p.rest[i-1] == 'E'):
		default:
			goto done
		}
		i++
	}
done:
	if i == 0 {
		return 0, fmt.Errorf("path data: expected number near %q", clip(p.rest))
	}
	v, err := strconv.ParseFloat(p.rest[:i], 64)
	if err != nil {
		return 0, fmt.Errorf("path data: %w", err)
	}
	p.rest = p.rest[i:]
	return v, nil
}

// flag parses an arc flag, which may be glued to the next number.
func (p *pathParser) flag() (bool, error) {
	p.skipSeparators()
	if p.rest == "" {
		return false, fmt.Errorf("path data: expected arc flag")
	}
	switch p.rest[0] {
	case '0':
		p.rest = p.rest[1:]
		return false, nil
	case '1':
		p.rest = p.rest[1:]
		return true, nil
	default:
		return false, fmt.Errorf("path data: invalid arc flag %q", p.rest[0])
	}
}

func clip(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// arcToCubics converts an elliptical arc to cubic segments using the
// standard endpoint-to-center parameterization (SVG spec appendix B).
func (p *pathParser) arcToCubics(rx, ry, rotDeg float64, large, sweep bool, end Point) {
	if rx == 0 || ry == 0 {
		p.emit('L', end)
		return
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	phi := rotDeg * math.Pi / 180
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)

	dx2 := (p.cur.X - end.X) / 2
	dy2 := (p.cur.Y - end.Y) / 2
	x1p := cosPhi*dx2 + sinPhi*dy2
	y1p := -sinPhi*dx2 + cosPhi*dy2

	// Scale radii up if the endpoints cannot be joined.
	lambda := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry)
	if lambda > 1 {
		s := math.Sqrt(lambda)
		rx *= s
		ry *= s
	}

	sign := -1.0
	if large != sweep {
		sign = 1.0
	}
	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	coef := sign * math.Sqrt(math.Max(0, num/den))
	cxp := coef * rx * y1p / ry
	cyp := -coef * ry * x1p / rx

	cx := cosPhi*cxp - sinPhi*cyp + (p.cur.X+end.X)/2
	cy := sinPhi*cxp + cosPhi*cyp + (p.cur.Y+end.Y)/2

	theta1 := angle(1, 0, (x1p-cxp)/rx, (y1p-cyp)/ry)
	dTheta := angle((x1p-cxp)/rx, (y1p-cyp)/ry, (-x1p-cxp)/rx, (-y1p-cyp)/ry)
	if !sweep && dTheta > 0 {
		dTheta -= 2 * math.Pi
	}
	if sweep && dTheta < 0 {
		dTheta += 2 * math.Pi
	}

	segments := int(math.Ceil(math.Abs(dTheta) / (math.Pi / 2)))
	delta := dTheta / float64(segments)
	t := 4.0 / 3.0 * math.Tan(delta/4)

	cur := p.cur
	for i := 0; i < segments; i++ {
		a1 := theta1 + float64(i)*delta
		a2 := a1 + delta
		p1 := ellipsePoint(cx, cy, rx, ry, sinPhi, cosPhi, a1)
		p2 := ellipsePoint(cx, cy, rx, ry, sinPhi, cosPhi, a2)
		d1 := ellipseDerivative(rx, ry, sinPhi, cosPhi, a1)
		d2 := ellipseDerivative(rx, ry, sinPhi, cosPhi, a2)

		c1 := Point{X: p1.X + t*d1.X, Y: p1.Y + t*d1.Y}
		c2 := Point{X: p2.X - t*d2.X, Y: p2.Y - t*d2.Y}
		if i == segments-1 {
			p2 = end // avoid accumulated rounding on the final endpoint
		}
		p.emit('C', c1, c2, p2)
		cur = p2
	}
	p.cur = cur
}

func ellipsePoint(cx, cy, rx, ry, sinPhi, cosPhi, theta float64) Point {
	x := rx * math.Cos(theta)
	y := ry * math.Sin(theta)
	return Point{
		X: cx + cosPhi*x - sinPhi*y,
		Y: cy + sinPhi*x + cosPhi*y,
	}
}

func ellipseDerivative(rx, ry, sinPhi, cosPhi, theta float64) Point {
	x := -rx * math.Sin(theta)
	y := ry * math.Cos(theta)
	return Point{
		X: cosPhi*x - sinPhi*y,
		Y: sinPhi*x + cosPhi*y,
	}
}

func angle(ux, uy, vx, vy float64) float64 {
	dot := ux*vx + uy*vy
	length := math.Sqrt(ux*ux+uy*uy) * math.Sqrt(vx*vx+vy*vy)
	a := math.Acos(math.Max(-1, math.Min(1, dot/length)))
	if ux*vy-uy*vx < 0 {
		return -a
	}
	return a
}
