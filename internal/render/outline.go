package render

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Point is a 2D point relative to a node center.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bezier is one cubic segment ending at End; its start is the previous
// segment's end.
type Bezier struct {
	C1  Point `json:"c1"`
	C2  Point `json:"c2"`
	End Point `json:"end"`
}

// Outline is a closed organic shape around the origin.
type Outline struct {
	Anchors  []Point  `json:"anchors"`
	Segments []Bezier `json:"segments"`
}

// OutlineSeed derives a per-node seed from the node id and a global seed, so
// the same node always gets the same shape.
func OutlineSeed(nodeID string, seed int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(nodeID))
	return int64(h.Sum64()) ^ seed
}

// NewOutline places anchors evenly around a circle of the given radius with
// each radius jittered by up to ±variance/2, then smooths them with a closed
// centripetal Catmull-Rom spline.
func NewOutline(rng *rand.Rand, radius float64, anchors int, variance float64) *Outline {
	if anchors < 3 {
		anchors = 3
	}
	pts := make([]Point, anchors)
	step := 2 * math.Pi / float64(anchors)
	for i := range pts {
		r := radius * (1 + (rng.Float64()-0.5)*variance)
		angle := float64(i) * step
		pts[i] = Point{X: r * math.Cos(angle), Y: r * math.Sin(angle)}
	}
	return &Outline{Anchors: pts, Segments: catmullRomClosed(pts, 0.5)}
}

// catmullRomClosed converts a closed Catmull-Rom spline through pts into
// cubic Bézier segments. alpha 0.5 is the centripetal parameterization,
// which never forms cusps or self-intersections within a segment.
func catmullRomClosed(pts []Point, alpha float64) []Bezier {
	const epsilon = 1e-12
	n := len(pts)
	segs := make([]Bezier, n)

	for i := 0; i < n; i++ {
		p0 := pts[(i-1+n)%n]
		p1 := pts[i]
		p2 := pts[(i+1)%n]
		p3 := pts[(i+2)%n]

		d01 := math.Hypot(p1.X-p0.X, p1.Y-p0.Y)
		d12 := math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
		d23 := math.Hypot(p3.X-p2.X, p3.Y-p2.Y)

		l01a, l01a2 := math.Pow(d01, alpha), math.Pow(d01, 2*alpha)
		l12a, l12a2 := math.Pow(d12, alpha), math.Pow(d12, 2*alpha)
		l23a, l23a2 := math.Pow(d23, alpha), math.Pow(d23, 2*alpha)

		c1, c2 := p1, p2
		if l01a > epsilon {
			a := 2*l01a2 + 3*l01a*l12a + l12a2
			m := 3 * l01a * (l01a + l12a)
			c1 = Point{
				X: (p1.X*a - p0.X*l12a2 + p2.X*l01a2) / m,
				Y: (p1.Y*a - p0.Y*l12a2 + p2.Y*l01a2) / m,
			}
		}
		if l23a > epsilon {
			b := 2*l23a2 + 3*l23a*l12a + l12a2
			m := 3 * l23a * (l23a + l12a)
			c2 = Point{
				X: (p2.X*b + p1.X*l23a2 - p3.X*l12a2) / m,
				Y: (p2.Y*b + p1.Y*l23a2 - p3.Y*l12a2) / m,
			}
		}
		segs[i] = Bezier{C1: c1, C2: c2, End: p2}
	}
	return segs
}

// Path renders the outline as SVG path data centered on the origin.
func (o *Outline) Path() string {
	if o == nil || len(o.Anchors) == 0 {
		return ""
	}
	var b strings.Builder
	start := o.Anchors[0]
	fmt.Fprintf(&b, "M%s,%s", num(start.X), num(start.Y))
	for _, s := range o.Segments {
		fmt.Fprintf(&b, "C%s,%s,%s,%s,%s,%s",
			num(s.C1.X), num(s.C1.Y), num(s.C2.X), num(s.C2.Y), num(s.End.X), num(s.End.Y))
	}
	b.WriteString("Z")
	return b.String()
}

// Sample returns points along the outline, steps per segment, for raster
// backends.
func (o *Outline) Sample(steps int) []Point {
	if o == nil || len(o.Anchors) == 0 {
		return nil
	}
	if steps < 1 {
		steps = 1
	}
	out := make([]Point, 0, len(o.Segments)*steps)
	start := o.Anchors[0]
	for _, s := range o.Segments {
		for k := 1; k <= steps; k++ {
			t := float64(k) / float64(steps)
			out = append(out, cubic(start, s.C1, s.C2, s.End, t))
		}
		start = s.End
	}
	return out
}

func cubic(p0, p1, p2, p3 Point, t float64) Point {
	u := 1 - t
	w0, w1, w2, w3 := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return Point{
		X: w0*p0.X + w1*p1.X + w2*p2.X + w3*p3.X,
		Y: w0*p0.Y + w1*p1.Y + w2*p2.Y + w3*p3.Y,
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
