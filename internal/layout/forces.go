package layout

import (
	"math"
	"math/rand"
)

// body is the simulation state of one node.
type body struct {
	id    string
	label string
	x, y  float64
	vx    float64
	vy    float64
	fx    *float64
	fy    *float64
}

func (b *body) pinned() bool {
	return b.fx != nil && b.fy != nil
}

// spring is a link resolved to bodies with its precomputed force parameters.
type spring struct {
	id       string
	source   *body
	target   *body
	strength float64
	bias     float64
}

// jiggle returns a tiny random offset used to separate coincident nodes.
func jiggle(rng *rand.Rand) float64 {
	return (rng.Float64() - 0.5) * 1e-6
}

// buildSprings computes per-link strength and bias from node degrees.
// strength defaults to 1/min(degree(source), degree(target)) so hubs are not
// pulled apart by their many links. bias splits the correction so the
// lower-degree endpoint moves more.
func buildSprings(links []spring, fixedStrength float64) {
	degree := make(map[*body]int, len(links)*2)
	for _, s := range links {
		degree[s.source]++
		degree[s.target]++
	}
	for i := range links {
		s := &links[i]
		ds, dt := float64(degree[s.source]), float64(degree[s.target])
		s.bias = ds / (ds + dt)
		if fixedStrength > 0 {
			s.strength = fixedStrength
		} else {
			s.strength = 1 / math.Min(ds, dt)
		}
	}
}

// applyLinks pulls each linked pair toward distance.
func applyLinks(links []spring, distance, alpha float64, iterations int, rng *rand.Rand) {
	for k := 0; k < iterations; k++ {
		for _, s := range links {
			src, tgt := s.source, s.target
			x := tgt.x + tgt.vx - src.x - src.vx
			y := tgt.y + tgt.vy - src.y - src.vy
			if x == 0 {
				x = jiggle(rng)
			}
			if y == 0 {
				y = jiggle(rng)
			}
			l := math.Sqrt(x*x + y*y)
			l = (l - distance) / l * alpha * s.strength
			x *= l
			y *= l

			b := s.bias
			tgt.vx -= x * b
			tgt.vy -= y * b
			b = 1 - b
			src.vx += x * b
			src.vy += y * b
		}
	}
}

// applyCharge applies pairwise repulsion (negative strength) or attraction.
// Every pair is visited, so cost is quadratic in the node count.
func applyCharge(bodies []*body, strength, distanceMin, distanceMax, alpha float64, rng *rand.Rand) {
	if strength == 0 {
		return
	}
	min2 := distanceMin * distanceMin
	max2 := math.Inf(1)
	if distanceMax > 0 {
		max2 = distanceMax * distanceMax
	}

	for i, a := range bodies {
		for j, b := range bodies {
			if i == j {
				continue
			}
			x := b.x - a.x
			y := b.y - a.y
			if x == 0 {
				x = jiggle(rng)
			}
			if y == 0 {
				y = jiggle(rng)
			}
			l := x*x + y*y
			if l >= max2 {
				continue
			}
			if l < min2 {
				l = math.Sqrt(min2 * l)
			}
			w := strength * alpha / l
			a.vx += x * w
			a.vy += y * w
		}
	}
}

// applyCenter translates all nodes so their mean moves toward (cx, cy).
// Relative positions are unchanged.
func applyCenter(bodies []*body, cx, cy, strength float64) {
	n := float64(len(bodies))
	if n == 0 || strength == 0 {
		return
	}
	var sx, sy float64
	for _, b := range bodies {
		sx += b.x
		sy += b.y
	}
	sx = (sx/n - cx) * strength
	sy = (sy/n - cy) * strength
	for _, b := range bodies {
		b.x -= sx
		b.y -= sy
	}
}

// integrate applies velocity decay and moves every free node. Pinned nodes
// are snapped to their fixed position with zero velocity.
func integrate(bodies []*body, velocityDecay float64) {
	keep := 1 - velocityDecay
	for _, b := range bodies {
		if b.pinned() {
			b.x, b.vx = *b.fx, 0
			b.y, b.vy = *b.fy, 0
			continue
		}
		b.vx *= keep
		b.vy *= keep
		b.x += b.vx
		b.y += b.vy
	}
}

// phyllotaxis returns the deterministic initial position of the i-th node.
func phyllotaxis(i int, radius, cx, cy float64) (float64, float64) {
	initialAngle := math.Pi * (3 - math.Sqrt(5))
	r := radius * math.Sqrt(0.5+float64(i))
	angle := float64(i) * initialAngle
	return cx + r*math.Cos(angle), cy + r*math.Sin(angle)
}
