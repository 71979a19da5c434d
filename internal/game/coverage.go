package game

import "math"

const (
	SURFACE_WIDTH  = 200
	SURFACE_HEIGHT = 200
	BRUSH_RADIUS   = 35.0
	BRUSH_JITTER   = 5.0
)

type point struct{ x, y float64 }

// GridCoverage estimates how much of a card has been scratched off. Strokes
// are stamped as capsules between consecutive pointer positions on a
// SURFACE_WIDTH x SURFACE_HEIGHT mask.
type GridCoverage struct {
	mask       []bool
	covered    int
	scratching bool
	last       *point
	rng        RandomSource
}

func NewGridCoverage(rng RandomSource) *GridCoverage {
	if rng == nil {
		rng = NewCryptoSource()
	}
	return &GridCoverage{
		mask: make([]bool, SURFACE_WIDTH*SURFACE_HEIGHT),
		rng:  rng,
	}
}

// Begin starts a stroke at (x, y).
func (g *GridCoverage) Begin(x, y float64) float64 {
	g.scratching = true
	p := point{x, y}
	g.stamp(p, p)
	g.last = &p
	return g.Coverage()
}

// Move extends the current stroke. Moves outside a stroke are ignored.
func (g *GridCoverage) Move(x, y float64) float64 {
	if !g.scratching {
		return g.Coverage()
	}
	p := point{x, y}
	from := p
	if g.last != nil {
		from = *g.last
	}
	g.stamp(from, p)
	g.last = &p
	return g.Coverage()
}

func (g *GridCoverage) End() {
	g.scratching = false
	g.last = nil
}

// Coverage is the scratched fraction in [0, 1].
func (g *GridCoverage) Coverage() float64 {
	return float64(g.covered) / float64(len(g.mask))
}

func (g *GridCoverage) Reset() {
	for i := range g.mask {
		g.mask[i] = false
	}
	g.covered = 0
	g.scratching = false
	g.last = nil
}

func (g *GridCoverage) stamp(a, b point) {
	r := BRUSH_RADIUS + g.rng.Float64()*BRUSH_JITTER
	minX := clampInt(int(math.Floor(math.Min(a.x, b.x)-r)), 0, SURFACE_WIDTH-1)
	maxX := clampInt(int(math.Ceil(math.Max(a.x, b.x)+r)), 0, SURFACE_WIDTH-1)
	minY := clampInt(int(math.Floor(math.Min(a.y, b.y)-r)), 0, SURFACE_HEIGHT-1)
	maxY := clampInt(int(math.Ceil(math.Max(a.y, b.y)+r)), 0, SURFACE_HEIGHT-1)
	if math.Max(a.x, b.x)+r < 0 || math.Min(a.x, b.x)-r >= SURFACE_WIDTH ||
		math.Max(a.y, b.y)+r < 0 || math.Min(a.y, b.y)-r >= SURFACE_HEIGHT {
		return
	}

	r2 := r * r
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			idx := y*SURFACE_WIDTH + x
			if g.mask[idx] {
				continue
			}
			// pixel centre
			if segmentDist2(point{float64(x) + 0.5, float64(y) + 0.5}, a, b) <= r2 {
				g.mask[idx] = true
				g.covered++
			}
		}
	}
}

func segmentDist2(p, a, b point) float64 {
	dx, dy := b.x-a.x, b.y-a.y
	l2 := dx*dx + dy*dy
	t := 0.0
	if l2 > 0 {
		t = ((p.x-a.x)*dx + (p.y-a.y)*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := a.x+t*dx-p.x, a.y+t*dy-p.y
	return cx*cx + cy*cy
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
