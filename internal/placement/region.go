package placement

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidRegion is wrapped by every ConfigurationError returned for bad region input.
var ErrInvalidRegion = errors.New("invalid region")

// ConfigurationError reports region input that cannot be used for placement.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidRegion, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidRegion, e.Field, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidRegion).
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidRegion
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Point is a 2D coordinate. For geographic regions X is longitude and Y latitude.
type Point struct {
	X float64
	Y float64
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the horizontal extent.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Region is an immutable placement area: one or more polygons, each with
// an outer ring followed by optional holes.
type Region struct {
	shape    orb.MultiPolygon
	bounds   BBox
	interior Point
}

// NewRegion validates the polygons and builds a Region.
// Rings may be open or closed; they are closed internally.
func NewRegion(polygons orb.MultiPolygon) (*Region, error) {
	if len(polygons) == 0 {
		return nil, configErr("geometry", "no polygons")
	}

	shape := make(orb.MultiPolygon, 0, len(polygons))
	for pi, poly := range polygons {
		if len(poly) == 0 {
			return nil, configErr(fmt.Sprintf("polygon[%d]", pi), "no rings")
		}
		clean := make(orb.Polygon, 0, len(poly))
		for ri, ring := range poly {
			field := fmt.Sprintf("polygon[%d].ring[%d]", pi, ri)
			r, err := normalizeRing(ring, field)
			if err != nil {
				return nil, err
			}
			clean = append(clean, r)
		}
		shape = append(shape, clean)
	}

	area := 0.0
	for _, poly := range shape {
		a := math.Abs(planar.Area(poly[0]))
		for _, hole := range poly[1:] {
			a -= math.Abs(planar.Area(hole))
		}
		area += a
	}
	if area <= 0 {
		return nil, configErr("geometry", "zero area")
	}

	b := shape.Bound()
	r := &Region{
		shape: shape,
		bounds: BBox{
			MinX: b.Min[0],
			MinY: b.Min[1],
			MaxX: b.Max[0],
			MaxY: b.Max[1],
		},
	}

	p, ok := r.scanInteriorPoint()
	if !ok {
		return nil, configErr("geometry", "no interior point found")
	}
	r.interior = p

	return r, nil
}

// Polygon builds a single-polygon region from an outer ring and optional holes.
func Polygon(outer []Point, holes ...[]Point) (*Region, error) {
	poly := orb.Polygon{toRing(outer)}
	for _, h := range holes {
		poly = append(poly, toRing(h))
	}
	return NewRegion(orb.MultiPolygon{poly})
}

func toRing(pts []Point) orb.Ring {
	ring := make(orb.Ring, len(pts))
	for i, p := range pts {
		ring[i] = orb.Point{p.X, p.Y}
	}
	return ring
}

// Contains reports whether p lies inside the region (holes excluded).
func (r *Region) Contains(p Point) bool {
	return planar.MultiPolygonContains(r.shape, orb.Point{p.X, p.Y})
}

// Bounds returns the axis-aligned bounding box of the region.
func (r *Region) Bounds() BBox {
	return r.bounds
}

// InteriorPoint returns a fixed point guaranteed to be inside the region.
func (r *Region) InteriorPoint() Point {
	return r.interior
}

// Geometry exposes the underlying shape, e.g. for re-encoding as GeoJSON.
func (r *Region) Geometry() orb.MultiPolygon {
	return r.shape.Clone()
}

func normalizeRing(ring orb.Ring, field string) (orb.Ring, error) {
	out := make(orb.Ring, 0, len(ring)+1)
	for i, p := range ring {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return nil, configErr(field, "non-finite coordinate at %d", i)
		}
		// drop consecutive duplicates
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil, configErr(field, "need at least 3 distinct vertices, got %d", len(out))
	}
	if planar.Area(out) == 0 {
		return nil, configErr(field, "zero area")
	}
	if selfIntersects(out) {
		return nil, configErr(field, "ring is self-intersecting")
	}
	return append(out, out[0]), nil
}

// selfIntersects checks every pair of non-adjacent edges of an open ring.
func selfIntersects(ring orb.Ring) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// adjacent edges share a vertex
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := ring[j], ring[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// scanInteriorPoint intersects horizontal scanlines with every ring and
// returns the midpoint of the widest inside interval it finds.
func (r *Region) scanInteriorPoint() (Point, bool) {
	fractions := []float64{0.5, 0.37, 0.63, 0.25, 0.75, 0.13, 0.87, 0.05, 0.95}
	for _, f := range fractions {
		y := r.bounds.MinY + r.bounds.Height()*f

		var xs []float64
		for _, poly := range r.shape {
			for _, ring := range poly {
				for i := 0; i+1 < len(ring); i++ {
					a, b := ring[i], ring[i+1]
					if (a[1] > y) == (b[1] > y) {
						continue
					}
					xs = append(xs, a[0]+(y-a[1])*(b[0]-a[0])/(b[1]-a[1]))
				}
			}
		}
		sort.Float64s(xs)

		best, bestWidth := Point{}, 0.0
		for i := 0; i+1 < len(xs); i += 2 {
			if w := xs[i+1] - xs[i]; w > bestWidth {
				best, bestWidth = Point{X: (xs[i] + xs[i+1]) / 2, Y: y}, w
			}
		}
		if bestWidth > 0 && r.Contains(best) {
			return best, true
		}
	}
	return Point{}, false
}
