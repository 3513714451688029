// Package placement scatters weighted markers inside a polygonal region
// without overlap, relaxing the spacing when the region gets crowded.
package placement

import (
	"math"
	"math/rand/v2"
)

// default placement constants
const (
	DefaultMaxAttempts        = 500
	DefaultMaxRecursionDepth  = 5
	DefaultDistanceMultiplier = 0.3
	DefaultRelaxation         = 1.2
)

// Options tunes the rejection sampler.
type Options struct {
	// MaxAttempts is the number of samples tried per level.
	MaxAttempts int `yaml:"max_attempts"`
	// MaxRecursionDepth is the number of spacing levels before the
	// unconstrained fallback.
	MaxRecursionDepth int `yaml:"max_recursion_depth"`
	// DistanceMultiplier scales (size + otherSize) into a minimum distance.
	DistanceMultiplier float64 `yaml:"distance_multiplier"`
	// Relaxation divides the minimum distance at every new level: level d
	// requires MinDistance / Relaxation^d. Values below 1 use the default.
	Relaxation float64 `yaml:"relaxation"`
}

// DefaultOptions returns the stock placement constants.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:        DefaultMaxAttempts,
		MaxRecursionDepth:  DefaultMaxRecursionDepth,
		DistanceMultiplier: DefaultDistanceMultiplier,
		Relaxation:         DefaultRelaxation,
	}
}

// withDefaults fills unset or unusable fields.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.MaxRecursionDepth < 0 {
		o.MaxRecursionDepth = d.MaxRecursionDepth
	}
	if o.DistanceMultiplier < 0 || math.IsNaN(o.DistanceMultiplier) {
		o.DistanceMultiplier = d.DistanceMultiplier
	}
	if o.Relaxation < 1 || math.IsNaN(o.Relaxation) {
		o.Relaxation = d.Relaxation
	}
	return o
}

// Marker is an already placed marker consulted for spacing.
type Marker struct {
	X    float64
	Y    float64
	Size float64
}

// Result is the outcome of a single placement.
type Result struct {
	Point
	// Depth is the spacing level that accepted the point.
	// Equal to MaxRecursionDepth when the fallback was used.
	Depth int
	// Relaxed is true when the point carries no spacing guarantee.
	Relaxed bool
	// Trials is the number of random samples drawn.
	Trials int
}

// Engine places markers one at a time. It is not safe for concurrent use:
// the random source is consumed sequentially.
type Engine struct {
	opts Options
	rng  *rand.Rand
}

// NewEngine creates an engine. rng must not be nil.
func NewEngine(opts Options, rng *rand.Rand) *Engine {
	return &Engine{
		opts: opts.withDefaults(),
		rng:  rng,
	}
}

// NewSeededEngine creates an engine with a PCG source derived from seed.
func NewSeededEngine(opts Options, seed uint64) *Engine {
	return NewEngine(opts, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Place finds a point inside region at least
// (size + other.Size) * DistanceMultiplier / Relaxation^depth away from
// every occupied marker. After MaxRecursionDepth levels it returns a point
// that is only guaranteed to be inside the region. It never fails and
// draws at most MaxAttempts * (MaxRecursionDepth + 1) samples.
func (e *Engine) Place(region *Region, occupied []Marker, size float64) Result {
	bounds := region.Bounds()
	relax := 1.0
	trials := 0

	for depth := 0; depth < e.opts.MaxRecursionDepth; depth++ {
		for i := 0; i < e.opts.MaxAttempts; i++ {
			p := e.sample(bounds)
			trials++
			if region.Contains(p) && e.isFree(p, size, occupied, relax) {
				return Result{Point: p, Depth: depth, Trials: trials}
			}
		}
		relax *= e.opts.Relaxation
	}

	for i := 0; i < e.opts.MaxAttempts; i++ {
		p := e.sample(bounds)
		trials++
		if region.Contains(p) {
			return Result{Point: p, Depth: e.opts.MaxRecursionDepth, Relaxed: true, Trials: trials}
		}
	}

	return Result{
		Point:   region.InteriorPoint(),
		Depth:   e.opts.MaxRecursionDepth,
		Relaxed: true,
		Trials:  trials,
	}
}

func (e *Engine) sample(b BBox) Point {
	return Point{
		X: b.MinX + e.rng.Float64()*b.Width(),
		Y: b.MinY + e.rng.Float64()*b.Height(),
	}
}

func (e *Engine) isFree(p Point, size float64, occupied []Marker, relax float64) bool {
	for _, m := range occupied {
		required := e.MinDistance(size, m.Size) / relax
		if math.Hypot(p.X-m.X, p.Y-m.Y) < required {
			return false
		}
	}
	return true
}

// MinDistance is the spacing the first level requires between two markers.
func (e *Engine) MinDistance(a, b float64) float64 {
	return (a + b) * e.opts.DistanceMultiplier
}
