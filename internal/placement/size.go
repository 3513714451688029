package placement

import "math"

// default marker size constants
const (
	DefaultMinSize        = 2.0
	DefaultMaxSize        = 8.0
	DefaultSizeMultiplier = 1.5
)

// Weight is an optional numeric driver of marker size.
// The zero value is absent.
type Weight struct {
	value float64
	ok    bool
}

// Some returns a present weight.
func Some(v float64) Weight {
	return Weight{value: v, ok: true}
}

// None returns an absent weight.
func None() Weight {
	return Weight{}
}

// WeightOf converts a nullable count column into a Weight.
func WeightOf(v *int) Weight {
	if v == nil {
		return None()
	}
	return Some(float64(*v))
}

// Get returns the value and whether it is present.
func (w Weight) Get() (float64, bool) {
	return w.value, w.ok
}

// Or returns the value or def when absent.
func (w Weight) Or(def float64) float64 {
	if !w.ok {
		return def
	}
	return w.value
}

// SizeOptions configures the weight to marker size mapping.
type SizeOptions struct {
	MinSize    float64 `yaml:"min_size"`
	MaxSize    float64 `yaml:"max_size"`
	Multiplier float64 `yaml:"multiplier"`
}

// DefaultSizeOptions returns the stock size constants.
func DefaultSizeOptions() SizeOptions {
	return SizeOptions{
		MinSize:    DefaultMinSize,
		MaxSize:    DefaultMaxSize,
		Multiplier: DefaultSizeMultiplier,
	}
}

// Size maps a weight to clamp(ln(w)*Multiplier, MinSize, MaxSize).
// Absent, zero and negative weights get MinSize.
func (o SizeOptions) Size(w Weight) float64 {
	v, ok := w.Get()
	if !ok || v <= 0 || math.IsNaN(v) {
		return o.MinSize
	}
	return math.Max(o.MinSize, math.Min(o.MaxSize, math.Log(v)*o.Multiplier))
}

// Size applies the default size options.
func Size(w Weight) float64 {
	return DefaultSizeOptions().Size(w)
}
