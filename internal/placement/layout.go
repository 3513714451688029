package placement

import "sort"

// Entity is an input record for Layout. Payload is carried through untouched.
type Entity[T any] struct {
	Weight          Weight
	SecondaryWeight Weight
	Payload         T
}

// PlacedMarker is a laid out entity.
type PlacedMarker[T any] struct {
	Entity  T
	X       float64
	Y       float64
	Size    float64
	Relaxed bool
}

// LayoutStats summarizes a Layout run.
type LayoutStats struct {
	Placed  int
	Relaxed int
	Trials  int
}

// Layout places entities heaviest first (Weight desc, then SecondaryWeight
// desc, absent counted as 0, ties kept in input order) and returns the
// markers in input order.
func Layout[T any](region *Region, entities []Entity[T], engine *Engine, sizes SizeOptions) ([]PlacedMarker[T], LayoutStats) {
	order := make([]int, len(entities))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := entities[order[a]], entities[order[b]]
		wa, wb := ea.Weight.Or(0), eb.Weight.Or(0)
		if wa != wb {
			return wa > wb
		}
		return ea.SecondaryWeight.Or(0) > eb.SecondaryWeight.Or(0)
	})

	out := make([]PlacedMarker[T], len(entities))
	occupied := make([]Marker, 0, len(entities))
	var stats LayoutStats

	for _, idx := range order {
		e := entities[idx]
		size := sizes.Size(e.Weight)
		res := engine.Place(region, occupied, size)

		out[idx] = PlacedMarker[T]{
			Entity:  e.Payload,
			X:       res.X,
			Y:       res.Y,
			Size:    size,
			Relaxed: res.Relaxed,
		}
		occupied = append(occupied, Marker{X: res.X, Y: res.Y, Size: size})

		stats.Placed++
		stats.Trials += res.Trials
		if res.Relaxed {
			stats.Relaxed++
		}
	}

	return out, stats
}
