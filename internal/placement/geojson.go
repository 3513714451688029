package placement

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseRegion builds a Region from GeoJSON. Accepted documents are a
// FeatureCollection (its first polygonal feature is used), a Feature, or a
// bare Polygon/MultiPolygon geometry.
func ParseRegion(data []byte) (*Region, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, configErr("geojson", "decode: %v", err)
	}

	var geom orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, configErr("geojson", "decode feature collection: %v", err)
		}
		for _, f := range fc.Features {
			if isPolygonal(f.Geometry) {
				geom = f.Geometry
				break
			}
		}
		if geom == nil {
			return nil, configErr("geojson", "feature collection has no polygon features")
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, configErr("geojson", "decode feature: %v", err)
		}
		geom = f.Geometry
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, configErr("geojson", "decode geometry: %v", err)
		}
		geom = g.Geometry()
	}

	switch g := geom.(type) {
	case orb.Polygon:
		return NewRegion(orb.MultiPolygon{g})
	case orb.MultiPolygon:
		return NewRegion(g)
	default:
		return nil, configErr("geojson", "unsupported geometry type %T", geom)
	}
}

// LoadRegion reads and parses a GeoJSON region file.
func LoadRegion(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region: %w", err)
	}
	return ParseRegion(data)
}

// FeatureCollection re-encodes the region as a single-feature collection,
// the shape the map front-end expects.
func (r *Region) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	var g orb.Geometry = r.Geometry()
	if len(r.shape) == 1 {
		g = r.shape[0].Clone()
	}
	fc.Append(geojson.NewFeature(g))
	return fc
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}
