package mapgen

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"

	"github.com/paulmach/orb/geojson"
)

//go:embed assets/map.html.tmpl assets/map.js
var assets embed.FS

// Renderer turns placed channels into the standalone map page.
type Renderer struct {
	tmpl  *template.Template
	mapJS template.JS
}

// pageData is what map.html.tmpl sees.
type pageData struct {
	Title        string
	Channels     []listItem
	RegionData   template.JS
	ChannelsData template.JS
	MapJS        template.JS
}

// NewRenderer loads the page template and the map script. Empty paths use
// the embedded defaults.
func NewRenderer(templatePath, mapJSPath string) (*Renderer, error) {
	tmplSrc, err := readAsset(templatePath, "assets/map.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	js, err := readAsset(mapJSPath, "assets/map.js")
	if err != nil {
		return nil, fmt.Errorf("read map script: %w", err)
	}

	tmpl, err := template.New("map").Parse(string(tmplSrc))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	// the script is trusted: it ships with the binary or comes from the operator
	return &Renderer{tmpl: tmpl, mapJS: template.JS(js)}, nil
}

func readAsset(path, embedded string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return assets.ReadFile(embedded)
}

// Render writes the map page.
func (r *Renderer) Render(title string, region *geojson.FeatureCollection, points []ChannelPoint) ([]byte, error) {
	regionJSON, err := json.Marshal(region)
	if err != nil {
		return nil, fmt.Errorf("marshal region: %w", err)
	}
	if points == nil {
		points = []ChannelPoint{}
	}
	channelsJSON, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("marshal channels: %w", err)
	}

	var buf bytes.Buffer
	err = r.tmpl.Execute(&buf, pageData{
		Title:        title,
		Channels:     sidebar(points),
		RegionData:   template.JS(regionJSON),
		ChannelsData: template.JS(channelsJSON),
		MapJS:        r.mapJS,
	})
	if err != nil {
		return nil, fmt.Errorf("render map: %w", err)
	}
	return buf.Bytes(), nil
}
