package model

import (
	"time"

	"github.com/google/uuid"
)

// TileSource is what a backend returns for a map-id request: an XYZ template per layer.
type TileSource struct {
	MapID     string `json:"map_id"`
	URLFormat string `json:"url_format"`
}

// RasterStats summarises the valid pixels of a raster inside a region.
type RasterStats struct {
	ValidPixels int64   `json:"valid_pixels"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
}

// StatsOptions scopes a statistics request.
type StatsOptions struct {
	Region Region
	Scale  float64
}

// ExportOptions describes a single-layer export request.
type ExportOptions struct {
	Region    Region
	Scale     float64
	MaxPixels int64
	CRS       string
	Format    string
	// Visualize, when set, asks for an RGB rendering instead of raw values.
	Visualize *LayerStyle
}

// MapView is a suggested initial viewport for interactive maps.
type MapView struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// LayerResult is one materialized layer, or the reason it could not be materialized.
type LayerResult struct {
	Name  string       `json:"name"`
	Title string       `json:"title"`
	Style LayerStyle   `json:"style"`
	Tiles *TileSource  `json:"tiles,omitempty"`
	Stats *RasterStats `json:"stats,omitempty"`
	Error string       `json:"error,omitempty"`
	Err   error        `json:"-"`
}

// SetErr marks the layer as failed.
func (l *LayerResult) SetErr(err error) {
	l.Err = err
	l.Error = err.Error()
}

// AnalysisResult is handed to rendering collaborators.
type AnalysisResult struct {
	ID        uuid.UUID     `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	View      MapView       `json:"view"`
	Layers    []LayerResult `json:"layers"`

	// Scenes counts the scenes that passed selection, keyed by index layer name.
	Scenes map[string]int64 `json:"scene_counts"`
}

// Failed returns the layers that could not be materialized.
func (r *AnalysisResult) Failed() []LayerResult {
	var out []LayerResult
	for _, l := range r.Layers {
		if l.Err != nil {
			out = append(out, l)
		}
	}
	return out
}
