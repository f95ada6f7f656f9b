package core

import (
	"fmt"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// VisualizationLayer binds a deferred raster to a color ramp.
type VisualizationLayer struct {
	Name   string
	Title  string
	Raster graph.Image
	Style  model.LayerStyle
}

// Layers is always historical, recent, difference.
type Layers [3]VisualizationLayer

// AssembleLayers styles the three rasters, applying any overrides on top of the defaults.
func AssembleLayers(historical, recent IndexRaster, diff DifferenceRaster, overrides model.StyleOverrides) (Layers, error) {
	specs := []struct {
		name, title string
		raster      graph.Image
		style       model.LayerStyle
		override    *model.LayerStyle
	}{
		{model.LayerHistorical, "Historical NDSI", historical.Image, model.DefaultIndexStyle(), overrides.Historical},
		{model.LayerRecent, "Recent NDSI", recent.Image, model.DefaultIndexStyle(), overrides.Recent},
		{model.LayerDifference, "NDSI Difference", diff.Image, model.DefaultDifferenceStyle(), overrides.Difference},
	}

	var layers Layers
	for i, s := range specs {
		style := s.style
		if s.override != nil {
			style = *s.override
		}
		resolved, err := style.Resolved()
		if err != nil {
			return Layers{}, fmt.Errorf("%w: %s style: %v", model.ErrInvalidRequest, s.name, err)
		}
		layers[i] = VisualizationLayer{Name: s.name, Title: s.title, Raster: s.raster, Style: resolved}
	}
	return layers, nil
}
