package core

import (
	"fmt"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// Plan is the fully built, not yet evaluated, graph of one analysis.
type Plan struct {
	Request    model.ValidatedRequest
	Historical IndexRaster
	Recent     IndexRaster
	Difference DifferenceRaster
	Layers     Layers

	// Scene collections feeding each index layer, keyed by layer name.
	Scenes     map[string]graph.Collection
	// SnowLayers are exportable alongside Layers but never rendered in a run.
	SnowLayers [2]VisualizationLayer
}

// BuildPlan validates req and constructs the deferred pipeline. It performs no I/O,
// holds no shared state and is safe to call concurrently.
func BuildPlan(req model.AnalysisRequest) (*Plan, error) {
	v, err := req.Validate()
	if err != nil {
		return nil, err
	}

	histScenes, histComposite := periodComposite(v.HistoricalCollection, v.HistoricalSensor, v.Historical, v)
	recentScenes, recentComposite := periodComposite(v.RecentCollection, v.RecentSensor, v.Recent, v)
	historical := ComputeNDSI(histComposite)
	recent := ComputeNDSI(recentComposite)

	diff, err := Difference(historical, recent, v.Region, v.ClipToRegion)
	if err != nil {
		return nil, err
	}
	if v.ClipToRegion {
		historical = historical.Clip(v.Region)
		recent = recent.Clip(v.Region)
	}

	layers, err := AssembleLayers(historical, recent, diff, v.Styles)
	if err != nil {
		return nil, err
	}

	snowStyle, err := model.DefaultSnowStyle().Resolved()
	if err != nil {
		return nil, err
	}
	histSnow := SnowCover(histComposite, historical)
	recentSnow := SnowCover(recentComposite, recent)

	return &Plan{
		Request:    v,
		Historical: historical,
		Recent:     recent,
		Difference: diff,
		Layers:     layers,
		Scenes: map[string]graph.Collection{
			model.LayerHistorical: histScenes,
			model.LayerRecent:     recentScenes,
		},
		SnowLayers: [2]VisualizationLayer{
			{Name: model.LayerHistoricalSnow, Title: "Historical snow cover", Raster: histSnow.Image, Style: snowStyle},
			{Name: model.LayerRecentSnow, Title: "Recent snow cover", Raster: recentSnow.Image, Style: snowStyle},
		},
	}, nil
}

func periodComposite(collection string, sensor model.SensorProfile, period model.TimePeriod, v model.ValidatedRequest) (graph.Collection, CompositeRaster) {
	scenes := SelectScenes(SceneQuery{
		CollectionID: collection,
		Region:       v.Region,
		Period:       period,
		CloudCover:   v.CloudCover,
	})
	return scenes, Composite(scenes, sensor, period)
}

// Layer returns the named layer of the plan, snow-cover layers included.
func (p *Plan) Layer(name string) (VisualizationLayer, error) {
	for _, l := range append(p.Layers[:], p.SnowLayers[:]...) {
		if l.Name == name {
			return l, nil
		}
	}
	return VisualizationLayer{}, fmt.Errorf("%w: %q", model.ErrUnknownLayer, name)
}
