package core

import (
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// CompositeRaster is the per-period median of cloud-masked scenes.
type CompositeRaster struct {
	Image  graph.Image
	Period model.TimePeriod
	Sensor model.SensorProfile
}

// Composite masks clouds on every scene and takes the per-pixel median of what is left.
// Pixels with no valid observation stay without data.
func Composite(scenes graph.Collection, sensor model.SensorProfile, period model.TimePeriod) CompositeRaster {
	cleaned := scenes.Map(func(scene graph.Image) graph.Image {
		return MaskClouds(scene, sensor)
	})
	return CompositeRaster{
		Image:  cleaned.Median(),
		Period: period,
		Sensor: sensor,
	}
}
