package core

import (
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

const (
	NDSIBand           = "NDSI"
	NDSIDifferenceBand = "NDSI_Difference"
)

// IndexRaster holds a single NDSI band in [-1, 1].
type IndexRaster struct {
	Image  graph.Image
	Period model.TimePeriod
	Sensor model.SensorProfile
}

// ComputeNDSI applies (green - swir) / (green + swir) with the composite's own band layout.
// A zero denominator yields no data.
func ComputeNDSI(c CompositeRaster) IndexRaster {
	return IndexRaster{
		Image:  c.Image.NormalizedDifference(c.Sensor.GreenBand, c.Sensor.SWIRBand).Rename(NDSIBand),
		Period: c.Period,
		Sensor: c.Sensor,
	}
}

// Clip restricts the index to region.
func (r IndexRaster) Clip(region model.Region) IndexRaster {
	r.Image = r.Image.Clip(region)
	return r
}
