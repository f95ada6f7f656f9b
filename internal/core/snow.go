package core

import (
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

const SnowCoverBand = "snow_cover"

// Snow classification thresholds. The green floor is in surface reflectance digital numbers.
const (
	SnowNDSIThreshold = 0.4
	SnowGreenFloor    = 1100
)

// SnowRaster is a binary band: 1 where the period's composite reads as snow, 0 where it
// does not, no data where either input has none.
type SnowRaster struct {
	Image  graph.Image
	Period model.TimePeriod
	Sensor model.SensorProfile
}

// SnowCover classifies a pixel as snow when its NDSI is above SnowNDSIThreshold and its
// green reflectance is above SnowGreenFloor. index must be computed from c.
func SnowCover(c CompositeRaster, index IndexRaster) SnowRaster {
	bright := c.Image.Select(c.Sensor.GreenBand).Gt(SnowGreenFloor)
	return SnowRaster{
		Image:  index.Image.Gt(SnowNDSIThreshold).And(bright).Rename(SnowCoverBand),
		Period: c.Period,
		Sensor: c.Sensor,
	}
}
