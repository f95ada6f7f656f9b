package core

import (
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// MaskClouds hides every pixel whose quality band flags cloud, cloud shadow or cirrus.
// Bit positions come from the profile. Pixels without quality data end up masked as well,
// since updateMask treats a no-data mask pixel as excluded.
func MaskClouds(scene graph.Image, p model.SensorProfile) graph.Image {
	clearSky := scene.Select(p.QualityBand).BitwiseAnd(p.QualityMask()).Eq(0)
	return scene.UpdateMask(clearSky)
}
