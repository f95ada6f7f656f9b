package core

import (
	"fmt"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// DifferenceRaster is recent minus historical NDSI, in [-2, 2].
type DifferenceRaster struct {
	Image   graph.Image
	Clipped bool
}

// Difference subtracts historical from recent. A pixel missing in either input is missing
// in the output. With clip set, everything outside region is dropped too.
func Difference(historical, recent IndexRaster, region model.Region, clip bool) (DifferenceRaster, error) {
	if historical.Period.Equal(recent.Period) {
		return DifferenceRaster{}, fmt.Errorf("%w: both index rasters come from %s", model.ErrInvalidRequest, recent.Period)
	}
	img := recent.Image.Subtract(historical.Image).Rename(NDSIDifferenceBand)
	if clip {
		img = img.Clip(region)
	}
	return DifferenceRaster{Image: img, Clipped: clip}, nil
}
