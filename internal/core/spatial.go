package core

import (
	"math"

	"snowdiff_service/internal/domain/model"
)

// ExportPlan is the resolution an export starts at.
type ExportPlan struct {
	Scale     float64 // meters per pixel
	MaxPixels int64
}

// maxExportScale is the scale at which a too-large export stops being coarsened.
const maxExportScale = 1000

// ExportScale picks a starting resolution from the region's bounding box so that
// single-layer downloads stay under typical backend size limits.
func ExportScale(region model.Region) ExportPlan {
	area := region.BoundAreaSqDeg()
	switch {
	case area > 25:
		return ExportPlan{Scale: 500, MaxPixels: 1e7}
	case area > 10:
		return ExportPlan{Scale: 250, MaxPixels: 5e7}
	case area > 1:
		return ExportPlan{Scale: 120, MaxPixels: 1e8}
	default:
		return ExportPlan{Scale: 30, MaxPixels: 1e9}
	}
}

// MapView centers on the region centroid with a zoom fitted to its extent.
func MapView(region model.Region) model.MapView {
	c := region.Centroid()
	area := region.BoundAreaSqDeg()
	zoom := 4
	switch {
	case area < 1:
		zoom = 8
	case area < 10:
		zoom = 6
	}
	return model.MapView{Lat: c.Lat(), Lon: c.Lon(), Zoom: zoom}
}

// BoundAreaKm2 approximates the region's bounding-box area in km², accounting for
// meridian convergence at the box's mid latitude.
func BoundAreaKm2(region model.Region) float64 {
	b := region.Bound()
	latMid := (b.Bottom() + b.Top()) / 2 * math.Pi / 180
	dLat := b.Top() - b.Bottom()
	dLon := b.Right() - b.Left()

	// Degree-to-meter factors
	kx := 111132.92 - 559.82*math.Cos(2*latMid)
	ky := 111412.84 * math.Cos(latMid)

	return math.Abs(dLat*kx*dLon*ky) / 1000000
}
