package core

import (
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// CloudCoverProperty is the scene metadata key holding whole-scene cloud percentage.
const CloudCoverProperty = "CLOUD_COVER"

// SceneQuery is everything the selector filters on.
type SceneQuery struct {
	CollectionID string
	Region       model.Region
	Period       model.TimePeriod
	CloudCover   int
}

// SelectScenes describes the scenes intersecting the region, acquired in the period's
// date range and month, with cloud cover at most the ceiling. An empty selection is
// not an error; it only surfaces once a composite is materialized.
func SelectScenes(q SceneQuery) graph.Collection {
	return graph.LoadCollection(q.CollectionID).
		FilterBounds(q.Region).
		FilterDate(q.Period.Start, q.Period.End).
		FilterMonth(q.Period.Month).
		FilterMetadata(CloudCoverProperty, graph.CmpLessOrEqual, float64(q.CloudCover))
}
