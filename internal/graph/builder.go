package graph

import (
	"time"

	"snowdiff_service/internal/domain/model"
)

// Comparison operators understood by OpFilterMetadata.
const (
	CmpLessOrEqual    = "lte"
	CmpLess           = "lt"
	CmpGreaterOrEqual = "gte"
	CmpGreater        = "gt"
)

// Reducers understood by OpReduce.
const (
	ReducerMedian = "median"
	ReducerMean   = "mean"
)

// SceneVariable names the lambda parameter bound by Collection.Map.
const SceneVariable = "scene"

// Collection is a deferred image collection.
type Collection struct{ node *Node }

// Image is a deferred single image.
type Image struct{ node *Node }

func (c Collection) Node() *Node { return c.node }
func (i Image) Node() *Node { return i.node }

// LoadCollection starts a graph from an archive collection id.
func LoadCollection(id string) Collection {
	return Collection{newNode(OpLoadCollection, map[string]any{"id": id})}
}

// FilterBounds keeps scenes whose footprint intersects r.
func (c Collection) FilterBounds(r model.Region) Collection {
	return Collection{newNode(OpFilterBounds, map[string]any{"geometry": r}, c.node)}
}

// FilterDate keeps scenes acquired in [start, end).
func (c Collection) FilterDate(start, end time.Time) Collection {
	return Collection{newNode(OpFilterDate, map[string]any{"start": start, "end": end}, c.node)}
}

// FilterMonth keeps scenes acquired in month m of any year.
func (c Collection) FilterMonth(m time.Month) Collection {
	return Collection{newNode(OpFilterMonth, map[string]any{"month": int64(m)}, c.node)}
}

// FilterMetadata keeps scenes whose numeric property compares true against value.
func (c Collection) FilterMetadata(property, cmp string, value float64) Collection {
	return Collection{newNode(OpFilterMetadata, map[string]any{
		"property": property,
		"operator": cmp,
		"value":    value,
	}, c.node)}
}

// Map applies fn to every scene. fn runs once, here, to record the lambda body.
func (c Collection) Map(fn func(Image) Image) Collection {
	v := Image{newNode(OpVariable, map[string]any{"name": SceneVariable})}
	body := fn(v)
	return Collection{newNode(OpMap, map[string]any{"fn": body.node}, c.node)}
}

func (c Collection) reduce(reducer string) Image {
	return Image{newNode(OpReduce, map[string]any{"reducer": reducer}, c.node)}
}

// Size counts the scenes left in the collection. Backends evaluate it through Count.
func (c Collection) Size() *Node {
	return newNode(OpSize, nil, c.node)
}

// Median reduces the collection pixel-wise over unmasked observations.
func (c Collection) Median() Image { return c.reduce(ReducerMedian) }

// Mean reduces the collection pixel-wise over unmasked observations.
func (c Collection) Mean() Image { return c.reduce(ReducerMean) }

func (i Image) Select(bands ...string) Image {
	return Image{newNode(OpSelect, map[string]any{"bands": append([]string(nil), bands...)}, i.node)}
}

func (i Image) BitwiseAnd(mask int64) Image {
	return Image{newNode(OpBitwiseAnd, map[string]any{"value": mask}, i.node)}
}

// Eq yields 1 where the pixel equals v, 0 elsewhere.
func (i Image) Eq(v float64) Image {
	return Image{newNode(OpEq, map[string]any{"value": v}, i.node)}
}

// Gt yields 1 where the pixel is strictly above v, 0 elsewhere.
func (i Image) Gt(v float64) Image {
	return Image{newNode(OpGt, map[string]any{"value": v}, i.node)}
}

// And yields 1 where both operands are non-zero, 0 elsewhere. No data in either stays no data.
func (i Image) And(o Image) Image {
	return Image{newNode(OpAnd, nil, i.node, o.node)}
}

// UpdateMask hides every pixel where mask is zero or has no data.
func (i Image) UpdateMask(mask Image) Image {
	return Image{newNode(OpUpdateMask, nil, i.node, mask.node)}
}

// NormalizedDifference computes (a - b) / (a + b) into a band named "nd".
func (i Image) NormalizedDifference(a, b string) Image {
	return Image{newNode(OpNormalizedDifference, map[string]any{"bands": []string{a, b}}, i.node)}
}

// Subtract computes i - o pixel-wise.
func (i Image) Subtract(o Image) Image {
	return Image{newNode(OpSubtract, nil, i.node, o.node)}
}

// Clip hides every pixel outside r.
func (i Image) Clip(r model.Region) Image {
	return Image{newNode(OpClip, map[string]any{"geometry": r}, i.node)}
}

func (i Image) Rename(name string) Image {
	return Image{newNode(OpRename, map[string]any{"name": name}, i.node)}
}
