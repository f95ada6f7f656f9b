// Package localeval evaluates expression graphs in process against an in-memory archive.
// It backs offline development and lets tests check pixel results without a network.
package localeval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"snowdiff_service/internal/graph"
)

type value struct {
	image  *Raster
	scenes []Scene
	bands  []string // schema of a collection value
	isColl bool
}

// Evaluator is safe for concurrent use; each call evaluates its own graph.
type Evaluator struct {
	archive *Archive

	mu       sync.RWMutex
	previews map[string][]byte
}

func New(archive *Archive) *Evaluator {
	return &Evaluator{archive: archive, previews: make(map[string][]byte)}
}

// EvaluateImage computes an image expression.
func (e *Evaluator) EvaluateImage(ctx context.Context, n *graph.Node) (*Raster, error) {
	v, err := e.eval(ctx, n, nil)
	if err != nil {
		return nil, err
	}
	if v.isColl {
		return nil, fmt.Errorf("%s yields a collection, not an image", n.Op())
	}
	return v.image, nil
}

// EvaluateCollection computes a collection expression and returns the selected scenes.
func (e *Evaluator) EvaluateCollection(ctx context.Context, n *graph.Node) ([]Scene, error) {
	v, err := e.eval(ctx, n, nil)
	if err != nil {
		return nil, err
	}
	if !v.isColl {
		return nil, fmt.Errorf("%s yields an image, not a collection", n.Op())
	}
	return v.scenes, nil
}

func (e *Evaluator) eval(ctx context.Context, n *graph.Node, env map[string]*Raster) (value, error) {
	if err := ctx.Err(); err != nil {
		return value{}, err
	}
	if n == nil {
		return value{}, fmt.Errorf("nil expression")
	}

	switch n.Op() {
	case graph.OpLoadCollection:
		id, err := n.StringParam("id")
		if err != nil {
			return value{}, err
		}
		scenes, bands, err := e.archive.scenes(id)
		if err != nil {
			return value{}, err
		}
		return value{scenes: scenes, bands: bands, isColl: true}, nil

	case graph.OpFilterBounds, graph.OpFilterDate, graph.OpFilterMonth, graph.OpFilterMetadata:
		in, err := e.evalCollection(ctx, n.Input(0), env)
		if err != nil {
			return value{}, err
		}
		keep, err := sceneFilter(n)
		if err != nil {
			return value{}, err
		}
		out := value{bands: in.bands, isColl: true}
		for _, s := range in.scenes {
			if keep(s) {
				out.scenes = append(out.scenes, s)
			}
		}
		return out, nil

	case graph.OpMap:
		return e.evalMap(ctx, n, env)

	case graph.OpReduce:
		in, err := e.evalCollection(ctx, n.Input(0), env)
		if err != nil {
			return value{}, err
		}
		reducer, err := n.StringParam("reducer")
		if err != nil {
			return value{}, err
		}
		img, err := reduce(e.archive.Grid(), in.bands, in.scenes, reducer)
		if err != nil {
			return value{}, err
		}
		return value{image: img}, nil

	case graph.OpVariable:
		name, err := n.StringParam("name")
		if err != nil {
			return value{}, err
		}
		img, ok := env[name]
		if !ok {
			return value{}, fmt.Errorf("unbound variable %q", name)
		}
		return value{image: img}, nil
	}

	return e.evalImageOp(ctx, n, env)
}

func (e *Evaluator) evalCollection(ctx context.Context, n *graph.Node, env map[string]*Raster) (value, error) {
	v, err := e.eval(ctx, n, env)
	if err != nil {
		return value{}, err
	}
	if !v.isColl {
		return value{}, fmt.Errorf("expected a collection input")
	}
	return v, nil
}

func (e *Evaluator) evalImage(ctx context.Context, n *graph.Node, env map[string]*Raster) (*Raster, error) {
	v, err := e.eval(ctx, n, env)
	if err != nil {
		return nil, err
	}
	if v.isColl {
		return nil, fmt.Errorf("expected an image input")
	}
	return v.image, nil
}

// evalMap applies the lambda to every scene. The lambda also runs once on an all
// no-data template so an empty collection still knows its output bands.
func (e *Evaluator) evalMap(ctx context.Context, n *graph.Node, env map[string]*Raster) (value, error) {
	in, err := e.evalCollection(ctx, n.Input(0), env)
	if err != nil {
		return value{}, err
	}
	fn, err := n.FuncParam("fn")
	if err != nil {
		return value{}, err
	}

	apply := func(img *Raster) (*Raster, error) {
		scoped := make(map[string]*Raster, len(env)+1)
		for k, v := range env {
			scoped[k] = v
		}
		scoped[graph.SceneVariable] = img
		return e.evalImage(ctx, fn, scoped)
	}

	template := NewRaster(e.archive.Grid())
	for _, b := range in.bands {
		if err := template.AddBand(b, NewBand(template.Grid.Len())); err != nil {
			return value{}, err
		}
	}
	schema, err := apply(template)
	if err != nil {
		return value{}, fmt.Errorf("map: %w", err)
	}

	out := value{bands: schema.BandNames(), isColl: true}
	for _, s := range in.scenes {
		img, err := apply(s.Image)
		if err != nil {
			return value{}, fmt.Errorf("map over scene %q: %w", s.ID, err)
		}
		mapped := s
		mapped.Image = img
		out.scenes = append(out.scenes, mapped)
	}
	return out, nil
}

func sceneFilter(n *graph.Node) (func(Scene) bool, error) {
	switch n.Op() {
	case graph.OpFilterBounds:
		// Approximate: footprints are matched against the region's bounding box, so a
		// scene that only touches the box outside a concave polygon is still kept.
		region, err := n.RegionParam("geometry")
		if err != nil {
			return nil, err
		}
		rb := region.Bound()
		return func(s Scene) bool { return s.Footprint.Intersects(rb) }, nil

	case graph.OpFilterDate:
		start, err := n.TimeParam("start")
		if err != nil {
			return nil, err
		}
		end, err := n.TimeParam("end")
		if err != nil {
			return nil, err
		}
		return func(s Scene) bool { return !s.Acquired.Before(start) && s.Acquired.Before(end) }, nil

	case graph.OpFilterMonth:
		month, err := n.IntParam("month")
		if err != nil {
			return nil, err
		}
		return func(s Scene) bool { return int64(s.Acquired.Month()) == month }, nil

	case graph.OpFilterMetadata:
		prop, err := n.StringParam("property")
		if err != nil {
			return nil, err
		}
		op, err := n.StringParam("operator")
		if err != nil {
			return nil, err
		}
		want, err := n.FloatParam("value")
		if err != nil {
			return nil, err
		}
		cmp, err := comparator(op)
		if err != nil {
			return nil, err
		}
		return func(s Scene) bool {
			got, ok := s.Properties[prop]
			return ok && cmp(got, want)
		}, nil
	}
	return nil, fmt.Errorf("%s is not a scene filter", n.Op())
}

func comparator(op string) (func(a, b float64) bool, error) {
	switch op {
	case graph.CmpLessOrEqual:
		return func(a, b float64) bool { return a <= b }, nil
	case graph.CmpLess:
		return func(a, b float64) bool { return a < b }, nil
	case graph.CmpGreaterOrEqual:
		return func(a, b float64) bool { return a >= b }, nil
	case graph.CmpGreater:
		return func(a, b float64) bool { return a > b }, nil
	}
	return nil, fmt.Errorf("unknown comparison %q", op)
}

// reduce combines scenes band by band over valid observations only.
func reduce(g Grid, bands []string, scenes []Scene, reducer string) (*Raster, error) {
	var combine func([]float64) float64
	switch reducer {
	case graph.ReducerMedian:
		combine = median
	case graph.ReducerMean:
		combine = mean
	default:
		return nil, fmt.Errorf("unknown reducer %q", reducer)
	}

	out := NewRaster(g)
	obs := make([]float64, 0, len(scenes))
	for _, name := range bands {
		inputs := make([]*Band, 0, len(scenes))
		for _, s := range scenes {
			b, err := s.Image.Band(name)
			if err != nil {
				return nil, fmt.Errorf("scene %q: %w", s.ID, err)
			}
			inputs = append(inputs, b)
		}

		band := NewBand(g.Len())
		for i := 0; i < g.Len(); i++ {
			obs = obs[:0]
			for _, b := range inputs {
				if v, ok := b.At(i); ok {
					obs = append(obs, v)
				}
			}
			if len(obs) > 0 {
				band.Set(i, combine(obs))
			}
		}
		if err := out.AddBand(name, band); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// median of an even count is the mean of the two middle values. vals is reordered.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// Preview returns a PNG rendering registered by MapID.
func (e *Evaluator) Preview(mapID string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.previews[mapID]
	return b, ok
}
