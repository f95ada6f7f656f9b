package localeval

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// PreviewURLFormat is where the API serves previews registered by MapID.
const PreviewURLFormat = "/api/previews/%s.png"

var errExportUnsupported = errors.New("exports need a remote evaluation service")

// Count evaluates a collection size expression.
func (e *Evaluator) Count(ctx context.Context, expr *graph.Node) (int64, error) {
	if expr == nil || expr.Op() != graph.OpSize {
		return 0, remote("count", fmt.Errorf("expected a %s expression", graph.OpSize))
	}
	scenes, err := e.EvaluateCollection(ctx, expr.Input(0))
	if err != nil {
		return 0, remote("count", err)
	}
	return int64(len(scenes)), nil
}

// Stats summarises the first band over pixels whose centers fall inside the region.
func (e *Evaluator) Stats(ctx context.Context, expr *graph.Node, opts model.StatsOptions) (model.RasterStats, error) {
	img, err := e.EvaluateImage(ctx, expr)
	if err != nil {
		return model.RasterStats{}, remote("stats", err)
	}
	_, band, err := img.First()
	if err != nil {
		return model.RasterStats{}, remote("stats", err)
	}

	g := img.Grid
	vals := make([]float64, 0, g.Len())
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v, ok := band.At(row*g.Width + col)
			if !ok {
				continue
			}
			if !opts.Region.IsZero() && !opts.Region.Contains(g.Center(col, row)) {
				continue
			}
			vals = append(vals, v)
		}
	}

	out := model.RasterStats{ValidPixels: int64(len(vals))}
	if len(vals) == 0 {
		return out, nil
	}
	out.Min = floats.Min(vals)
	out.Max = floats.Max(vals)
	out.Mean, out.StdDev = stat.MeanStdDev(vals, nil)
	if len(vals) == 1 || math.IsNaN(out.StdDev) {
		out.StdDev = 0
	}
	return out, nil
}

// MapID renders a PNG preview and registers it under the expression fingerprint.
func (e *Evaluator) MapID(ctx context.Context, expr *graph.Node, style model.LayerStyle) (model.TileSource, error) {
	img, err := e.EvaluateImage(ctx, expr)
	if err != nil {
		return model.TileSource{}, remote("map", err)
	}
	data, err := renderPNG(img, style)
	if err != nil {
		return model.TileSource{}, remote("map", err)
	}

	fp := expr.Fingerprint()
	if len(fp) > 16 {
		fp = fp[:16]
	}
	id := fmt.Sprintf("%s-%s", fp, styleKey(style))
	e.mu.Lock()
	e.previews[id] = data
	e.mu.Unlock()

	return model.TileSource{MapID: id, URLFormat: fmt.Sprintf(PreviewURLFormat, id)}, nil
}

// DownloadURL is not available in process.
func (e *Evaluator) DownloadURL(context.Context, *graph.Node, model.ExportOptions) (string, error) {
	return "", remote("export", errExportUnsupported)
}

func remote(request string, err error) error {
	return &model.RemoteError{Request: request, Err: err}
}

func styleKey(s model.LayerStyle) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%v|%g|%g", s.Palette, s.Min, s.Max)
	return fmt.Sprintf("%08x", h.Sum32())
}
