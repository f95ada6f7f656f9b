package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/domain/repository"
	"snowdiff_service/internal/log"
	"snowdiff_service/internal/metrics"
)

// Run outcomes, as recorded and counted.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusEmpty   = "empty"
	StatusInvalid = "invalid"
)

const (
	exportCRS    = "EPSG:3857"
	exportFormat = "GeoTIFF"
)

type Service struct {
	backend  Backend
	recorder repository.AnalysisRecorder
	saveRuns bool
	metrics  *metrics.Metrics
}

func NewService(
	backend Backend,
	recorder repository.AnalysisRecorder,
	saveRuns bool,
	m *metrics.Metrics,
) *Service {
	return &Service{
		backend:  backend,
		recorder: recorder,
		saveRuns: saveRuns,
		metrics:  m,
	}
}

// ExportResult is a ready download link for one layer.
type ExportResult struct {
	Layer string  `json:"layer"`
	URL   string  `json:"url"`
	Scale float64 `json:"scale"`
	Raw   bool    `json:"raw"`
}

// Analyze builds the plan for req and materializes its three layers.
//
// Request errors surface before the backend is touched. An index composite without
// valid pixels in the region stops the run with an EmptyCompositeError. Otherwise
// every layer is materialized on its own: the result carries each layer's tiles or
// error, and the returned error joins the layer errors.
func (s *Service) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error) {
	plan, err := BuildPlan(req)
	if err != nil {
		s.metrics.IncrementOutcome(StatusInvalid)
		return nil, err
	}

	result := &model.AnalysisResult{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		View:      MapView(plan.Request.Region),
	}
	log.Infow("analysis started",
		"id", result.ID,
		"historical", plan.Request.Historical.String(),
		"recent", plan.Request.Recent.String(),
		"area_km2", BoundAreaKm2(plan.Request.Region),
	)

	stats, scenes, err := s.checkComposites(ctx, plan)
	if err != nil {
		status := StatusFailed
		if errors.Is(err, model.ErrNoQualifyingImagery) {
			status = StatusEmpty
		}
		log.Warnw("analysis stopped", "id", result.ID, "status", status, "error", err)
		s.finish(ctx, plan, result, status, err)
		return nil, err
	}
	result.Scenes = scenes

	result.Layers = s.materialize(ctx, plan, stats)

	var layerErrs []error
	for _, l := range result.Layers {
		if l.Err != nil {
			log.Warnw("layer failed", "id", result.ID, "layer", l.Name, "error", l.Err)
			layerErrs = append(layerErrs, l.Err)
		}
	}

	status := StatusOK
	switch {
	case len(layerErrs) == len(result.Layers):
		status = StatusFailed
	case len(layerErrs) > 0:
		status = StatusPartial
	}
	err = errors.Join(layerErrs...)
	s.finish(ctx, plan, result, status, err)
	log.Infow("analysis finished", "id", result.ID, "status", status)
	return result, err
}

// checkComposites counts the scenes of both periods and verifies both index composites
// have data in the region, concurrently. A period without scenes skips the statistics call.
func (s *Service) checkComposites(ctx context.Context, plan *Plan) (map[string]model.RasterStats, map[string]int64, error) {
	opts := model.StatsOptions{Region: plan.Request.Region, Scale: ExportScale(plan.Request.Region).Scale}

	var mu sync.Mutex
	stats := make(map[string]model.RasterStats, 2)
	scenes := make(map[string]int64, 2)

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range []string{model.LayerHistorical, model.LayerRecent} {
		name := name
		layer, err := plan.Layer(name)
		if err != nil {
			return nil, nil, err
		}
		g.Go(func() error {
			n, err := s.backend.Count(ctx, plan.Scenes[name].Size())
			if err != nil {
				return model.WithLayer(err, name)
			}
			log.Debugw("scenes selected", "layer", name, "scenes", n)
			mu.Lock()
			scenes[name] = n
			mu.Unlock()

			var st model.RasterStats
			if n > 0 {
				if st, err = s.backend.Stats(ctx, layer.Raster.Node(), opts); err != nil {
					return model.WithLayer(err, name)
				}
			}
			if st.ValidPixels == 0 {
				s.metrics.IncrementEmptyComposite(name)
				return &model.EmptyCompositeError{Layer: name, Scenes: n}
			}
			mu.Lock()
			stats[name] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return stats, scenes, nil
}

// materialize fetches tiles for every layer and statistics for the difference layer.
// Layers do not share a cancellation scope, so one failing leaves the others running.
func (s *Service) materialize(ctx context.Context, plan *Plan, known map[string]model.RasterStats) []model.LayerResult {
	opts := model.StatsOptions{Region: plan.Request.Region, Scale: ExportScale(plan.Request.Region).Scale}
	out := make([]model.LayerResult, len(plan.Layers))

	var g errgroup.Group
	for i, layer := range plan.Layers {
		i, layer := i, layer
		out[i] = model.LayerResult{Name: layer.Name, Title: layer.Title, Style: layer.Style}
		if st, ok := known[layer.Name]; ok {
			out[i].Stats = &st
		}
		g.Go(func() error {
			res := &out[i]
			if res.Stats == nil {
				st, err := s.backend.Stats(ctx, layer.Raster.Node(), opts)
				if err != nil {
					res.SetErr(model.WithLayer(err, layer.Name))
					return nil
				}
				res.Stats = &st
			}
			tiles, err := s.backend.MapID(ctx, layer.Raster.Node(), layer.Style)
			if err != nil {
				res.SetErr(model.WithLayer(err, layer.Name))
				return nil
			}
			res.Tiles = &tiles
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Export returns a download URL for one layer of plan, snow-cover layers included. Raw
// exports carry index values, otherwise the layer's color ramp is burned in. When the
// backend rejects the size, the scale is doubled for as long as it is below maxExportScale.
func (s *Service) Export(ctx context.Context, plan *Plan, layerName string, raw bool) (ExportResult, error) {
	layer, err := plan.Layer(layerName)
	if err != nil {
		return ExportResult{}, err
	}

	ep := ExportScale(plan.Request.Region)
	for {
		opts := model.ExportOptions{
			Region:    plan.Request.Region,
			Scale:     ep.Scale,
			MaxPixels: ep.MaxPixels,
			CRS:       exportCRS,
			Format:    exportFormat,
		}
		if !raw {
			style := layer.Style
			opts.Visualize = &style
		}

		url, err := s.backend.DownloadURL(ctx, layer.Raster.Node(), opts)
		if err == nil {
			log.Infow("export ready", "layer", layer.Name, "scale", ep.Scale, "raw", raw)
			return ExportResult{Layer: layer.Name, URL: url, Scale: ep.Scale, Raw: raw}, nil
		}
		if !errors.Is(err, model.ErrExportTooLarge) || ep.Scale >= maxExportScale {
			return ExportResult{}, model.WithLayer(err, layer.Name)
		}

		log.Warnw("export too large, coarsening", "layer", layer.Name, "scale", ep.Scale, "next_scale", ep.Scale*2)
		ep.Scale *= 2
		ep.MaxPixels /= 4
	}
}

func (s *Service) finish(ctx context.Context, plan *Plan, result *model.AnalysisResult, status string, runErr error) {
	s.metrics.IncrementOutcome(status)
	if !s.saveRuns || s.recorder == nil {
		return
	}

	rec := repository.AnalysisRecord{
		ID:      result.ID,
		Request: plan.Request.AnalysisRequest,
		Layers:  result.Layers,
		Status:  status,
		Err:     runErr,
	}
	// Recorded even when the request context is already cancelled.
	if err := s.recorder.RecordAnalysis(context.WithoutCancel(ctx), rec); err != nil {
		log.Errorw("failed to record analysis", "id", result.ID, "error", err)
	}
}
