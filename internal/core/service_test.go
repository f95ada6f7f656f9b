package core_test

//go:generate mockgen -source=backend.go -destination=mocks/backend.go -package=mocks Backend
//go:generate mockgen -source=../domain/repository/postgres.go -destination=mocks/recorder.go -package=mocks AnalysisRecorder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"snowdiff_service/internal/core"
	"snowdiff_service/internal/core/mocks"
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/domain/repository"
	"snowdiff_service/internal/graph"
	"snowdiff_service/internal/metrics"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	backend  *mocks.MockBackend
	recorder *mocks.MockAnalysisRecorder
	metrics  *metrics.Metrics
	service  *core.Service
	req      model.AnalysisRequest
	plan     *core.Plan
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = mocks.NewMockBackend(s.ctrl)
	s.recorder = mocks.NewMockAnalysisRecorder(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = core.NewService(s.backend, s.recorder, true, s.metrics)

	region, err := model.NewRegion(orb.Ring{{10.1, 49.1}, {10.9, 49.1}, {10.9, 49.9}, {10.1, 49.9}, {10.1, 49.1}})
	s.Require().NoError(err)
	hist, err := model.NewTimePeriod("1995-01-01", "2000-01-01", 1)
	s.Require().NoError(err)
	recent, err := model.NewTimePeriod("2018-01-01", "2023-01-01", 1)
	s.Require().NoError(err)

	s.req = model.AnalysisRequest{
		Region:               region,
		Historical:           hist,
		Recent:               recent,
		HistoricalCollection: model.CollectionLandsat5,
		RecentCollection:     model.CollectionLandsat8,
		CloudCover:           20,
		ClipToRegion:         true,
	}
	s.plan, err = core.BuildPlan(s.req)
	s.Require().NoError(err)
}

// layerOf maps an expression back to the plan layer it renders.
func (s *ServiceSuite) layerOf(expr *graph.Node) string {
	for _, l := range s.plan.Layers {
		if l.Raster.Node().Fingerprint() == expr.Fingerprint() {
			return l.Name
		}
	}
	return "unknown"
}

// periodOf maps a scene count expression back to the index layer it feeds.
func (s *ServiceSuite) periodOf(expr *graph.Node) string {
	for name, c := range s.plan.Scenes {
		if c.Size().Fingerprint() == expr.Fingerprint() {
			return name
		}
	}
	return "unknown"
}

func (s *ServiceSuite) scenesFor(counts map[string]int64) {
	s.backend.EXPECT().Count(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, expr *graph.Node) (int64, error) {
			s.Equal(graph.OpSize, expr.Op())
			n, ok := counts[s.periodOf(expr)]
			if !ok {
				n = 12
			}
			return n, nil
		}).AnyTimes()
}

func (s *ServiceSuite) statsFor(valid map[string]int64) {
	s.backend.EXPECT().Stats(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, expr *graph.Node, opts model.StatsOptions) (model.RasterStats, error) {
			s.Equal(30.0, opts.Scale)
			n, ok := valid[s.layerOf(expr)]
			if !ok {
				n = 100
			}
			return model.RasterStats{ValidPixels: n, Min: -0.2, Max: 0.9, Mean: 0.4}, nil
		}).AnyTimes()
}

func (s *ServiceSuite) mapIDs(fail map[string]error) {
	s.backend.EXPECT().MapID(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, expr *graph.Node, style model.LayerStyle) (model.TileSource, error) {
			name := s.layerOf(expr)
			if err := fail[name]; err != nil {
				return model.TileSource{}, err
			}
			return model.TileSource{MapID: "map-" + name, URLFormat: "https://tiles/" + name + "/{z}/{x}/{y}"}, nil
		}).AnyTimes()
}

func (s *ServiceSuite) expectRecord(status string) {
	s.recorder.EXPECT().RecordAnalysis(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec repository.AnalysisRecord) error {
			s.Equal(status, rec.Status)
			s.Equal(s.req.HistoricalCollection, rec.Request.HistoricalCollection)
			return nil
		})
}

func (s *ServiceSuite) TestAnalyzeMaterializesEveryLayer() {
	s.scenesFor(nil)
	s.statsFor(nil)
	s.mapIDs(nil)
	s.expectRecord(core.StatusOK)

	result, err := s.service.Analyze(context.Background(), s.req)
	s.Require().NoError(err)

	s.Require().Len(result.Layers, 3)
	for i, l := range result.Layers {
		s.Equal(model.LayerNames()[i], l.Name)
		s.Require().NotNil(l.Tiles, l.Name)
		s.Equal("map-"+l.Name, l.Tiles.MapID)
		s.Require().NotNil(l.Stats, l.Name)
		s.EqualValues(100, l.Stats.ValidPixels)
		s.Empty(l.Error)
	}
	s.NotEqual(model.MapView{}, result.View)
	s.Empty(result.Failed())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AnalysisOutcome.WithLabelValues(core.StatusOK)))
}

func (s *ServiceSuite) TestInvalidRequestNeverReachesBackend() {
	req := s.req
	req.RecentCollection = "LANDSAT/FAKE"

	result, err := s.service.Analyze(context.Background(), req)
	s.Nil(result)
	s.ErrorIs(err, model.ErrUnsupportedCollection)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AnalysisOutcome.WithLabelValues(core.StatusInvalid)))
}

func (s *ServiceSuite) TestEmptyHistoricalCompositeStopsRun() {
	s.scenesFor(nil)
	s.statsFor(map[string]int64{model.LayerHistorical: 0})
	s.expectRecord(core.StatusEmpty)

	result, err := s.service.Analyze(context.Background(), s.req)
	s.Nil(result)
	s.ErrorIs(err, model.ErrNoQualifyingImagery)

	var empty *model.EmptyCompositeError
	s.Require().ErrorAs(err, &empty)
	s.Equal(model.LayerHistorical, empty.Layer)
	s.EqualValues(12, empty.Scenes)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EmptyComposites.WithLabelValues(model.LayerHistorical)))
}

func (s *ServiceSuite) TestPeriodWithoutScenesSkipsStats() {
	s.scenesFor(map[string]int64{model.LayerRecent: 0})
	s.backend.EXPECT().Stats(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, expr *graph.Node, _ model.StatsOptions) (model.RasterStats, error) {
			s.NotEqual(model.LayerRecent, s.layerOf(expr))
			return model.RasterStats{ValidPixels: 100}, nil
		}).AnyTimes()
	s.expectRecord(core.StatusEmpty)

	_, err := s.service.Analyze(context.Background(), s.req)
	var empty *model.EmptyCompositeError
	s.Require().ErrorAs(err, &empty)
	s.Equal(model.LayerRecent, empty.Layer)
	s.Zero(empty.Scenes)
	s.Contains(err.Error(), "0 scenes matched")
}

func (s *ServiceSuite) TestSceneCountsAreReported() {
	s.scenesFor(map[string]int64{model.LayerHistorical: 7, model.LayerRecent: 31})
	s.statsFor(nil)
	s.mapIDs(nil)
	s.expectRecord(core.StatusOK)

	result, err := s.service.Analyze(context.Background(), s.req)
	s.Require().NoError(err)
	s.Equal(map[string]int64{model.LayerHistorical: 7, model.LayerRecent: 31}, result.Scenes)
}

func (s *ServiceSuite) TestCountFailureSurfacesLayer() {
	s.backend.EXPECT().Count(gomock.Any(), gomock.Any()).
		Return(int64(0), &model.RemoteError{Request: "count", StatusCode: 400, Err: errors.New("bad collection")}).
		MinTimes(1)
	s.expectRecord(core.StatusFailed)

	result, err := s.service.Analyze(context.Background(), s.req)
	s.Nil(result)
	var re *model.RemoteError
	s.Require().ErrorAs(err, &re)
	s.Equal("count", re.Request)
	s.Contains([]string{model.LayerHistorical, model.LayerRecent}, re.Layer)
}

func (s *ServiceSuite) TestLayerFailureIsReportedPerLayer() {
	remote := &model.RemoteError{Request: "map", StatusCode: 500, Transient: true, Err: errors.New("backend exploded")}
	s.scenesFor(nil)
	s.statsFor(nil)
	s.mapIDs(map[string]error{model.LayerDifference: remote})
	s.expectRecord(core.StatusPartial)

	result, err := s.service.Analyze(context.Background(), s.req)
	s.Require().Error(err)
	s.Require().NotNil(result)

	var re *model.RemoteError
	s.Require().ErrorAs(err, &re)
	s.Equal(model.LayerDifference, re.Layer)

	failed := result.Failed()
	s.Require().Len(failed, 1)
	s.Equal(model.LayerDifference, failed[0].Name)
	s.Contains(failed[0].Error, "backend exploded")

	s.NotNil(result.Layers[0].Tiles)
	s.NotNil(result.Layers[1].Tiles)
}

func (s *ServiceSuite) TestAllLayersFailing() {
	boom := &model.RemoteError{Request: "map", Err: errors.New("down")}
	s.scenesFor(nil)
	s.statsFor(nil)
	s.mapIDs(map[string]error{
		model.LayerHistorical: boom,
		model.LayerRecent:     boom,
		model.LayerDifference: boom,
	})
	s.expectRecord(core.StatusFailed)

	result, err := s.service.Analyze(context.Background(), s.req)
	s.Require().Error(err)
	s.Len(result.Failed(), 3)
}

func (s *ServiceSuite) TestStatsFailureSurfacesLayer() {
	s.scenesFor(nil)
	s.backend.EXPECT().Stats(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.RasterStats{}, &model.RemoteError{Request: "stats", StatusCode: 400, Err: errors.New("bad expression")}).
		MinTimes(1)
	s.expectRecord(core.StatusFailed)

	_, err := s.service.Analyze(context.Background(), s.req)
	var re *model.RemoteError
	s.Require().ErrorAs(err, &re)
	s.Contains([]string{model.LayerHistorical, model.LayerRecent}, re.Layer)
}

func (s *ServiceSuite) TestRecorderFailureDoesNotFailRun() {
	s.scenesFor(nil)
	s.statsFor(nil)
	s.mapIDs(nil)
	s.recorder.EXPECT().RecordAnalysis(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	result, err := s.service.Analyze(context.Background(), s.req)
	s.NoError(err)
	s.NotNil(result)
}

func (s *ServiceSuite) TestRunsAreNotRecordedWhenDisabled() {
	svc := core.NewService(s.backend, s.recorder, false, nil)
	s.scenesFor(nil)
	s.statsFor(nil)
	s.mapIDs(nil)

	_, err := svc.Analyze(context.Background(), s.req)
	s.NoError(err)
}

func (s *ServiceSuite) TestExportCoarsensUntilAccepted() {
	tooLarge := &model.RemoteError{Request: "export", StatusCode: 400, Err: fmt.Errorf("%w: 2e9 pixels", model.ErrExportTooLarge)}
	var scales []float64
	var pixels []int64
	s.backend.EXPECT().DownloadURL(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, expr *graph.Node, opts model.ExportOptions) (string, error) {
			s.Equal(model.LayerDifference, s.layerOf(expr))
			s.Equal("EPSG:3857", opts.CRS)
			s.Require().NotNil(opts.Visualize)
			scales = append(scales, opts.Scale)
			pixels = append(pixels, opts.MaxPixels)
			if opts.Scale < 120 {
				return "", tooLarge
			}
			return "https://exports/diff.tif", nil
		}).Times(3)

	res, err := s.service.Export(context.Background(), s.plan, model.LayerDifference, false)
	s.Require().NoError(err)
	s.Equal("https://exports/diff.tif", res.URL)
	s.Equal(120.0, res.Scale)
	s.Equal([]float64{30, 60, 120}, scales)
	s.Equal([]int64{1e9, 25e7, 625e5}, pixels)
}

func (s *ServiceSuite) TestExportGivesUpPastMaxScale() {
	s.backend.EXPECT().DownloadURL(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", &model.RemoteError{Request: "export", Err: model.ErrExportTooLarge}).
		Times(7) // 30, 60, 120, 240, 480, 960, 1920

	_, err := s.service.Export(context.Background(), s.plan, model.LayerRecent, true)
	s.ErrorIs(err, model.ErrExportTooLarge)
}

func (s *ServiceSuite) TestRawExportHasNoVisualization() {
	s.backend.EXPECT().DownloadURL(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *graph.Node, opts model.ExportOptions) (string, error) {
			s.Nil(opts.Visualize)
			return "https://exports/raw.tif", nil
		})

	res, err := s.service.Export(context.Background(), s.plan, model.LayerHistorical, true)
	s.Require().NoError(err)
	s.True(res.Raw)
}

func (s *ServiceSuite) TestExportOtherErrorsAreNotRetried() {
	s.backend.EXPECT().DownloadURL(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", &model.RemoteError{Request: "export", StatusCode: 401, Err: errors.New("unauthorized")}).
		Times(1)

	_, err := s.service.Export(context.Background(), s.plan, model.LayerRecent, false)
	var re *model.RemoteError
	s.Require().ErrorAs(err, &re)
	s.Equal(model.LayerRecent, re.Layer)
}

func (s *ServiceSuite) TestExportSnowCoverLayer() {
	s.backend.EXPECT().DownloadURL(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, expr *graph.Node, opts model.ExportOptions) (string, error) {
			s.Equal(graph.OpRename, expr.Op())
			name, err := expr.StringParam("name")
			s.Require().NoError(err)
			s.Equal(core.SnowCoverBand, name)
			s.Require().NotNil(opts.Visualize)
			s.Equal([]string{"#a52a2a", "#ffffff"}, opts.Visualize.Palette)
			return "https://exports/snow.tif", nil
		})

	res, err := s.service.Export(context.Background(), s.plan, model.LayerRecentSnow, false)
	s.Require().NoError(err)
	s.Equal(model.LayerRecentSnow, res.Layer)
}

func (s *ServiceSuite) TestExportUnknownLayer() {
	_, err := s.service.Export(context.Background(), s.plan, "elevation", false)
	s.ErrorIs(err, model.ErrUnknownLayer)
}
