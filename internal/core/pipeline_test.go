package core

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

func testRegion(t *testing.T) model.Region {
	t.Helper()
	r, err := model.NewRegion(orb.Ring{{10.1, 49.1}, {10.9, 49.1}, {10.9, 49.9}, {10.1, 49.9}, {10.1, 49.1}})
	require.NoError(t, err)
	return r
}

func testPeriod(t *testing.T, start, end string) model.TimePeriod {
	t.Helper()
	p, err := model.NewTimePeriod(start, end, 1)
	require.NoError(t, err)
	return p
}

func testRequest(t *testing.T) model.AnalysisRequest {
	return model.AnalysisRequest{
		Region:               testRegion(t),
		Historical:           testPeriod(t, "1995-01-01", "2000-01-01"),
		Recent:               testPeriod(t, "2018-01-01", "2023-01-01"),
		HistoricalCollection: model.CollectionLandsat5,
		RecentCollection:     model.CollectionLandsat8,
		CloudCover:           20,
		ClipToRegion:         true,
	}
}

// find returns the first node with op reachable from n.
func find(n *graph.Node, op graph.Op) *graph.Node {
	var found *graph.Node
	n.Walk(func(c *graph.Node) {
		if found == nil && c.Op() == op {
			found = c
		}
	})
	return found
}

func TestBuildPlanProducesThreeStyledLayers(t *testing.T) {
	plan, err := BuildPlan(testRequest(t))
	require.NoError(t, err)

	require.Len(t, plan.Layers, 3)
	assert.Equal(t, model.LayerNames(), []string{plan.Layers[0].Name, plan.Layers[1].Name, plan.Layers[2].Name})

	for _, l := range plan.Layers[:2] {
		assert.Equal(t, 0.0, l.Style.Min, l.Name)
		assert.Equal(t, 1.0, l.Style.Max, l.Name)
	}
	assert.Equal(t, -1.0, plan.Layers[2].Style.Min)
	assert.Equal(t, 1.0, plan.Layers[2].Style.Max)
	assert.Equal(t, "#b2182b", plan.Layers[2].Style.Palette[len(plan.Layers[2].Style.Palette)-1], "increase is red")
}

func TestBuildPlanUsesEachPeriodsSensorBands(t *testing.T) {
	plan, err := BuildPlan(testRequest(t))
	require.NoError(t, err)

	hist := find(plan.Historical.Image.Node(), graph.OpNormalizedDifference)
	require.NotNil(t, hist)
	bands, err := hist.StringsParam("bands")
	require.NoError(t, err)
	assert.Equal(t, []string{"SR_B2", "SR_B5"}, bands)

	recent := find(plan.Recent.Image.Node(), graph.OpNormalizedDifference)
	require.NotNil(t, recent)
	bands, err = recent.StringsParam("bands")
	require.NoError(t, err)
	assert.Equal(t, []string{"SR_B3", "SR_B6"}, bands)

	load := find(plan.Historical.Image.Node(), graph.OpLoadCollection)
	id, err := load.StringParam("id")
	require.NoError(t, err)
	assert.Equal(t, model.CollectionLandsat5, id)
}

func TestBuildPlanRejectsUnknownCollectionBeforeBuilding(t *testing.T) {
	req := testRequest(t)
	req.RecentCollection = "LANDSAT/FAKE"

	plan, err := BuildPlan(req)
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, model.ErrUnsupportedCollection)
}

func TestBuildPlanRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.AnalysisRequest)
		field  string
	}{
		{"missing region", func(r *model.AnalysisRequest) { r.Region = model.Region{} }, "region"},
		{"cloud cover above 100", func(r *model.AnalysisRequest) { r.CloudCover = 101 }, "cloud_cover"},
		{"negative cloud cover", func(r *model.AnalysisRequest) { r.CloudCover = -1 }, "cloud_cover"},
		{"same periods", func(r *model.AnalysisRequest) { r.Recent = r.Historical }, "recent"},
		{"bad month", func(r *model.AnalysisRequest) { r.Historical.Month = 13 }, "historical.month"},
		{"bad palette", func(r *model.AnalysisRequest) {
			r.Styles.Difference = &model.LayerStyle{Palette: []string{"notacolor", "red"}, Min: -1, Max: 1}
		}, "styles.difference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t)
			tt.mutate(&req)

			_, err := BuildPlan(req)
			require.ErrorIs(t, err, model.ErrInvalidRequest)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestClipFlagAppliesToAllLayers(t *testing.T) {
	for _, clip := range []bool{true, false} {
		req := testRequest(t)
		req.ClipToRegion = clip
		plan, err := BuildPlan(req)
		require.NoError(t, err)

		want := 0
		if clip {
			want = 1
		}
		for _, l := range plan.Layers {
			assert.Equal(t, want, l.Raster.Node().Count(graph.OpClip), "%s clip=%v", l.Name, clip)
		}
		assert.Equal(t, clip, plan.Difference.Clipped)
	}
}

func TestStyleOverridesAreResolved(t *testing.T) {
	req := testRequest(t)
	req.Styles.Recent = &model.LayerStyle{Palette: []string{"black", "white"}, Min: 0.2, Max: 0.8}

	plan, err := BuildPlan(req)
	require.NoError(t, err)

	l, err := plan.Layer(model.LayerRecent)
	require.NoError(t, err)
	assert.Equal(t, []string{"#000000", "#ffffff"}, l.Style.Palette)
	assert.Equal(t, 0.2, l.Style.Min)

	_, err = plan.Layer("elevation")
	assert.ErrorIs(t, err, model.ErrUnknownLayer)
}

func TestSelectScenesFilterChain(t *testing.T) {
	p := testPeriod(t, "2018-01-01", "2023-01-01")
	c := SelectScenes(SceneQuery{
		CollectionID: model.CollectionLandsat8,
		Region:       testRegion(t),
		Period:       p,
		CloudCover:   0,
	})

	meta := c.Node()
	require.Equal(t, graph.OpFilterMetadata, meta.Op())
	prop, _ := meta.StringParam("property")
	op, _ := meta.StringParam("operator")
	v, _ := meta.FloatParam("value")
	assert.Equal(t, CloudCoverProperty, prop)
	assert.Equal(t, graph.CmpLessOrEqual, op)
	assert.Zero(t, v)

	month := meta.Input(0)
	require.Equal(t, graph.OpFilterMonth, month.Op())
	m, _ := month.IntParam("month")
	assert.EqualValues(t, time.January, m)

	dates := month.Input(0)
	require.Equal(t, graph.OpFilterDate, dates.Op())
	start, _ := dates.TimeParam("start")
	assert.True(t, start.Equal(p.Start))

	assert.Equal(t, graph.OpFilterBounds, dates.Input(0).Op())
}

func TestMaskCloudsUsesProfileBits(t *testing.T) {
	tests := []struct {
		collection string
		mask       int64
	}{
		{model.CollectionLandsat5, 1<<3 | 1<<4},
		{model.CollectionLandsat7, 1<<3 | 1<<4},
		{model.CollectionLandsat8, 1<<2 | 1<<3 | 1<<4},
		{model.CollectionLandsat9, 1<<2 | 1<<3 | 1<<4},
	}
	for _, tt := range tests {
		p, err := model.LookupSensor(tt.collection)
		require.NoError(t, err)

		masked := MaskClouds(graph.LoadCollection(tt.collection).Median(), p)
		and := find(masked.Node(), graph.OpBitwiseAnd)
		require.NotNil(t, and)
		got, err := and.IntParam("value")
		require.NoError(t, err)
		assert.Equal(t, tt.mask, got, tt.collection)

		sel := find(masked.Node(), graph.OpSelect)
		bands, _ := sel.StringsParam("bands")
		assert.Equal(t, []string{"QA_PIXEL"}, bands)
	}
}

func TestDifferenceRejectsEqualPeriods(t *testing.T) {
	p := testPeriod(t, "2018-01-01", "2023-01-01")
	sensor, _ := model.LookupSensor(model.CollectionLandsat8)
	idx := IndexRaster{Image: graph.LoadCollection(model.CollectionLandsat8).Median(), Period: p, Sensor: sensor}

	_, err := Difference(idx, idx, testRegion(t), false)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestDifferenceIsRecentMinusHistorical(t *testing.T) {
	plan, err := BuildPlan(testRequest(t))
	require.NoError(t, err)

	sub := find(plan.Difference.Image.Node(), graph.OpSubtract)
	require.NotNil(t, sub)
	assert.Equal(t, plan.Recent.Image.Node().Input(0).Fingerprint(), sub.Input(0).Fingerprint())
}

func TestExportScale(t *testing.T) {
	square := func(side float64) model.Region {
		r, err := model.NewRegion(orb.Ring{{0, 0}, {side, 0}, {side, side}, {0, side}, {0, 0}})
		require.NoError(t, err)
		return r
	}
	tests := []struct {
		side      float64
		scale     float64
		maxPixels int64
	}{
		{0.5, 30, 1e9},
		{2, 120, 1e8},
		{4, 250, 5e7},
		{6, 500, 1e7},
	}
	for _, tt := range tests {
		got := ExportScale(square(tt.side))
		assert.Equal(t, tt.scale, got.Scale, "side %g", tt.side)
		assert.Equal(t, tt.maxPixels, got.MaxPixels, "side %g", tt.side)
	}
}

func TestMapView(t *testing.T) {
	v := MapView(testRegion(t))
	assert.InDelta(t, 49.5, v.Lat, 1e-9)
	assert.InDelta(t, 10.5, v.Lon, 1e-9)
	assert.Equal(t, 8, v.Zoom)
}

func TestBoundAreaKm2(t *testing.T) {
	r, err := model.NewRegion(orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 12319, BoundAreaKm2(r), 1)
}

func TestSnowCoverUsesSensorGreenBand(t *testing.T) {
	plan, err := BuildPlan(testRequest(t))
	require.NoError(t, err)

	for i, want := range map[int]string{0: "SR_B2", 1: "SR_B3"} {
		l := plan.SnowLayers[i]
		root := l.Raster.Node()
		require.Equal(t, graph.OpRename, root.Op(), l.Name)
		name, err := root.StringParam("name")
		require.NoError(t, err)
		assert.Equal(t, SnowCoverBand, name)

		and := root.Input(0)
		require.Equal(t, graph.OpAnd, and.Op())
		ndsiGt, err := and.Input(0).FloatParam("value")
		require.NoError(t, err)
		assert.Equal(t, SnowNDSIThreshold, ndsiGt)
		greenGt, err := and.Input(1).FloatParam("value")
		require.NoError(t, err)
		assert.Equal(t, float64(SnowGreenFloor), greenGt)

		bands, err := find(and.Input(1), graph.OpSelect).StringsParam("bands")
		require.NoError(t, err)
		assert.Equal(t, []string{want}, bands, l.Name)

		assert.Equal(t, 1, root.Count(graph.OpClip), "snow cover follows the clipped index")
		assert.Equal(t, []string{"#a52a2a", "#ffffff"}, l.Style.Palette)
	}

	l, err := plan.Layer(model.LayerHistoricalSnow)
	require.NoError(t, err)
	assert.Equal(t, plan.SnowLayers[0].Raster.Node().Fingerprint(), l.Raster.Node().Fingerprint())
	assert.Len(t, plan.Layers, 3)
}

func TestPlanKeepsSceneCollections(t *testing.T) {
	plan, err := BuildPlan(testRequest(t))
	require.NoError(t, err)

	require.Len(t, plan.Scenes, 2)
	for name, id := range map[string]string{
		model.LayerHistorical: model.CollectionLandsat5,
		model.LayerRecent:     model.CollectionLandsat8,
	} {
		c, ok := plan.Scenes[name]
		require.True(t, ok, name)
		assert.Equal(t, graph.OpFilterMetadata, c.Node().Op())
		load := find(c.Node(), graph.OpLoadCollection)
		require.NotNil(t, load)
		got, err := load.StringParam("id")
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}
