package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/serjvanilla/go-overpass"

	"snowdiff_service/internal/domain/model"
)

// RegionSource resolves analysis regions from OpenStreetMap.
type RegionSource interface {
	RegionFromWay(ctx context.Context, wayID int64) (model.Region, error)
}

type OverpassRegionSource struct {
	client  *overpass.Client
	timeout time.Duration
}

func NewOverpassRegionSource(endpoint string, timeout time.Duration) *OverpassRegionSource {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRegionSource{
		client:  &client,
		timeout: timeout,
	}
}

// RegionFromWay builds a Region from a closed OSM way, e.g. a park or glacier outline.
func (r *OverpassRegionSource) RegionFromWay(ctx context.Context, wayID int64) (model.Region, error) {
	query := fmt.Sprintf(`
		[out:json];
		way(%d);
		out body;
		>;
		out skel qt;
	`, wayID)

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return model.Region{}, fmt.Errorf("failed to execute way query: %w", err)
	}

	way, ok := result.Ways[wayID]
	if !ok {
		return model.Region{}, fmt.Errorf("%w: way %d not found", model.ErrInvalidRequest, wayID)
	}
	return wayToRegion(way)
}

func (r *OverpassRegionSource) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.client.Query(query)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query aborted: %w", ctx.Err())
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", o.err)
		}
		return &o.result, nil
	}
}

func wayToRegion(way *overpass.Way) (model.Region, error) {
	ring := make(orb.Ring, 0, len(way.Nodes))
	for _, node := range way.Nodes {
		if node == nil {
			continue
		}
		ring = append(ring, orb.Point{node.Lon, node.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		return model.Region{}, fmt.Errorf("%w: way %d is not a closed outline", model.ErrInvalidRequest, way.ID)
	}
	return model.NewRegion(ring)
}
