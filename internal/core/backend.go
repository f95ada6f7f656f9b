package core

import (
	"context"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
)

// Backend materializes deferred graphs. Every method may block on network I/O.
type Backend interface {
	Stats(ctx context.Context, expr *graph.Node, opts model.StatsOptions) (model.RasterStats, error)
	// Count evaluates a collection size expression built by graph.Collection.Size.
	Count(ctx context.Context, expr *graph.Node) (int64, error)
	MapID(ctx context.Context, expr *graph.Node, style model.LayerStyle) (model.TileSource, error)
	DownloadURL(ctx context.Context, expr *graph.Node, opts model.ExportOptions) (string, error)
}
