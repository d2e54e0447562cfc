package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"fieldline/internal/types"
)

// extractBoundaries traces field boundaries out of the classified raster:
// Canny edge detection, binarization of the edge strength, vectorization of
// the connected edge regions within the survey rectangle, and a download of
// the resulting GeoJSON.
//
// An empty vector set is a valid outcome (a uniform landscape has no
// boundaries); it is logged but not treated as an error.
func (p *Pipeline) extractBoundaries(ctx context.Context, logger *slog.Logger, params types.RunParams, raster *types.ClassificationRaster) (*types.BoundaryVectorSet, error) {
	edges, err := p.platform.CannyEdges(ctx, raster.AssetID, params.EdgeThreshold, params.EdgeSigma)
	if err != nil {
		return nil, fmt.Errorf("detecting edges: %w", err)
	}

	binary, err := p.platform.Threshold(ctx, edges, raster.Band, params.BinarizeThreshold)
	if err != nil {
		return nil, fmt.Errorf("binarizing edge strength: %w", err)
	}

	vectors, err := p.platform.Vectorize(ctx, binary, params.AOI, params.Scale, params.TileScale)
	if err != nil {
		return nil, fmt.Errorf("vectorizing boundaries: %w", err)
	}

	p.metrics.RecordBoundaryFeatures(ctx, vectors.FeatureCount)

	if vectors.Empty() {
		logger.WarnContext(ctx, "vectorization produced no boundary features",
			"vector_id", vectors.VectorID,
		)
		vectors.GeoJSON = []byte(emptyFeatureCollection)
		return vectors, nil
	}

	geo, err := p.platform.FetchVectors(ctx, vectors.VectorID)
	if err != nil {
		return nil, fmt.Errorf("fetching boundary vectors: %w", err)
	}
	vectors.GeoJSON = geo

	logger.InfoContext(ctx, "boundaries extracted",
		"vector_id", vectors.VectorID,
		"features", vectors.FeatureCount,
		"geojson_bytes", len(vectors.GeoJSON),
	)

	return vectors, nil
}

// emptyFeatureCollection is the GeoJSON body used when vectorization finds
// nothing, so downstream consumers always receive a valid FeatureCollection.
const emptyFeatureCollection = `{"type":"FeatureCollection","features":[]}`
