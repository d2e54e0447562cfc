package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/montanaflynn/stats"

	"fieldline/internal/types"
)

// searchScenes queries the archive for scenes matching the run parameters.
// An empty match is fatal for the current parameters: nothing has been
// computed yet, and the caller has to widen the window or raise the cloud
// ceiling. This is the only stage allowed to reject a run as empty; every
// later stage operates on a collection known to be non-empty.
func (p *Pipeline) searchScenes(ctx context.Context, logger *slog.Logger, params types.RunParams) (*types.SceneCollection, types.CloudCoverStats, error) {
	scenes, err := p.platform.SearchScenes(ctx, params.Collection, params.AOI, params.Window, params.CloudCeiling)
	if err != nil {
		return nil, types.CloudCoverStats{}, fmt.Errorf("searching scenes: %w", err)
	}

	if scenes.Empty() {
		return nil, types.CloudCoverStats{}, types.NewAppErrorWithDetails(
			types.ErrCodeEmptyInputNoScenes,
			"no scenes matched the search; widen the time window or raise the cloud ceiling",
			nil,
			map[string]any{
				"collection":            params.Collection,
				"window_start":          params.Window.Start,
				"window_end":            params.Window.End,
				"cloud_ceiling_percent": params.CloudCeiling,
			},
		)
	}

	cover, err := cloudCoverStats(scenes.Scenes)
	if err != nil {
		return nil, types.CloudCoverStats{}, fmt.Errorf("summarizing cloud cover: %w", err)
	}

	p.metrics.RecordScenesMatched(ctx, params.Collection, len(scenes.Scenes))
	logger.InfoContext(ctx, "scene search complete",
		"collection_id", scenes.CollectionID,
		"scenes", len(scenes.Scenes),
		"cloud_cover_mean", cover.Mean,
		"cloud_cover_max", cover.Max,
	)

	return scenes, cover, nil
}

// buildComposite turns the matched scenes into a single analysis-ready image:
// cloud and cirrus pixels are masked out of every scene, the vegetation index
// is appended, and the collection is reduced to its per-pixel median.
func (p *Pipeline) buildComposite(ctx context.Context, logger *slog.Logger, params types.RunParams, scenes *types.SceneCollection) (*types.CompositeImage, error) {
	masked, err := p.platform.MaskBits(ctx, scenes.CollectionID, params.QABand,
		[]int{types.QACloudBit, types.QACirrusBit})
	if err != nil {
		return nil, fmt.Errorf("masking cloud bits: %w", err)
	}

	withIndex, err := p.platform.NormalizedDifference(ctx, masked, types.BandNIR, types.BandRed, types.NDVIBand)
	if err != nil {
		return nil, fmt.Errorf("deriving vegetation index: %w", err)
	}

	composite, err := p.platform.Median(ctx, withIndex, compositeBands(params.Bands))
	if err != nil {
		return nil, fmt.Errorf("reducing to median composite: %w", err)
	}
	composite.SceneCount = len(scenes.Scenes)

	logger.InfoContext(ctx, "composite built",
		"asset_id", composite.AssetID,
		"bands", composite.Bands,
		"scene_count", composite.SceneCount,
	)

	return composite, nil
}

// compositeBands returns the reflectance bands plus the derived vegetation
// index, without mutating the caller's slice.
func compositeBands(bands []string) []string {
	out := slices.Clone(bands)
	if !slices.Contains(out, types.NDVIBand) {
		out = append(out, types.NDVIBand)
	}
	return out
}

// cloudCoverStats summarizes per-scene cloud cover. Requires a non-empty
// scene list; the search stage guarantees that.
func cloudCoverStats(scenes []types.SceneSummary) (types.CloudCoverStats, error) {
	covers := make(stats.Float64Data, 0, len(scenes))
	for _, s := range scenes {
		covers = append(covers, s.CloudCover)
	}

	mean, err := stats.Mean(covers)
	if err != nil {
		return types.CloudCoverStats{}, fmt.Errorf("computing mean: %w", err)
	}
	median, err := stats.Median(covers)
	if err != nil {
		return types.CloudCoverStats{}, fmt.Errorf("computing median: %w", err)
	}
	min, err := stats.Min(covers)
	if err != nil {
		return types.CloudCoverStats{}, fmt.Errorf("computing min: %w", err)
	}
	max, err := stats.Max(covers)
	if err != nil {
		return types.CloudCoverStats{}, fmt.Errorf("computing max: %w", err)
	}

	return types.CloudCoverStats{Mean: mean, Median: median, Min: min, Max: max}, nil
}
