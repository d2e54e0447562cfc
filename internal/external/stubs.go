package external

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"fieldline/internal/types"

	"github.com/disintegration/imaging"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stub implementations allow the pipeline to run end to end in dry-run and
// test mode without platform credentials or network access. They log all
// actions and return predictable, safe default values.
// ---------------------------------------------------------------------------

// stubSurveyTile is the MGRS tile reported for every stubbed scene.
const stubSurveyTile = "31UFU"

// stubBoundaryFeatureCount matches the feature count of stubBoundaryGeoJSON.
const stubBoundaryFeatureCount = 3

// stubBoundaryGeoJSON is a small FeatureCollection of rectangular parcels
// inside the default survey region.
const stubBoundaryGeoJSON = `{"type":"FeatureCollection","features":[` +
	`{"type":"Feature","properties":{"label":1},"geometry":{"type":"Polygon","coordinates":[[[5.45,52.48],[5.47,52.48],[5.47,52.49],[5.45,52.49],[5.45,52.48]]]}},` +
	`{"type":"Feature","properties":{"label":1},"geometry":{"type":"Polygon","coordinates":[[[5.52,52.51],[5.55,52.51],[5.55,52.53],[5.52,52.53],[5.52,52.51]]]}},` +
	`{"type":"Feature","properties":{"label":1},"geometry":{"type":"Polygon","coordinates":[[[5.60,52.44],[5.63,52.44],[5.63,52.46],[5.60,52.46],[5.60,52.44]]]}}]}`

// StubPlatform implements Platform with deterministic in-memory behavior.
// Handles are sequence-numbered so a run's log reads like a real one, and
// scene search honors the cloud ceiling so the no-scenes path is reachable
// without a network.
type StubPlatform struct {
	logger *slog.Logger

	mu  sync.Mutex
	seq int
}

// NewStubPlatform creates a new StubPlatform.
func NewStubPlatform(logger *slog.Logger) *StubPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubPlatform{logger: logger}
}

func (s *StubPlatform) nextHandle(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s_stub_%04d", prefix, s.seq)
}

func (s *StubPlatform) SearchScenes(ctx context.Context, collection string, aoi types.AOI, window types.TimeWindow, maxCloudCover float64) (*types.SceneCollection, error) {
	s.logger.InfoContext(ctx, "stub: SearchScenes called",
		"collection", collection,
		"max_cloud_cover", maxCloudCover,
	)

	candidates := []struct {
		offsetDays int
		cloudCover float64
	}{
		{3, 2.1},
		{8, 8.9},
		{18, 4.7},
	}

	result := &types.SceneCollection{CollectionID: s.nextHandle("col")}
	for _, c := range candidates {
		if c.cloudCover > maxCloudCover {
			continue
		}
		acquired := window.Start.Add(time.Duration(c.offsetDays) * 24 * time.Hour)
		result.Scenes = append(result.Scenes, types.SceneSummary{
			ID:         fmt.Sprintf("S2A_%s_%s", stubSurveyTile, acquired.Format("20060102")),
			AcquiredAt: acquired,
			CloudCover: c.cloudCover,
			Tile:       stubSurveyTile,
		})
	}

	return result, nil
}

func (s *StubPlatform) MaskBits(ctx context.Context, collectionID string, qaBand string, bits []int) (string, error) {
	s.logger.InfoContext(ctx, "stub: MaskBits called",
		"collection_id", collectionID,
		"qa_band", qaBand,
		"bits", bits,
	)
	return s.nextHandle("col"), nil
}

func (s *StubPlatform) NormalizedDifference(ctx context.Context, collectionID string, bandA, bandB, outputBand string) (string, error) {
	s.logger.InfoContext(ctx, "stub: NormalizedDifference called",
		"collection_id", collectionID,
		"band_a", bandA,
		"band_b", bandB,
		"output_band", outputBand,
	)
	return s.nextHandle("col"), nil
}

func (s *StubPlatform) Median(ctx context.Context, collectionID string, bands []string) (*types.CompositeImage, error) {
	s.logger.InfoContext(ctx, "stub: Median called",
		"collection_id", collectionID,
		"bands", bands,
	)
	return &types.CompositeImage{
		AssetID: s.nextHandle("img"),
		Bands:   bands,
	}, nil
}

func (s *StubPlatform) SampleRegions(ctx context.Context, imageID string, features []byte, classProperty string, scale, tileScale float64) (*types.TrainingSummary, error) {
	s.logger.InfoContext(ctx, "stub: SampleRegions called",
		"image_id", imageID,
		"class_property", classProperty,
		"features_bytes", len(features),
	)
	return &types.TrainingSummary{
		TableID:     s.nextHandle("tbl"),
		SampleCount: 240,
		ClassCounts: map[types.ClassLabel]int{
			types.ClassField:    128,
			types.ClassNonField: 112,
		},
	}, nil
}

func (s *StubPlatform) TrainClassifier(ctx context.Context, tableID, classProperty string, bands []string, trees int) (*types.Classifier, error) {
	s.logger.InfoContext(ctx, "stub: TrainClassifier called",
		"table_id", tableID,
		"trees", trees,
	)
	return &types.Classifier{
		ClassifierID: s.nextHandle("rf"),
		Trees:        trees,
	}, nil
}

func (s *StubPlatform) Classify(ctx context.Context, imageID, classifierID, outputBand string) (*types.ClassificationRaster, error) {
	s.logger.InfoContext(ctx, "stub: Classify called",
		"image_id", imageID,
		"classifier_id", classifierID,
	)
	return &types.ClassificationRaster{
		AssetID: s.nextHandle("img"),
		Band:    outputBand,
	}, nil
}

func (s *StubPlatform) CannyEdges(ctx context.Context, imageID string, threshold, sigma float64) (string, error) {
	s.logger.InfoContext(ctx, "stub: CannyEdges called",
		"image_id", imageID,
		"threshold", threshold,
		"sigma", sigma,
	)
	return s.nextHandle("img"), nil
}

func (s *StubPlatform) Threshold(ctx context.Context, imageID, band string, gt int) (string, error) {
	s.logger.InfoContext(ctx, "stub: Threshold called",
		"image_id", imageID,
		"band", band,
		"gt", gt,
	)
	return s.nextHandle("img"), nil
}

func (s *StubPlatform) Vectorize(ctx context.Context, imageID string, region types.AOI, scale, tileScale float64) (*types.BoundaryVectorSet, error) {
	s.logger.InfoContext(ctx, "stub: Vectorize called",
		"image_id", imageID,
		"scale_m", scale,
	)
	return &types.BoundaryVectorSet{
		VectorID:     s.nextHandle("vec"),
		FeatureCount: stubBoundaryFeatureCount,
	}, nil
}

func (s *StubPlatform) FetchVectors(ctx context.Context, vectorID string) ([]byte, error) {
	s.logger.InfoContext(ctx, "stub: FetchVectors called",
		"vector_id", vectorID,
	)
	return []byte(stubBoundaryGeoJSON), nil
}

func (s *StubPlatform) TileLayer(ctx context.Context, imageID string, vis VisParams) (string, error) {
	s.logger.InfoContext(ctx, "stub: TileLayer called",
		"image_id", imageID,
	)
	return fmt.Sprintf("https://tiles.stub.local/%s/{z}/{x}/{y}.png", imageID), nil
}

func (s *StubPlatform) Thumbnail(ctx context.Context, imageID string, vis VisParams, region types.AOI, width int) (string, error) {
	s.logger.InfoContext(ctx, "stub: Thumbnail called",
		"image_id", imageID,
		"width", width,
	)
	return fmt.Sprintf("https://thumbs.stub.local/%s.png", imageID), nil
}

// StubFetcher implements Fetcher by synthesizing a small PNG placeholder for
// any URL, so quicklook generation works end to end in dry-run mode.
type StubFetcher struct {
	logger *slog.Logger
}

// NewStubFetcher creates a new StubFetcher.
func NewStubFetcher(logger *slog.Logger) *StubFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubFetcher{logger: logger}
}

func (s *StubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.logger.InfoContext(ctx, "stub: Fetch called", "url", url)

	img := imaging.New(8, 8, color.NRGBA{R: 96, G: 160, B: 96, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to encode stub placeholder image",
			err,
		)
	}
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Interface Compliance
// ---------------------------------------------------------------------------

var _ Platform = (*StubPlatform)(nil)
var _ Fetcher = (*StubFetcher)(nil)
