package external

import (
	"context"

	"fieldline/internal/types"
)

// ---------------------------------------------------------------------------
// Geospatial Platform (Analysis API)
// ---------------------------------------------------------------------------

// Platform abstracts the remote geospatial platform that executes every
// pixel-touching computation. Implementations translate between domain types
// and the platform's REST endpoints; no imagery is ever downloaded or
// processed locally.
//
// Handles returned by one method (collection, image, table, classifier and
// vector IDs) are opaque server-side references passed to later methods.
type Platform interface {
	// SearchScenes filters the imagery archive by collection, region, a
	// half-open acquisition window [start, end), and a per-scene cloud cover
	// ceiling. The returned collection may be empty; callers decide whether
	// that is fatal.
	SearchScenes(ctx context.Context, collection string, aoi types.AOI, window types.TimeWindow, maxCloudCover float64) (*types.SceneCollection, error)

	// MaskBits masks out, in every scene of the collection, the pixels whose
	// QA band has any of the given bits set. Returns the handle of the new
	// masked collection.
	MaskBits(ctx context.Context, collectionID string, qaBand string, bits []int) (string, error)

	// NormalizedDifference appends (a-b)/(a+b) of two bands as a named band
	// to every scene in the collection. Returns the handle of the new
	// collection.
	NormalizedDifference(ctx context.Context, collectionID string, bandA, bandB, outputBand string) (string, error)

	// Median reduces the collection to a single image, taking the per-pixel,
	// per-band median over the selected bands. Masked pixels do not
	// participate in the median.
	Median(ctx context.Context, collectionID string, bands []string) (*types.CompositeImage, error)

	// SampleRegions samples the image's band values under each feature of a
	// GeoJSON FeatureCollection at the given scale, carrying the class
	// property onto every sample.
	SampleRegions(ctx context.Context, imageID string, features []byte, classProperty string, scale, tileScale float64) (*types.TrainingSummary, error)

	// TrainClassifier fits a random-forest ensemble of the given size on the
	// sample table, predicting the class property from the listed bands.
	TrainClassifier(ctx context.Context, tableID, classProperty string, bands []string, trees int) (*types.Classifier, error)

	// Classify applies a trained classifier to the image, producing a raster
	// whose single output band holds the predicted class per pixel.
	Classify(ctx context.Context, imageID, classifierID, outputBand string) (*types.ClassificationRaster, error)

	// CannyEdges runs Canny edge detection over the image. Returns the handle
	// of the edge-strength image.
	CannyEdges(ctx context.Context, imageID string, threshold, sigma float64) (string, error)

	// Threshold binarizes a band: values strictly greater than gt become 1,
	// everything else 0. Returns the handle of the binary image.
	Threshold(ctx context.Context, imageID, band string, gt int) (string, error)

	// Vectorize traces the connected regions of a binary image within the
	// given region into polygon features at the given scale. The returned set
	// carries the vector handle and feature count; geometry is fetched
	// separately with FetchVectors.
	Vectorize(ctx context.Context, imageID string, region types.AOI, scale, tileScale float64) (*types.BoundaryVectorSet, error)

	// FetchVectors downloads a vector set as GeoJSON FeatureCollection bytes.
	FetchVectors(ctx context.Context, vectorID string) ([]byte, error)

	// TileLayer registers a styled slippy-map rendering of the image and
	// returns its {z}/{x}/{y} URL template.
	TileLayer(ctx context.Context, imageID string, vis VisParams) (string, error)

	// Thumbnail renders a one-shot styled preview of the image clipped to the
	// region, width pixels across, and returns the URL it can be fetched
	// from.
	Thumbnail(ctx context.Context, imageID string, vis VisParams, region types.AOI, width int) (string, error)
}

// VisParams is the platform's layer styling object, shared by TileLayer and
// Thumbnail. Stretch styling sets Bands with Min/Max; palette styling sets
// Min/Max with Palette.
type VisParams struct {
	Bands   []string `json:"bands,omitempty"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette,omitempty"`
}

// StretchParams converts true-color stretch styling into platform form.
func StretchParams(v types.StretchVis) VisParams {
	return VisParams{Bands: v.Bands, Min: v.Min, Max: v.Max}
}

// PaletteParams converts class-palette styling into platform form.
func PaletteParams(v types.PaletteVis) VisParams {
	return VisParams{Min: float64(v.Min), Max: float64(v.Max), Palette: v.Palette}
}

// ---------------------------------------------------------------------------
// Artifact Fetching
// ---------------------------------------------------------------------------

// Fetcher abstracts retrieval of rendered artifacts (thumbnails, exports) by
// URL. Unlike analysis calls, fetches are idempotent and may be retried.
type Fetcher interface {
	// Fetch downloads the resource at url and returns its bytes.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
