package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldline/internal/types"
)

// platformAPIBase is the default geospatial platform base URL.
// Overridable in tests via PlatformClientConfig.BaseURL.
const platformAPIBase = "https://geo.fieldline.io"

// platformCodeTrainingData is the platform's own error code for an empty or
// single-class training sample. It is the only platform code translated to a
// dedicated local code; everything else lands in the remote_* family.
const platformCodeTrainingData = "training_data"

// PlatformClientConfig holds the configuration for creating a PlatformHTTPClient.
type PlatformClientConfig struct {
	BaseURL   string // Override for testing; defaults to platformAPIBase
	Tokens    TokenSource
	UserAgent string // defaults to "Fieldline/1.0"
	Logger    *slog.Logger
}

// ---------------------------------------------------------------------------
// Wire envelopes
// ---------------------------------------------------------------------------

// sceneSearchRequest is the body POSTed to /v1/scenes:search.
type sceneSearchRequest struct {
	Collection    string     `json:"collection"`
	Region        [4]float64 `json:"region"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	MaxCloudCover float64    `json:"maxCloudCover"`
}

// sceneSearchResponse carries the matched scenes and the handle of the
// server-side collection holding them.
type sceneSearchResponse struct {
	CollectionID string      `json:"collectionId"`
	Scenes       []wireScene `json:"scenes"`
}

type wireScene struct {
	ID         string    `json:"id"`
	AcquiredAt time.Time `json:"acquiredAt"`
	CloudCover float64   `json:"cloudCover"`
	Tile       string    `json:"tile"`
}

type maskBitsRequest struct {
	Band string `json:"band"`
	Bits []int  `json:"bits"`
}

type normalizedDifferenceRequest struct {
	Bands [2]string `json:"bands"`
	Name  string    `json:"name"`
}

// collectionResponse is shared by the per-scene collection operations, which
// all return the handle of a new derived collection.
type collectionResponse struct {
	CollectionID string `json:"collectionId"`
}

type medianRequest struct {
	Bands []string `json:"bands"`
}

type medianResponse struct {
	ImageID string   `json:"imageId"`
	Bands   []string `json:"bands"`
}

type sampleRegionsRequest struct {
	Features      json.RawMessage `json:"features"`
	ClassProperty string          `json:"classProperty"`
	Scale         float64         `json:"scale"`
	TileScale     float64         `json:"tileScale"`
}

type sampleRegionsResponse struct {
	TableID     string         `json:"tableId"`
	SampleCount int            `json:"sampleCount"`
	ClassCounts map[string]int `json:"classCounts"`
}

type trainRequest struct {
	TableID       string   `json:"tableId"`
	ClassProperty string   `json:"classProperty"`
	Bands         []string `json:"bands"`
	Trees         int      `json:"trees"`
}

type trainResponse struct {
	ClassifierID string `json:"classifierId"`
}

type classifyRequest struct {
	ClassifierID string `json:"classifierId"`
	OutputBand   string `json:"outputBand"`
}

type cannyEdgesRequest struct {
	Threshold float64 `json:"threshold"`
	Sigma     float64 `json:"sigma"`
}

type thresholdRequest struct {
	Band string `json:"band"`
	Gt   int    `json:"gt"`
}

// imageResponse is shared by the image operations, which all return the
// handle of a new derived image.
type imageResponse struct {
	ImageID string `json:"imageId"`
}

type vectorizeRequest struct {
	Region    [4]float64 `json:"region"`
	Scale     float64    `json:"scale"`
	TileScale float64    `json:"tileScale"`
}

type vectorizeResponse struct {
	VectorID     string `json:"vectorId"`
	FeatureCount int    `json:"featureCount"`
}

type tilesRequest struct {
	Vis VisParams `json:"vis"`
}

type tilesResponse struct {
	URLTemplate string `json:"urlTemplate"`
}

type thumbnailRequest struct {
	Vis    VisParams  `json:"vis"`
	Region [4]float64 `json:"region"`
	Width  int        `json:"width"`
}

type thumbnailResponse struct {
	URL string `json:"url"`
}

// platformErrorEnvelope is the body of every non-2xx platform response.
type platformErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// PlatformHTTPClient implements Platform by making direct HTTP calls to the
// geospatial platform's REST API through BaseClient. Analysis calls are
// attempted exactly once: the platform's answer, success or failure, is
// always propagated to the caller rather than masked by local retries.
type PlatformHTTPClient struct {
	base    *BaseClient
	tokens  TokenSource
	baseURL string
	logger  *slog.Logger
}

// NewPlatformClient creates a new PlatformHTTPClient. The httpClient timeout
// bounds a single analysis call and should be generous; server-side
// reductions at 10 m scale routinely run for tens of seconds.
func NewPlatformClient(
	httpClient *http.Client,
	cfg PlatformClientConfig,
) *PlatformHTTPClient {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Fieldline/1.0"
	}

	base := NewBaseClient(
		httpClient,
		"platform",
		ZeroRetryPolicy(),
		userAgent,
	)

	return newPlatformClient(base, cfg)
}

// NewPlatformClientWithBase creates a PlatformHTTPClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration (e.g., the circuit breaker or sleep function).
func NewPlatformClientWithBase(
	base *BaseClient,
	cfg PlatformClientConfig,
) *PlatformHTTPClient {
	return newPlatformClient(base, cfg)
}

func newPlatformClient(base *BaseClient, cfg PlatformClientConfig) *PlatformHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = platformAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = AnonymousTokenSource()
	}

	return &PlatformHTTPClient{
		base:    base,
		tokens:  tokens,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// SearchScenes filters the archive and returns the matched scenes together
// with the handle of the server-side collection that holds them.
func (c *PlatformHTTPClient) SearchScenes(ctx context.Context, collection string, aoi types.AOI, window types.TimeWindow, maxCloudCover float64) (*types.SceneCollection, error) {
	if collection == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"collection is required for scene search",
			nil,
		)
	}

	reqBody := sceneSearchRequest{
		Collection:    collection,
		Region:        aoi.Rect(),
		Start:         window.Start.UTC().Format(time.RFC3339),
		End:           window.End.UTC().Format(time.RFC3339),
		MaxCloudCover: maxCloudCover,
	}

	c.logger.InfoContext(ctx, "searching scenes",
		"collection", collection,
		"start", reqBody.Start,
		"end", reqBody.End,
		"max_cloud_cover", maxCloudCover,
	)

	var searchResp sceneSearchResponse
	if err := c.call(ctx, "SearchScenes", http.MethodPost, "/v1/scenes:search", reqBody, &searchResp); err != nil {
		return nil, err
	}

	if searchResp.CollectionID == "" {
		return nil, c.emptyHandleError("SearchScenes", "collection")
	}

	result := &types.SceneCollection{
		CollectionID: searchResp.CollectionID,
		Scenes:       make([]types.SceneSummary, 0, len(searchResp.Scenes)),
	}
	for _, s := range searchResp.Scenes {
		result.Scenes = append(result.Scenes, types.SceneSummary{
			ID:         s.ID,
			AcquiredAt: s.AcquiredAt,
			CloudCover: s.CloudCover,
			Tile:       s.Tile,
		})
	}

	c.logger.InfoContext(ctx, "scene search completed",
		"collection_id", result.CollectionID,
		"scenes_matched", len(result.Scenes),
	)

	return result, nil
}

// MaskBits masks out pixels whose QA band has any of the given bits set.
func (c *PlatformHTTPClient) MaskBits(ctx context.Context, collectionID string, qaBand string, bits []int) (string, error) {
	if collectionID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"collection ID is required for bit masking",
			nil,
		)
	}
	if qaBand == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"QA band is required for bit masking",
			nil,
		)
	}
	if len(bits) == 0 {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"at least one QA bit is required for bit masking",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "masking QA bits",
		"collection_id", collectionID,
		"qa_band", qaBand,
		"bits", bits,
	)

	var maskResp collectionResponse
	path := fmt.Sprintf("/v1/collections/%s:maskBits", collectionID)
	if err := c.call(ctx, "MaskBits", http.MethodPost, path, maskBitsRequest{Band: qaBand, Bits: bits}, &maskResp); err != nil {
		return "", err
	}

	if maskResp.CollectionID == "" {
		return "", c.emptyHandleError("MaskBits", "collection")
	}

	c.logger.InfoContext(ctx, "QA bits masked",
		"collection_id", maskResp.CollectionID,
	)

	return maskResp.CollectionID, nil
}

// NormalizedDifference appends (a-b)/(a+b) of two bands as a named band to
// every scene in the collection.
func (c *PlatformHTTPClient) NormalizedDifference(ctx context.Context, collectionID string, bandA, bandB, outputBand string) (string, error) {
	if collectionID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"collection ID is required for band math",
			nil,
		)
	}
	if bandA == "" || bandB == "" || outputBand == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"two input bands and an output band name are required for band math",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "deriving normalized difference band",
		"collection_id", collectionID,
		"band_a", bandA,
		"band_b", bandB,
		"output_band", outputBand,
	)

	reqBody := normalizedDifferenceRequest{Bands: [2]string{bandA, bandB}, Name: outputBand}
	var ndResp collectionResponse
	path := fmt.Sprintf("/v1/collections/%s:normalizedDifference", collectionID)
	if err := c.call(ctx, "NormalizedDifference", http.MethodPost, path, reqBody, &ndResp); err != nil {
		return "", err
	}

	if ndResp.CollectionID == "" {
		return "", c.emptyHandleError("NormalizedDifference", "collection")
	}

	c.logger.InfoContext(ctx, "normalized difference band derived",
		"collection_id", ndResp.CollectionID,
		"output_band", outputBand,
	)

	return ndResp.CollectionID, nil
}

// Median reduces the collection to its per-pixel, per-band median image.
// SceneCount on the returned composite is left zero; the caller fills it
// from the searched collection.
func (c *PlatformHTTPClient) Median(ctx context.Context, collectionID string, bands []string) (*types.CompositeImage, error) {
	if collectionID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"collection ID is required for median reduction",
			nil,
		)
	}
	if len(bands) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"at least one band is required for median reduction",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "reducing collection to median composite",
		"collection_id", collectionID,
		"bands", bands,
	)

	var medResp medianResponse
	path := fmt.Sprintf("/v1/collections/%s:median", collectionID)
	if err := c.call(ctx, "Median", http.MethodPost, path, medianRequest{Bands: bands}, &medResp); err != nil {
		return nil, err
	}

	if medResp.ImageID == "" {
		return nil, c.emptyHandleError("Median", "image")
	}

	c.logger.InfoContext(ctx, "median composite created",
		"image_id", medResp.ImageID,
		"bands", medResp.Bands,
	)

	return &types.CompositeImage{
		AssetID: medResp.ImageID,
		Bands:   medResp.Bands,
	}, nil
}

// SampleRegions samples the image's band values under the features of a
// GeoJSON FeatureCollection.
func (c *PlatformHTTPClient) SampleRegions(ctx context.Context, imageID string, features []byte, classProperty string, scale, tileScale float64) (*types.TrainingSummary, error) {
	if imageID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"image ID is required for region sampling",
			nil,
		)
	}
	if len(features) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"ground truth features are required for region sampling",
			nil,
		)
	}
	if classProperty == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"class property is required for region sampling",
			nil,
		)
	}

	reqBody := sampleRegionsRequest{
		Features:      json.RawMessage(features),
		ClassProperty: classProperty,
		Scale:         scale,
		TileScale:     tileScale,
	}

	c.logger.InfoContext(ctx, "sampling training regions",
		"image_id", imageID,
		"class_property", classProperty,
		"scale_m", scale,
		"tile_scale", tileScale,
	)

	var sampleResp sampleRegionsResponse
	path := fmt.Sprintf("/v1/images/%s:sampleRegions", imageID)
	if err := c.call(ctx, "SampleRegions", http.MethodPost, path, reqBody, &sampleResp); err != nil {
		return nil, err
	}

	if sampleResp.TableID == "" {
		return nil, c.emptyHandleError("SampleRegions", "table")
	}

	summary := &types.TrainingSummary{
		TableID:     sampleResp.TableID,
		SampleCount: sampleResp.SampleCount,
		ClassCounts: make(map[types.ClassLabel]int, len(sampleResp.ClassCounts)),
	}
	for k, v := range sampleResp.ClassCounts {
		label, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		summary.ClassCounts[types.ClassLabel(label)] = v
	}

	c.logger.InfoContext(ctx, "training regions sampled",
		"table_id", summary.TableID,
		"sample_count", summary.SampleCount,
	)

	return summary, nil
}

// TrainClassifier fits a random-forest ensemble on the sample table.
func (c *PlatformHTTPClient) TrainClassifier(ctx context.Context, tableID, classProperty string, bands []string, trees int) (*types.Classifier, error) {
	if tableID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"table ID is required for training",
			nil,
		)
	}
	if classProperty == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"class property is required for training",
			nil,
		)
	}
	if len(bands) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"at least one band is required for training",
			nil,
		)
	}
	if trees <= 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationParameter,
			fmt.Sprintf("tree count must be positive, got %d", trees),
			nil,
		)
	}

	reqBody := trainRequest{
		TableID:       tableID,
		ClassProperty: classProperty,
		Bands:         bands,
		Trees:         trees,
	}

	c.logger.InfoContext(ctx, "training classifier",
		"table_id", tableID,
		"class_property", classProperty,
		"trees", trees,
	)

	var tResp trainResponse
	if err := c.call(ctx, "TrainClassifier", http.MethodPost, "/v1/classifiers:train", reqBody, &tResp); err != nil {
		return nil, err
	}

	if tResp.ClassifierID == "" {
		return nil, c.emptyHandleError("TrainClassifier", "classifier")
	}

	c.logger.InfoContext(ctx, "classifier trained",
		"classifier_id", tResp.ClassifierID,
		"trees", trees,
	)

	return &types.Classifier{ClassifierID: tResp.ClassifierID, Trees: trees}, nil
}

// Classify applies a trained classifier to the image.
func (c *PlatformHTTPClient) Classify(ctx context.Context, imageID, classifierID, outputBand string) (*types.ClassificationRaster, error) {
	if imageID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"image ID is required for classification",
			nil,
		)
	}
	if classifierID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"classifier ID is required for classification",
			nil,
		)
	}
	if outputBand == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"output band is required for classification",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "classifying composite",
		"image_id", imageID,
		"classifier_id", classifierID,
		"output_band", outputBand,
	)

	var clResp imageResponse
	path := fmt.Sprintf("/v1/images/%s:classify", imageID)
	if err := c.call(ctx, "Classify", http.MethodPost, path, classifyRequest{ClassifierID: classifierID, OutputBand: outputBand}, &clResp); err != nil {
		return nil, err
	}

	if clResp.ImageID == "" {
		return nil, c.emptyHandleError("Classify", "image")
	}

	c.logger.InfoContext(ctx, "composite classified",
		"image_id", clResp.ImageID,
	)

	return &types.ClassificationRaster{AssetID: clResp.ImageID, Band: outputBand}, nil
}

// CannyEdges runs Canny edge detection over the image.
func (c *PlatformHTTPClient) CannyEdges(ctx context.Context, imageID string, threshold, sigma float64) (string, error) {
	if imageID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"image ID is required for edge detection",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "detecting edges",
		"image_id", imageID,
		"threshold", threshold,
		"sigma", sigma,
	)

	var edgeResp imageResponse
	path := fmt.Sprintf("/v1/images/%s:cannyEdges", imageID)
	if err := c.call(ctx, "CannyEdges", http.MethodPost, path, cannyEdgesRequest{Threshold: threshold, Sigma: sigma}, &edgeResp); err != nil {
		return "", err
	}

	if edgeResp.ImageID == "" {
		return "", c.emptyHandleError("CannyEdges", "image")
	}

	c.logger.InfoContext(ctx, "edges detected",
		"image_id", edgeResp.ImageID,
	)

	return edgeResp.ImageID, nil
}

// Threshold binarizes a band of the image with a strictly-greater-than test.
func (c *PlatformHTTPClient) Threshold(ctx context.Context, imageID, band string, gt int) (string, error) {
	if imageID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"image ID is required for thresholding",
			nil,
		)
	}
	if band == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"band is required for thresholding",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "binarizing edge strength",
		"image_id", imageID,
		"band", band,
		"gt", gt,
	)

	var thResp imageResponse
	path := fmt.Sprintf("/v1/images/%s:threshold", imageID)
	if err := c.call(ctx, "Threshold", http.MethodPost, path, thresholdRequest{Band: band, Gt: gt}, &thResp); err != nil {
		return "", err
	}

	if thResp.ImageID == "" {
		return "", c.emptyHandleError("Threshold", "image")
	}

	c.logger.InfoContext(ctx, "edge strength binarized",
		"image_id", thResp.ImageID,
	)

	return thResp.ImageID, nil
}

// Vectorize traces the connected regions of a binary image into polygons.
func (c *PlatformHTTPClient) Vectorize(ctx context.Context, imageID string, region types.AOI, scale, tileScale float64) (*types.BoundaryVectorSet, error) {
	if imageID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"image ID is required for vectorization",
			nil,
		)
	}

	reqBody := vectorizeRequest{
		Region:    region.Rect(),
		Scale:     scale,
		TileScale: tileScale,
	}

	c.logger.InfoContext(ctx, "vectorizing boundaries",
		"image_id", imageID,
		"scale_m", scale,
		"tile_scale", tileScale,
	)

	var vecResp vectorizeResponse
	path := fmt.Sprintf("/v1/images/%s:vectorize", imageID)
	if err := c.call(ctx, "Vectorize", http.MethodPost, path, reqBody, &vecResp); err != nil {
		return nil, err
	}

	if vecResp.VectorID == "" {
		return nil, c.emptyHandleError("Vectorize", "vector")
	}

	c.logger.InfoContext(ctx, "boundaries vectorized",
		"vector_id", vecResp.VectorID,
		"feature_count", vecResp.FeatureCount,
	)

	return &types.BoundaryVectorSet{
		VectorID:     vecResp.VectorID,
		FeatureCount: vecResp.FeatureCount,
	}, nil
}

// FetchVectors downloads a vector set as GeoJSON FeatureCollection bytes.
// The export body is returned unmodified and without a size cap; boundary
// sets over a full survey region run to megabytes.
func (c *PlatformHTTPClient) FetchVectors(ctx context.Context, vectorID string) ([]byte, error) {
	if vectorID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"vector ID is required for vector export",
			nil,
		)
	}

	url := fmt.Sprintf("%s/v1/vectors/%s", c.baseURL, vectorID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create FetchVectors request",
			err,
		)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "fetching vector export",
		"vector_id", vectorID,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError("FetchVectors", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "FetchVectors")
	}

	geoJSON, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeRemoteProtocol,
			"failed to read FetchVectors response body",
			err,
		)
	}

	c.logger.InfoContext(ctx, "vector export fetched",
		"vector_id", vectorID,
		"bytes", len(geoJSON),
	)

	return geoJSON, nil
}

// TileLayer registers a styled tile rendering of the image and returns its
// URL template.
func (c *PlatformHTTPClient) TileLayer(ctx context.Context, imageID string, vis VisParams) (string, error) {
	if imageID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"image ID is required for tile rendering",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "registering tile layer",
		"image_id", imageID,
	)

	var tileResp tilesResponse
	path := fmt.Sprintf("/v1/images/%s:tiles", imageID)
	if err := c.call(ctx, "TileLayer", http.MethodPost, path, tilesRequest{Vis: vis}, &tileResp); err != nil {
		return "", err
	}

	if tileResp.URLTemplate == "" {
		return "", c.emptyHandleError("TileLayer", "tile URL template")
	}

	c.logger.InfoContext(ctx, "tile layer registered",
		"image_id", imageID,
		"url_template", tileResp.URLTemplate,
	)

	return tileResp.URLTemplate, nil
}

// Thumbnail renders a one-shot styled preview of the image.
func (c *PlatformHTTPClient) Thumbnail(ctx context.Context, imageID string, vis VisParams, region types.AOI, width int) (string, error) {
	if imageID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"image ID is required for thumbnail rendering",
			nil,
		)
	}
	if width <= 0 {
		return "", types.NewAppError(
			types.ErrCodeValidationParameter,
			fmt.Sprintf("thumbnail width must be positive, got %d", width),
			nil,
		)
	}

	reqBody := thumbnailRequest{
		Vis:    vis,
		Region: region.Rect(),
		Width:  width,
	}

	c.logger.InfoContext(ctx, "rendering thumbnail",
		"image_id", imageID,
		"width", width,
	)

	var thumbResp thumbnailResponse
	path := fmt.Sprintf("/v1/images/%s:thumbnail", imageID)
	if err := c.call(ctx, "Thumbnail", http.MethodPost, path, reqBody, &thumbResp); err != nil {
		return "", err
	}

	if thumbResp.URL == "" {
		return "", c.emptyHandleError("Thumbnail", "thumbnail URL")
	}

	c.logger.InfoContext(ctx, "thumbnail rendered",
		"image_id", imageID,
		"url", thumbResp.URL,
	)

	return thumbResp.URL, nil
}

// ---------------------------------------------------------------------------
// Shared request plumbing
// ---------------------------------------------------------------------------

// call executes one JSON-in/JSON-out platform operation: serialize, send
// through BaseClient, map error responses, decode the success body into out.
// A nil out skips decoding.
func (c *PlatformHTTPClient) call(ctx context.Context, operation, method, path string, reqBody, out any) error {
	var reader io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return types.NewAppError(
				types.ErrCodeInternalUnexpected,
				fmt.Sprintf("failed to serialize %s request", operation),
				err,
			)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to create %s request", operation),
			err,
		)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return c.wrapError(operation, err)
	}
	defer resp.Body.Close()

	// Handle non-2xx responses. BaseClient hands every response back,
	// including the final 429/5xx of an exhausted retry budget, so the
	// platform's error envelope is always readable here.
	if resp.StatusCode >= 400 {
		return c.handleErrorResponse(resp, operation)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(
			types.ErrCodeRemoteProtocol,
			fmt.Sprintf("failed to decode %s response", operation),
			err,
		)
	}

	return nil
}

// authorize attaches a bearer credential from the token source.
func (c *PlatformHTTPClient) authorize(req *http.Request) error {
	token, err := c.tokens.Token(req.Context())
	if err != nil {
		return types.NewAppError(
			types.ErrCodeRemoteAuth,
			"failed to obtain platform credentials",
			err,
		)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then maps the platform's error envelope onto a domain AppError. The
// platform's message is preserved verbatim.
func (c *PlatformHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("platform API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	var envelope platformErrorEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil || envelope.Error.Code == "" {
		return types.NewAppError(
			types.ErrCodeRemoteProtocol,
			fmt.Sprintf("platform %s returned %d with a malformed error body", operation, resp.StatusCode),
			fmt.Errorf("platform %s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	}

	cause := fmt.Errorf("platform %s returned %d (%s): %s",
		operation, resp.StatusCode, envelope.Error.Code, envelope.Error.Message)

	// The platform's training-data rejection is a first-class pipeline
	// outcome, not a generic upstream failure.
	if envelope.Error.Code == platformCodeTrainingData {
		return types.NewAppError(types.ErrCodeTrainingData, envelope.Error.Message, cause)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.NewAppError(types.ErrCodeRemoteAuth, envelope.Error.Message, cause)
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeRemoteRateLimited, envelope.Error.Message, cause)
	case resp.StatusCode >= 500:
		return types.NewAppError(types.ErrCodeRemoteUnavailable, envelope.Error.Message, cause)
	default:
		return types.NewAppError(types.ErrCodeRemoteBadRequest, envelope.Error.Message, cause)
	}
}

// emptyHandleError reports a 2xx response whose handle field was missing.
func (c *PlatformHTTPClient) emptyHandleError(operation, kind string) *types.AppError {
	return types.NewAppError(
		types.ErrCodeRemoteProtocol,
		fmt.Sprintf("platform %s returned an empty %s handle", operation, kind),
		nil,
	)
}

// wrapError converts errors from BaseClient.Do into operation-tagged errors.
func (c *PlatformHTTPClient) wrapError(operation string, err error) error {
	// If it's already an AppError, enhance the message but preserve the code.
	var appErr *types.AppError
	if ok := isAppError(err, &appErr); ok {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("platform %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeRemoteUnavailable,
		fmt.Sprintf("platform %s failed", operation),
		err,
	)
}

// isAppError checks if err is an *types.AppError and extracts it.
func isAppError(err error, target **types.AppError) bool {
	var ae *types.AppError
	if ok := errors.As(err, &ae); ok {
		*target = ae
		return true
	}
	return false
}

// Compile-time interface compliance check.
var _ Platform = (*PlatformHTTPClient)(nil)
