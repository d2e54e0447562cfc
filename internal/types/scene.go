package types

import "time"

// SceneSummary is the per-scene metadata returned by the platform's scene
// search. It is never mutated after the search returns.
type SceneSummary struct {
	ID         string    `json:"id"`
	AcquiredAt time.Time `json:"acquired_at"`
	CloudCover float64   `json:"cloud_cover_percent"`
	Tile       string    `json:"tile,omitempty"`
}

// SceneCollection is a platform-side handle over the scenes that matched the
// search, together with their metadata. All subsequent per-scene operations
// (masking, band math, reduction) reference CollectionID.
type SceneCollection struct {
	CollectionID string         `json:"collection_id"`
	Scenes       []SceneSummary `json:"scenes"`
}

// Empty reports whether the search matched no scenes.
func (c SceneCollection) Empty() bool {
	return len(c.Scenes) == 0
}

// CloudCoverStats summarizes the per-scene cloud cover of a collection.
type CloudCoverStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// CompositeImage is a platform-side handle to the per-pixel median composite.
// Bands lists the band names present in the image, including the derived
// vegetation index.
type CompositeImage struct {
	AssetID    string   `json:"asset_id"`
	Bands      []string `json:"bands"`
	SceneCount int      `json:"scene_count"`
}

// TrainingSummary describes the sample table extracted from the composite
// under the ground-truth polygons.
type TrainingSummary struct {
	TableID     string             `json:"table_id"`
	SampleCount int                `json:"sample_count"`
	ClassCounts map[ClassLabel]int `json:"class_counts"`
}

// Classifier is a platform-side handle to a trained ensemble model.
type Classifier struct {
	ClassifierID string `json:"classifier_id"`
	Trees        int    `json:"trees"`
}

// ClassificationRaster is a platform-side handle to the classified image.
// Its single band carries the predicted ClassLabel per pixel.
type ClassificationRaster struct {
	AssetID string `json:"asset_id"`
	Band    string `json:"band"`
}

// BoundaryVectorSet holds the vectorized field boundaries: the platform-side
// vector handle, the feature count, and the raw GeoJSON FeatureCollection
// bytes as fetched.
type BoundaryVectorSet struct {
	VectorID     string `json:"vector_id"`
	FeatureCount int    `json:"feature_count"`
	GeoJSON      []byte `json:"-"`
}

// Empty reports whether vectorization produced no boundary features.
func (b BoundaryVectorSet) Empty() bool {
	return b.FeatureCount == 0
}

// TileLayer is a slippy-map tile endpoint for one rendered layer.
type TileLayer struct {
	Name        string `json:"name"`
	URLTemplate string `json:"url_template"`
}
