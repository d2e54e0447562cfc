package types

import (
	"fmt"
	"time"
)

// Validation constraint constants.
const (
	MinLat          = -90.0
	MaxLat          = 90.0
	MinLon          = -180.0
	MaxLon          = 180.0
	MinCloudCeiling = 0.0
	MaxCloudCeiling = 100.0
	MaxWindowDays   = 366
)

// Canonical run defaults. These mirror the reference survey of the
// Flevoland polder region and are used whenever a caller does not
// override them.
const (
	DefaultCollection        = "S2_SR"
	DefaultCloudCeiling      = 10.0
	DefaultTrees             = 20
	DefaultClassProperty     = "landcover"
	DefaultScale             = 10.0
	DefaultTileScale         = 16.0
	DefaultEdgeThreshold     = 0.7
	DefaultEdgeSigma         = 1.0
	DefaultBinarizeThreshold = 0
)

// AOI is a geographic bounding rectangle in WGS84 degrees.
type AOI struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// DefaultAOI returns the canonical survey rectangle (Flevoland, NL).
func DefaultAOI() AOI {
	return AOI{West: 5.30, South: 52.40, East: 5.70, North: 52.60}
}

// Validate implements the Validator interface for AOI.
func (a AOI) Validate() error {
	if a.West < MinLon || a.West > MaxLon || a.East < MinLon || a.East > MaxLon {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidBounds,
			"longitude out of range [-180, 180]", nil,
			map[string]any{"west": a.West, "east": a.East})
	}
	if a.South < MinLat || a.South > MaxLat || a.North < MinLat || a.North > MaxLat {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidBounds,
			"latitude out of range [-90, 90]", nil,
			map[string]any{"south": a.South, "north": a.North})
	}
	if a.West >= a.East {
		return NewAppError(ErrCodeValidationInvalidBounds,
			fmt.Sprintf("west (%.4f) must be less than east (%.4f)", a.West, a.East), nil)
	}
	if a.South >= a.North {
		return NewAppError(ErrCodeValidationInvalidBounds,
			fmt.Sprintf("south (%.4f) must be less than north (%.4f)", a.South, a.North), nil)
	}
	return nil
}

// Center returns the midpoint of the rectangle as (lat, lon).
func (a AOI) Center() (float64, float64) {
	return (a.South + a.North) / 2, (a.West + a.East) / 2
}

// Rect returns the rectangle as [west, south, east, north], the order the
// platform expects in request bodies.
func (a AOI) Rect() [4]float64 {
	return [4]float64{a.West, a.South, a.East, a.North}
}

// TimeWindow is a half-open acquisition interval [Start, End). The platform
// filters scenes acquired at Start or later and strictly before End.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultTimeWindow returns the canonical July 2022 survey window.
func DefaultTimeWindow() TimeWindow {
	return TimeWindow{
		Start: time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2022, 7, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Validate implements the Validator interface for TimeWindow.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return NewAppError(ErrCodeValidationInvalidWindow,
			"start and end are required", nil)
	}
	if !w.End.After(w.Start) {
		return NewAppError(ErrCodeValidationInvalidWindow,
			"end must be after start", nil)
	}
	if w.End.Sub(w.Start) > MaxWindowDays*24*time.Hour {
		return NewAppError(ErrCodeValidationInvalidWindow,
			fmt.Sprintf("maximum window is %d days", MaxWindowDays), nil)
	}
	return nil
}

// RunParams carries every knob for a single pipeline run. One value is built
// at startup, validated once, and then treated as read-only by all stages.
type RunParams struct {
	AOI    AOI        `json:"aoi"`
	Window TimeWindow `json:"window"`

	// Scene selection
	Collection   string  `json:"collection"`
	CloudCeiling float64 `json:"cloud_ceiling_percent"`

	// Composite
	Bands  []string `json:"bands"`
	QABand string   `json:"qa_band"`

	// Classification
	Trees         int     `json:"trees"`
	ClassProperty string  `json:"class_property"`
	Scale         float64 `json:"scale_m"`
	TileScale     float64 `json:"tile_scale"`

	// Boundary extraction
	EdgeThreshold     float64 `json:"edge_threshold"`
	EdgeSigma         float64 `json:"edge_sigma"`
	BinarizeThreshold int     `json:"binarize_threshold"`
}

// DefaultRunParams returns the canonical parameter set for the Flevoland
// reference survey: July 2022, 10% cloud ceiling, 20 trees, 10 m sampling.
func DefaultRunParams() RunParams {
	return RunParams{
		AOI:               DefaultAOI(),
		Window:            DefaultTimeWindow(),
		Collection:        DefaultCollection,
		CloudCeiling:      DefaultCloudCeiling,
		Bands:             DefaultBands(),
		QABand:            QABandName,
		Trees:             DefaultTrees,
		ClassProperty:     DefaultClassProperty,
		Scale:             DefaultScale,
		TileScale:         DefaultTileScale,
		EdgeThreshold:     DefaultEdgeThreshold,
		EdgeSigma:         DefaultEdgeSigma,
		BinarizeThreshold: DefaultBinarizeThreshold,
	}
}

// Validate implements the Validator interface for RunParams. It checks every
// field before the first remote call; a run never reaches the platform with
// malformed parameters.
func (p RunParams) Validate() error {
	if err := p.AOI.Validate(); err != nil {
		return err
	}
	if err := p.Window.Validate(); err != nil {
		return err
	}
	if p.CloudCeiling < MinCloudCeiling || p.CloudCeiling > MaxCloudCeiling {
		return NewAppError(ErrCodeValidationCloudCeiling,
			fmt.Sprintf("cloud ceiling %.1f outside valid range [0, 100]", p.CloudCeiling), nil)
	}
	if p.Collection == "" {
		return NewAppError(ErrCodeValidationMissingField, "collection is required", nil)
	}
	if len(p.Bands) == 0 {
		return NewAppError(ErrCodeValidationMissingField, "at least one band is required", nil)
	}
	for _, b := range p.Bands {
		if b == "" {
			return NewAppError(ErrCodeValidationMissingField, "band names must be non-empty", nil)
		}
	}
	if p.QABand == "" {
		return NewAppError(ErrCodeValidationMissingField, "qa band is required", nil)
	}
	if p.ClassProperty == "" {
		return NewAppError(ErrCodeValidationMissingField, "class property is required", nil)
	}
	if p.Trees <= 0 {
		return NewAppError(ErrCodeValidationParameter,
			fmt.Sprintf("trees must be positive, got %d", p.Trees), nil)
	}
	if p.Scale <= 0 {
		return NewAppError(ErrCodeValidationParameter,
			fmt.Sprintf("scale must be positive, got %.2f", p.Scale), nil)
	}
	if p.TileScale < 1 {
		return NewAppError(ErrCodeValidationParameter,
			fmt.Sprintf("tile scale must be at least 1, got %.2f", p.TileScale), nil)
	}
	if p.EdgeThreshold < 0 {
		return NewAppError(ErrCodeValidationParameter,
			fmt.Sprintf("edge threshold must be non-negative, got %.2f", p.EdgeThreshold), nil)
	}
	if p.EdgeSigma <= 0 {
		return NewAppError(ErrCodeValidationParameter,
			fmt.Sprintf("edge sigma must be positive, got %.2f", p.EdgeSigma), nil)
	}
	if p.BinarizeThreshold < 0 {
		return NewAppError(ErrCodeValidationParameter,
			fmt.Sprintf("binarize threshold must be non-negative, got %d", p.BinarizeThreshold), nil)
	}
	return nil
}

// StretchVis is a linear min/max stretch over a band triplet, used for
// true-color rendering.
type StretchVis struct {
	Bands []string `json:"bands"`
	Min   float64  `json:"min"`
	Max   float64  `json:"max"`
}

// PaletteVis maps integer class values onto a color palette.
type PaletteVis struct {
	Min     int      `json:"min"`
	Max     int      `json:"max"`
	Palette []string `json:"palette"`
}

// VectorVis styles a vector overlay.
type VectorVis struct {
	Color string `json:"color"`
}

// VisSpec bundles the three layer styles the map renderer consumes.
type VisSpec struct {
	TrueColor      StretchVis `json:"true_color"`
	Classification PaletteVis `json:"classification"`
	Boundary       VectorVis  `json:"boundary"`
}

// DefaultVisSpec returns the canonical layer styling: true color from the
// visible bands stretched to 0..3000, the class raster in gray/green, and
// boundaries drawn in red.
func DefaultVisSpec() VisSpec {
	return VisSpec{
		TrueColor: StretchVis{
			Bands: []string{BandRed, BandGreen, BandBlue},
			Min:   0,
			Max:   3000,
		},
		Classification: PaletteVis{
			Min:     int(ClassNonField),
			Max:     int(ClassField),
			Palette: []string{"gray", "green"},
		},
		Boundary: VectorVis{Color: "red"},
	}
}
