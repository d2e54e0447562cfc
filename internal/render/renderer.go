// Package render produces the per-run artifacts a human looks at: the
// interactive Leaflet map with the survey's three layers, and the true-color
// quicklook PNG.
//
// Map layers are never computed locally. The platform registers styled tile
// endpoints for the composite and the classified raster; the map references
// those URL templates and embeds the boundary GeoJSON inline.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"fieldline/internal/external"
	"fieldline/internal/types"
)

//go:embed templates/map.html.tmpl
var templateFS embed.FS

// TileService is the slice of the platform the renderer needs: registering
// styled tile layers and one-shot thumbnails.
type TileService interface {
	TileLayer(ctx context.Context, imageID string, vis external.VisParams) (string, error)
	Thumbnail(ctx context.Context, imageID string, vis external.VisParams, region types.AOI, width int) (string, error)
}

// MapInput bundles everything a completed run contributes to the map.
type MapInput struct {
	RunID  string
	Params types.RunParams
	Vis    types.VisSpec

	Composite  *types.CompositeImage
	Classified *types.ClassificationRaster
	Boundaries *types.BoundaryVectorSet
}

// templateData is the struct passed into the map template for rendering.
type templateData struct {
	Title       string
	RunID       string
	WindowLabel string
	SceneCount  int
	Legend      []legendEntry

	// Config is the map's data island: one JSON object consumed by the
	// template's script block.
	Config template.JS
}

type legendEntry struct {
	Label string
	Color string
}

// mapConfig is serialized to JSON and embedded in the page for the Leaflet
// script to consume.
type mapConfig struct {
	// Bounds is the survey rectangle as [[south, west], [north, east]],
	// the order Leaflet's fitBounds expects.
	Bounds        [2][2]float64   `json:"bounds"`
	TrueColorURL  string          `json:"trueColorUrl"`
	ClassifiedURL string          `json:"classifiedUrl"`
	BoundaryColor string          `json:"boundaryColor"`
	Boundaries    json.RawMessage `json:"boundaries"`
}

// Renderer builds the map HTML and quicklook PNG for a run.
type Renderer struct {
	tiles   TileService
	fetcher external.Fetcher
	logger  *slog.Logger
	tmpl    *template.Template
}

// RendererConfig holds the parameters needed to construct a Renderer.
type RendererConfig struct {
	// Tiles registers tile layers and thumbnails. Required.
	Tiles TileService

	// Fetcher downloads rendered thumbnails. Required for quicklooks; a
	// renderer without one can still build maps.
	Fetcher external.Fetcher

	Logger *slog.Logger
}

// NewRenderer parses the embedded map template and returns a Renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Tiles == nil {
		return nil, fmt.Errorf("renderer: TileService is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/map.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("renderer: parsing map template: %w", err)
	}

	return &Renderer{
		tiles:   cfg.Tiles,
		fetcher: cfg.Fetcher,
		logger:  logger,
		tmpl:    tmpl,
	}, nil
}

// RenderMap registers the two tile layers with the platform and renders the
// self-contained map HTML: true color, classification, and the boundary
// overlay, with a layers control and a legend.
func (r *Renderer) RenderMap(ctx context.Context, in MapInput) ([]byte, error) {
	if in.Composite == nil || in.Classified == nil || in.Boundaries == nil {
		return nil, types.NewAppError(types.ErrCodeRenderTemplate,
			"map rendering requires composite, classification, and boundaries", nil)
	}
	if len(in.Boundaries.GeoJSON) == 0 || !json.Valid(in.Boundaries.GeoJSON) {
		return nil, types.NewAppError(types.ErrCodeRenderTemplate,
			"boundary GeoJSON is missing or not valid JSON", nil)
	}

	trueColorURL, err := r.tiles.TileLayer(ctx, in.Composite.AssetID, external.StretchParams(in.Vis.TrueColor))
	if err != nil {
		return nil, fmt.Errorf("registering true-color layer: %w", err)
	}
	classifiedURL, err := r.tiles.TileLayer(ctx, in.Classified.AssetID, external.PaletteParams(in.Vis.Classification))
	if err != nil {
		return nil, fmt.Errorf("registering classification layer: %w", err)
	}

	boundaryColor := in.Vis.Boundary.Color
	if boundaryColor == "" {
		boundaryColor = "red"
	}
	cfg, err := json.Marshal(mapConfig{
		Bounds: [2][2]float64{
			{in.Params.AOI.South, in.Params.AOI.West},
			{in.Params.AOI.North, in.Params.AOI.East},
		},
		TrueColorURL:  trueColorURL,
		ClassifiedURL: classifiedURL,
		BoundaryColor: boundaryColor,
		Boundaries:    json.RawMessage(in.Boundaries.GeoJSON),
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeRenderTemplate,
			"encoding map config", err)
	}

	data := templateData{
		Title:       "Farmland survey",
		RunID:       in.RunID,
		WindowLabel: windowLabel(in.Params.Window),
		SceneCount:  in.Composite.SceneCount,
		Legend:      buildLegend(in.Vis),
		Config:      template.JS(cfg),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, types.NewAppError(types.ErrCodeRenderTemplate,
			"executing map template", err)
	}

	r.logger.InfoContext(ctx, "map rendered",
		"run_id", in.RunID,
		"html_bytes", buf.Len(),
		"boundary_features", in.Boundaries.FeatureCount,
	)

	return buf.Bytes(), nil
}

// windowLabel formats the acquisition window for the legend.
func windowLabel(w types.TimeWindow) string {
	return fmt.Sprintf("%s to %s",
		w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}

// buildLegend derives the legend rows from the layer styling. The palette
// maps low to high class values, so the first color is the non-field class
// and the last is the field class.
func buildLegend(vis types.VisSpec) []legendEntry {
	fieldColor := "green"
	nonFieldColor := "gray"
	if n := len(vis.Classification.Palette); n > 0 {
		nonFieldColor = vis.Classification.Palette[0]
		fieldColor = vis.Classification.Palette[n-1]
	}

	boundaryColor := vis.Boundary.Color
	if boundaryColor == "" {
		boundaryColor = "red"
	}

	return []legendEntry{
		{Label: "Field", Color: fieldColor},
		{Label: "Non-field", Color: nonFieldColor},
		{Label: "Field boundaries", Color: boundaryColor},
	}
}
