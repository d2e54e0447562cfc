// Package main is the entry point for the fieldline survey pipeline.
//
// One invocation performs one survey run: scene search, cloud-masked median
// compositing, random-forest classification, field boundary extraction, map
// rendering, and artifact writing. Every pixel-touching computation executes
// on the remote geospatial platform; with -dry-run the in-process stub stands
// in for it and no credentials are needed.
//
// Usage:
//
//	go run ./cmd/pipeline -dry-run
//	go run ./cmd/pipeline -start 2022-07-01 -end 2022-07-31 -cloud 10
//	go run ./cmd/pipeline -aoi 5.30,52.40,5.70,52.60 -trees 50 -out ./runs
//
// Exit codes: 2 invalid parameters, 3 unusable inputs (no scenes, bad
// training data), 4 remote platform or archive failure, 1 anything else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fieldline/internal/artifacts"
	"fieldline/internal/catalog"
	"fieldline/internal/config"
	"fieldline/internal/external"
	"fieldline/internal/groundtruth"
	"fieldline/internal/pipeline"
	"fieldline/internal/render"
	"fieldline/internal/telemetry"
	"fieldline/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// runFlags collects the command-line overrides for one survey run. Run
// parameters default to the canonical constants; operational flags default to
// the service configuration.
type runFlags struct {
	dryRun      bool
	runID       string
	outDir      string
	groundTruth string

	aoi           string
	start         string
	end           string
	collection    string
	cloud         float64
	trees         int
	scale         float64
	tileScale     float64
	edgeThreshold float64
	edgeSigma     float64
	binarize      int
}

// run encapsulates the whole lifecycle so that main() can cleanly exit on
// error.
func run() error {
	f := parseFlags()

	// SSM resolution only happens outside local mode, so an unconfigured
	// region is harmless for local and dry runs.
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("fieldline pipeline starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"dry_run", f.dryRun,
	)

	params, err := buildRunParams(f)
	if err != nil {
		return err
	}

	truth, err := loadGroundTruth(f.groundTruth, params.ClassProperty, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform and thumbnail fetcher: the stub pair for dry runs, the HTTP
	// pair otherwise.
	var (
		platform external.Platform
		fetcher  external.Fetcher
	)
	if f.dryRun {
		logger.Info("dry run: using the in-process platform stub")
		platform = external.NewStubPlatform(logger)
		fetcher = external.NewStubFetcher(logger)
	} else {
		tokens, err := newTokenSource(cfg.Platform)
		if err != nil {
			return fmt.Errorf("configuring platform auth: %w", err)
		}
		platform = external.NewPlatformClient(
			&http.Client{Timeout: cfg.Platform.Timeout},
			external.PlatformClientConfig{
				BaseURL:   cfg.Platform.BaseURL,
				Tokens:    tokens,
				UserAgent: cfg.Platform.UserAgent,
				Logger:    logger,
			},
		)
		fetcher = external.NewFetcher(&http.Client{Timeout: cfg.Platform.Timeout}, logger)
	}

	// AWS wiring is needed only for CloudWatch metrics and the archive
	// preflight, both of which are skipped in dry runs.
	var awsCfg aws.Config
	needAWS := !f.dryRun && (cfg.Observability.EnableMetrics || cfg.Catalog.Enabled)
	if needAWS {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS SDK config: %w", err)
		}
	}

	metrics := telemetry.StageMetrics(telemetry.NewNoop())
	if cfg.Observability.EnableMetrics && !f.dryRun {
		metrics = telemetry.NewCloudWatchStageMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			logger,
		)
	}

	var preflight *pipeline.PreflightReport
	if cfg.Catalog.Enabled && !f.dryRun {
		preflight = preflightCheck(ctx, cfg.Catalog, s3.NewFromConfig(awsCfg), params.Window, logger)
	}

	pipe, err := pipeline.NewPipeline(pipeline.PipelineConfig{
		Platform:    platform,
		GroundTruth: truth,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	res, err := pipe.Run(ctx, f.runID, params)
	if err != nil {
		return err
	}

	// Rendering. The map is part of the deliverable and failure is fatal;
	// the quicklook is presentation-only and degrades to a warning.
	renderer, err := render.NewRenderer(render.RendererConfig{
		Tiles:   platform,
		Fetcher: fetcher,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	in := render.MapInput{
		RunID:      res.RunID,
		Params:     res.Params,
		Vis:        types.DefaultVisSpec(),
		Composite:  res.Composite,
		Classified: res.Classified,
		Boundaries: res.Boundaries,
	}

	renderStart := time.Now()
	mapHTML, renderErr := renderer.RenderMap(ctx, in)
	var quicklook []byte
	if renderErr == nil && cfg.Artifacts.QuicklookWidth > 0 {
		quicklook, err = renderer.Quicklook(ctx, in, cfg.Artifacts.QuicklookWidth)
		if err != nil {
			logger.WarnContext(ctx, "quicklook failed; continuing without it", "error", err)
			quicklook = nil
		}
	}
	metrics.RecordStageDuration(ctx, types.StageRender, time.Since(renderStart))
	if renderErr != nil {
		return renderErr
	}

	report := pipeline.BuildReport(res)
	report.Version = cfg.Build.Version
	report.Preflight = preflight
	reportJSON, err := report.JSON()
	if err != nil {
		return err
	}

	outDir := f.outDir
	if outDir == "" {
		outDir = cfg.Artifacts.Dir
	}
	writer, err := artifacts.NewWriter(outDir, cfg.Artifacts.CompressVectors, logger)
	if err != nil {
		return err
	}

	artifactsStart := time.Now()
	written, err := writer.Write(res.RunID, artifacts.RunArtifacts{
		MapHTML:    mapHTML,
		Boundaries: res.Boundaries.GeoJSON,
		Report:     reportJSON,
		Quicklook:  quicklook,
	})
	metrics.RecordStageDuration(ctx, types.StageArtifacts, time.Since(artifactsStart))
	if err != nil {
		return err
	}

	printSummary(os.Stdout, res, written)
	return nil
}

// parseFlags declares and parses the command line. Run parameter defaults are
// the canonical survey constants so that a bare invocation reproduces the
// reference Flevoland run.
func parseFlags() runFlags {
	var f runFlags

	defaults := types.DefaultRunParams()

	flag.BoolVar(&f.dryRun, "dry-run", false, "run against the in-process platform stub (no credentials, no AWS)")
	flag.StringVar(&f.runID, "run-id", "", "explicit run ID (default: a fresh UUID)")
	flag.StringVar(&f.outDir, "out", "", "artifact output directory (default: ARTIFACTS_DIR from config)")
	flag.StringVar(&f.groundTruth, "ground-truth", "", "path to a labeled GeoJSON FeatureCollection (default: the built-in set)")

	flag.StringVar(&f.aoi, "aoi", formatAOI(defaults.AOI), "survey rectangle as west,south,east,north")
	flag.StringVar(&f.start, "start", defaults.Window.Start.Format(time.DateOnly), "window start date (YYYY-MM-DD, inclusive)")
	flag.StringVar(&f.end, "end", defaults.Window.End.Format(time.DateOnly), "window end date (YYYY-MM-DD, exclusive)")
	flag.StringVar(&f.collection, "collection", defaults.Collection, "imagery collection to search")
	flag.Float64Var(&f.cloud, "cloud", defaults.CloudCeiling, "maximum scene cloud cover percent")
	flag.IntVar(&f.trees, "trees", defaults.Trees, "random forest size")
	flag.Float64Var(&f.scale, "scale", defaults.Scale, "sampling scale in meters per pixel")
	flag.Float64Var(&f.tileScale, "tile-scale", defaults.TileScale, "remote computation tile scale")
	flag.Float64Var(&f.edgeThreshold, "edge-threshold", defaults.EdgeThreshold, "Canny edge strength threshold")
	flag.Float64Var(&f.edgeSigma, "edge-sigma", defaults.EdgeSigma, "Canny Gaussian sigma")
	flag.IntVar(&f.binarize, "binarize", defaults.BinarizeThreshold, "edge binarization threshold (strictly greater than)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Fieldline Survey Pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Classifies farmland and extracts field boundaries for a survey\n")
		fmt.Fprintf(os.Stderr, "rectangle and date window, then writes map, boundary, and report\n")
		fmt.Fprintf(os.Stderr, "artifacts into a per-run directory.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pipeline [-dry-run] [-aoi W,S,E,N] [-start DATE] [-end DATE] [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return f
}

// buildRunParams assembles the run parameters from flag values. Full
// validation happens inside the pipeline's validate stage; only flag formats
// are checked here.
func buildRunParams(f runFlags) (types.RunParams, error) {
	params := types.DefaultRunParams()

	aoi, err := parseAOI(f.aoi)
	if err != nil {
		return types.RunParams{}, err
	}
	params.AOI = aoi

	window, err := parseWindow(f.start, f.end)
	if err != nil {
		return types.RunParams{}, err
	}
	params.Window = window

	params.Collection = f.collection
	params.CloudCeiling = f.cloud
	params.Trees = f.trees
	params.Scale = f.scale
	params.TileScale = f.tileScale
	params.EdgeThreshold = f.edgeThreshold
	params.EdgeSigma = f.edgeSigma
	params.BinarizeThreshold = f.binarize
	return params, nil
}

// parseAOI parses a west,south,east,north rectangle.
func parseAOI(s string) (types.AOI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.AOI{}, types.NewAppError(types.ErrCodeValidationParameter,
			fmt.Sprintf("aoi must be west,south,east,north, got %q", s), nil)
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return types.AOI{}, types.NewAppError(types.ErrCodeValidationParameter,
				fmt.Sprintf("aoi component %q is not a number", part), err)
		}
		vals[i] = v
	}

	return types.AOI{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}, nil
}

// parseWindow parses the start and end dates into a UTC time window.
func parseWindow(start, end string) (types.TimeWindow, error) {
	startT, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return types.TimeWindow{}, types.NewAppError(types.ErrCodeValidationParameter,
			fmt.Sprintf("start date %q is not YYYY-MM-DD", start), err)
	}
	endT, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return types.TimeWindow{}, types.NewAppError(types.ErrCodeValidationParameter,
			fmt.Sprintf("end date %q is not YYYY-MM-DD", end), err)
	}
	return types.TimeWindow{Start: startT, End: endT}, nil
}

// formatAOI renders a rectangle in the flag format.
func formatAOI(a types.AOI) string {
	return fmt.Sprintf("%g,%g,%g,%g", a.West, a.South, a.East, a.North)
}

// loadGroundTruth reads a caller-supplied training set, or returns nil so the
// pipeline falls back to the built-in one.
func loadGroundTruth(path, classProperty string, logger *slog.Logger) (*groundtruth.Set, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationGeometry,
			fmt.Sprintf("reading ground truth file %s", path), err)
	}

	set, err := groundtruth.FromGeoJSON(data, classProperty)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded ground truth",
		"path", path,
		"polygons", set.Len(),
	)
	return set, nil
}

// newTokenSource picks the platform credential: the service account wins over
// a static API key; with neither, requests go out unauthenticated.
func newTokenSource(cfg config.PlatformConfig) (external.TokenSource, error) {
	switch {
	case cfg.HasServiceAccount():
		return external.NewServiceAccountTokenSource(
			cfg.ServiceAccount,
			[]byte(cfg.PrivateKeyPEM.Unmask()),
			cfg.BaseURL,
			cfg.TokenTTL,
		)
	case cfg.HasAPIKey():
		return external.NewAPIKeyTokenSource(cfg.APIKey.Unmask()), nil
	default:
		return external.AnonymousTokenSource(), nil
	}
}

// preflightCheck probes the public Sentinel-2 archive for the survey tile and
// logs what it finds. Advisory only: failures and empty windows never stop
// the run.
func preflightCheck(ctx context.Context, cfg config.CatalogConfig, client catalog.S3ListClient, window types.TimeWindow, logger *slog.Logger) *pipeline.PreflightReport {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	probe := catalog.NewProbe(client, cfg.Mirrors, logger)
	summary, err := probe.Check(probeCtx, cfg.Tile, window)
	if err != nil {
		logger.WarnContext(ctx, "archive preflight failed; continuing",
			"tile", cfg.Tile,
			"error", err,
		)
		return nil
	}

	if summary.Empty() {
		logger.WarnContext(ctx, "archive preflight found no acquisition dates in the window; the scene search may come back empty",
			"tile", summary.Tile,
			"mirror", summary.Mirror,
		)
	} else {
		logger.InfoContext(ctx, "archive preflight complete",
			"tile", summary.Tile,
			"mirror", summary.Mirror,
			"dates_available", len(summary.Dates),
		)
	}

	return &pipeline.PreflightReport{
		Tile:           summary.Tile,
		Mirror:         summary.Mirror,
		DatesAvailable: len(summary.Dates),
	}
}

// printSummary writes the human-readable run summary.
func printSummary(w io.Writer, res *pipeline.Result, written *artifacts.Written) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintln(w, "  Fieldline Survey Run")
	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintf(w, "  Run ID:      %s\n", res.RunID)
	fmt.Fprintf(w, "  Window:      %s to %s\n",
		res.Params.Window.Start.Format(time.DateOnly),
		res.Params.Window.End.Format(time.DateOnly))
	fmt.Fprintf(w, "  Scenes:      %d (cloud mean %.1f%%)\n", len(res.Scenes.Scenes), res.CloudCover.Mean)
	fmt.Fprintf(w, "  Samples:     %d\n", res.Training.SampleCount)
	fmt.Fprintf(w, "  Boundaries:  %d features\n", res.Boundaries.FeatureCount)
	fmt.Fprintf(w, "  Elapsed:     %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  Artifacts:   %s\n", written.Dir)
	for _, name := range written.Files {
		fmt.Fprintf(w, "    - %s\n", name)
	}
	fmt.Fprintln(w, "------------------------------------------------------------")
}

// exitCode maps an error to the process exit code: 2 for parameter
// validation, 3 for unusable inputs, 4 for remote platform or archive
// failures, 1 for everything else.
func exitCode(err error) int {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return 1
	}

	code := string(appErr.Code)
	switch {
	case strings.HasPrefix(code, "validation_"):
		return 2
	case strings.HasPrefix(code, "empty_input_"), strings.HasPrefix(code, "training_data_"):
		return 3
	case strings.HasPrefix(code, "remote_"), strings.HasPrefix(code, "catalog_"):
		return 4
	default:
		return 1
	}
}

// newLogger creates a structured JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
