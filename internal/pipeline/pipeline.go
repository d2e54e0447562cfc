// Package pipeline implements the farmland survey pipeline: scene search,
// cloud-masked median compositing, random-forest classification, and field
// boundary extraction.
//
// Every pixel-touching computation is delegated to the remote geospatial
// platform; the pipeline holds only opaque handles between stages. A run is a
// strict stage sequence with no retries and no partial output: the first
// stage error sinks the run.
//
// Stage order:
//
//	validate -> scene_search -> composite -> sample -> train -> classify -> boundary
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldline/internal/external"
	"fieldline/internal/groundtruth"
	"fieldline/internal/telemetry"
	"fieldline/internal/types"
)

// Pipeline orchestrates a single survey run against the platform.
type Pipeline struct {
	platform external.Platform
	truth    *groundtruth.Set
	metrics  telemetry.StageMetrics
	clock    types.Clock
	logger   *slog.Logger
}

// PipelineConfig holds the configuration for creating a Pipeline.
type PipelineConfig struct {
	// Platform executes all remote computation. Required.
	Platform external.Platform

	// GroundTruth supplies the labeled training polygons. Defaults to the
	// built-in Flevoland reference set.
	GroundTruth *groundtruth.Set

	// Metrics receives stage timings and run outcomes. Defaults to a noop.
	Metrics telemetry.StageMetrics

	// Clock drives stage timing. Defaults to the real clock.
	Clock types.Clock

	Logger *slog.Logger
}

// NewPipeline creates a Pipeline with the given configuration.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Platform == nil {
		return nil, errors.New("pipeline: Platform is required")
	}
	truth := cfg.GroundTruth
	if truth == nil {
		truth = groundtruth.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		platform: cfg.Platform,
		truth:    truth,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
	}, nil
}

// StageTiming records the wall-clock duration of one pipeline stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result carries everything a completed run produced. It is only returned on
// full success; a failed run yields a nil Result.
type Result struct {
	RunID      string
	Params     types.RunParams
	StartedAt  time.Time
	FinishedAt time.Time

	Scenes     *types.SceneCollection
	CloudCover types.CloudCoverStats
	Composite  *types.CompositeImage
	Training   *types.TrainingSummary
	Classifier *types.Classifier
	Classified *types.ClassificationRaster
	Boundaries *types.BoundaryVectorSet

	Timings []StageTiming
}

// Run executes the full pipeline for the given parameters. An empty runID is
// replaced with a fresh UUID. The run ID is attached to the context so every
// log line and platform request carries it.
//
// Stages run strictly in order; the first error aborts the run and is
// returned unchanged, so callers can inspect the AppError code.
func (p *Pipeline) Run(ctx context.Context, runID string, params types.RunParams) (*Result, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = types.WithRequestID(ctx, runID)
	logger := p.logger.With("run_id", runID)

	res := &Result{
		RunID:     runID,
		Params:    params,
		StartedAt: p.clock.Now(),
	}

	logger.InfoContext(ctx, "starting survey run",
		"collection", params.Collection,
		"window_start", params.Window.Start.Format(time.RFC3339),
		"window_end", params.Window.End.Format(time.RFC3339),
		"cloud_ceiling_percent", params.CloudCeiling,
	)

	// --- Validate ---
	if err := p.runStage(ctx, res, types.StageValidate, func() error {
		return params.Validate()
	}); err != nil {
		return p.fail(ctx, logger, types.StageValidate, err)
	}

	// --- Scene search ---
	if err := p.runStage(ctx, res, types.StageSearch, func() error {
		var err error
		res.Scenes, res.CloudCover, err = p.searchScenes(ctx, logger, params)
		return err
	}); err != nil {
		return p.fail(ctx, logger, types.StageSearch, err)
	}

	// --- Composite ---
	if err := p.runStage(ctx, res, types.StageComposite, func() error {
		var err error
		res.Composite, err = p.buildComposite(ctx, logger, params, res.Scenes)
		return err
	}); err != nil {
		return p.fail(ctx, logger, types.StageComposite, err)
	}

	// --- Sample ---
	if err := p.runStage(ctx, res, types.StageSample, func() error {
		var err error
		res.Training, err = p.sampleTraining(ctx, logger, params, res.Composite)
		return err
	}); err != nil {
		return p.fail(ctx, logger, types.StageSample, err)
	}

	// --- Train ---
	if err := p.runStage(ctx, res, types.StageTrain, func() error {
		var err error
		res.Classifier, err = p.trainClassifier(ctx, logger, params, res.Training, res.Composite)
		return err
	}); err != nil {
		return p.fail(ctx, logger, types.StageTrain, err)
	}

	// --- Classify ---
	if err := p.runStage(ctx, res, types.StageClassify, func() error {
		var err error
		res.Classified, err = p.classifyComposite(ctx, logger, res.Composite, res.Classifier)
		return err
	}); err != nil {
		return p.fail(ctx, logger, types.StageClassify, err)
	}

	// --- Boundary ---
	if err := p.runStage(ctx, res, types.StageBoundary, func() error {
		var err error
		res.Boundaries, err = p.extractBoundaries(ctx, logger, params, res.Classified)
		return err
	}); err != nil {
		return p.fail(ctx, logger, types.StageBoundary, err)
	}

	res.FinishedAt = p.clock.Now()
	p.metrics.RecordRunCompleted(ctx, params.Collection)

	logger.InfoContext(ctx, "survey run complete",
		"scenes", len(res.Scenes.Scenes),
		"samples", res.Training.SampleCount,
		"boundary_features", res.Boundaries.FeatureCount,
		"elapsed", res.FinishedAt.Sub(res.StartedAt).String(),
	)

	return res, nil
}

// runStage executes fn, timing it against the clock, and records the duration
// both as a metric and in the result's timing list. The timing is recorded
// whether the stage succeeds or fails.
func (p *Pipeline) runStage(ctx context.Context, res *Result, stage string, fn func() error) error {
	start := p.clock.Now()
	err := fn()
	elapsed := p.clock.Now().Sub(start)

	res.Timings = append(res.Timings, StageTiming{Stage: stage, Duration: elapsed})
	p.metrics.RecordStageDuration(ctx, stage, elapsed)
	return err
}

// fail records the run failure and returns the stage error unchanged.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, stage string, err error) (*Result, error) {
	code := errorCode(err)
	p.metrics.RecordRunFailed(ctx, code)
	if strings.HasPrefix(string(code), "remote_") {
		p.metrics.RecordPlatformCallFailure(ctx, stage)
	}

	logger.ErrorContext(ctx, "survey run failed",
		"stage", stage,
		"code", string(code),
		"error", err,
	)
	return nil, err
}

// errorCode extracts the AppError code from an error chain, falling back to
// the internal catch-all for unclassified errors.
func errorCode(err error) types.ErrorCode {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return types.ErrCodeInternalUnexpected
}
