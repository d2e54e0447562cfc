package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"fieldline/internal/types"
)

// Report is the machine-readable summary written alongside every run's map.
// Field names are part of the artifact contract; downstream tooling parses
// report.json by these exact keys.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version,omitempty"`

	Params types.RunParams `json:"params"`

	Scenes     SceneReport      `json:"scenes"`
	Composite  CompositeReport  `json:"composite"`
	Training   TrainingReport   `json:"training"`
	Classifier ClassifierReport `json:"classifier"`
	Boundaries BoundaryReport   `json:"boundaries"`

	Stages []StageReport `json:"stages"`

	// Preflight carries the advisory archive probe outcome when the probe
	// ran; absent otherwise.
	Preflight *PreflightReport `json:"preflight,omitempty"`
}

// SceneReport summarizes the scene search outcome.
type SceneReport struct {
	Count      int                   `json:"count"`
	CloudCover types.CloudCoverStats `json:"cloud_cover_percent"`
	IDs        []string              `json:"ids"`
}

// CompositeReport summarizes the median composite.
type CompositeReport struct {
	AssetID    string   `json:"asset_id"`
	Bands      []string `json:"bands"`
	SceneCount int      `json:"scene_count"`
}

// TrainingReport summarizes the training sample extraction.
type TrainingReport struct {
	SampleCount int            `json:"sample_count"`
	ClassCounts map[string]int `json:"class_counts"`
}

// ClassifierReport summarizes the trained model.
type ClassifierReport struct {
	Trees int `json:"trees"`
}

// BoundaryReport summarizes the vectorized field boundaries.
type BoundaryReport struct {
	FeatureCount int `json:"feature_count"`
}

// StageReport is one stage timing entry, in milliseconds.
type StageReport struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// PreflightReport records the Sentinel-2 archive probe outcome.
type PreflightReport struct {
	Tile           string `json:"tile"`
	Mirror         string `json:"mirror"`
	DatesAvailable int    `json:"dates_available"`
}

// BuildReport assembles the run report from a completed result.
func BuildReport(res *Result) *Report {
	sceneIDs := make([]string, 0, len(res.Scenes.Scenes))
	for _, s := range res.Scenes.Scenes {
		sceneIDs = append(sceneIDs, s.ID)
	}

	classCounts := make(map[string]int, len(res.Training.ClassCounts))
	for label, n := range res.Training.ClassCounts {
		classCounts[label.String()] = n
	}

	stages := make([]StageReport, 0, len(res.Timings))
	for _, t := range res.Timings {
		stages = append(stages, StageReport{
			Stage:      t.Stage,
			DurationMS: t.Duration.Milliseconds(),
		})
	}

	return &Report{
		RunID:       res.RunID,
		GeneratedAt: res.FinishedAt,
		Params:      res.Params,
		Scenes: SceneReport{
			Count:      len(res.Scenes.Scenes),
			CloudCover: res.CloudCover,
			IDs:        sceneIDs,
		},
		Composite: CompositeReport{
			AssetID:    res.Composite.AssetID,
			Bands:      res.Composite.Bands,
			SceneCount: res.Composite.SceneCount,
		},
		Training: TrainingReport{
			SampleCount: res.Training.SampleCount,
			ClassCounts: classCounts,
		},
		Classifier: ClassifierReport{
			Trees: res.Classifier.Trees,
		},
		Boundaries: BoundaryReport{
			FeatureCount: res.Boundaries.FeatureCount,
		},
		Stages: stages,
	}
}

// JSON renders the report as indented JSON for the report.json artifact.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding run report: %w", err)
	}
	return data, nil
}
