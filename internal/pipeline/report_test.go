package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"fieldline/internal/external"
	"fieldline/internal/types"
)

func runForReport(t *testing.T) *Result {
	t.Helper()
	p, err := NewPipeline(PipelineConfig{
		Platform: external.NewStubPlatform(discardLogger()),
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	res, err := p.Run(context.Background(), "run-report", types.DefaultRunParams())
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}
	return res
}

func TestBuildReport_CapturesRunOutcome(t *testing.T) {
	res := runForReport(t)
	report := BuildReport(res)

	if report.RunID != "run-report" {
		t.Errorf("run ID = %q", report.RunID)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("expected GeneratedAt set from run finish time")
	}
	if report.Scenes.Count != 3 || len(report.Scenes.IDs) != 3 {
		t.Errorf("scenes = %+v", report.Scenes)
	}
	if report.Composite.SceneCount != 3 {
		t.Errorf("composite scene count = %d", report.Composite.SceneCount)
	}
	if report.Training.SampleCount == 0 {
		t.Error("expected training sample count")
	}
	// Class counts are keyed by human-readable label.
	if report.Training.ClassCounts["field"] == 0 || report.Training.ClassCounts["non_field"] == 0 {
		t.Errorf("class counts = %v", report.Training.ClassCounts)
	}
	if report.Classifier.Trees != types.DefaultTrees {
		t.Errorf("trees = %d", report.Classifier.Trees)
	}
	if report.Boundaries.FeatureCount == 0 {
		t.Error("expected boundary feature count")
	}

	wantStages := []string{
		types.StageValidate, types.StageSearch, types.StageComposite,
		types.StageSample, types.StageTrain, types.StageClassify, types.StageBoundary,
	}
	if len(report.Stages) != len(wantStages) {
		t.Fatalf("expected %d stage entries, got %d", len(wantStages), len(report.Stages))
	}
	for i, want := range wantStages {
		if report.Stages[i].Stage != want {
			t.Errorf("stage[%d] = %q, want %q", i, report.Stages[i].Stage, want)
		}
	}
}

func TestReportJSON_UsesContractKeys(t *testing.T) {
	res := runForReport(t)
	report := BuildReport(res)
	report.Version = "1.2.3"
	report.Preflight = &PreflightReport{Tile: "31UFU", Mirror: "sentinel-s2-l2a", DatesAvailable: 6}

	data, err := report.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report.json does not parse: %v", err)
	}

	for _, key := range []string{
		"run_id", "generated_at", "version", "params",
		"scenes", "composite", "training", "classifier", "boundaries",
		"stages", "preflight",
	} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing report key %q", key)
		}
	}

	scenes, ok := decoded["scenes"].(map[string]any)
	if !ok {
		t.Fatal("scenes is not an object")
	}
	if _, ok := scenes["cloud_cover_percent"]; !ok {
		t.Error("missing scenes.cloud_cover_percent")
	}

	preflight, ok := decoded["preflight"].(map[string]any)
	if !ok {
		t.Fatal("preflight is not an object")
	}
	if got := preflight["dates_available"].(float64); got != 6 {
		t.Errorf("preflight.dates_available = %v", got)
	}
}
