package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricStageDuration       = "StageDuration"
	MetricRunCompleted        = "RunCompleted"
	MetricRunFailed           = "RunFailed"
	MetricScenesMatched       = "ScenesMatched"
	MetricTrainingSamples     = "TrainingSamples"
	MetricBoundaryFeatures    = "BoundaryFeatures"
	MetricPlatformCallFailure = "PlatformCallFailure"

	// Dimension Keys
	DimStage      = "Stage"
	DimErrorCode  = "ErrorCode"
	DimCollection = "Collection"
	DimOperation  = "Operation"

	// Metric Namespace
	MetricNamespace = "Fieldline"
)

// Pipeline stage names.
// Canonical identifiers used in logs, metric dimensions, and run report
// timings. The report writer MUST use these exact keys.
const (
	StageValidate  = "validate"
	StageSearch    = "scene_search"
	StageComposite = "composite"
	StageSample    = "sample"
	StageTrain     = "train"
	StageClassify  = "classify"
	StageBoundary  = "boundary"
	StageRender    = "render"
	StageArtifacts = "artifacts"
)
