// Package telemetry publishes pipeline run metrics to AWS CloudWatch.
//
// Every emission is fire-and-forget: a metric that cannot be delivered is
// logged and dropped, never failing the run that produced it.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"fieldline/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// StageMetrics is the metric surface the pipeline records against.
//
// Metrics emitted:
//   - StageDuration: Dims {Stage} -- wall-clock time of each pipeline stage
//   - RunCompleted: Dims {Collection} -- on every successful run
//   - RunFailed: Dims {ErrorCode} -- on every failed run
//   - ScenesMatched: Dims {Collection} -- scene count after the search stage
//   - TrainingSamples: No dims -- sample count after region sampling
//   - BoundaryFeatures: No dims -- polygon count after vectorization
//   - PlatformCallFailure: Dims {Operation} -- remote call that sank a run
type StageMetrics interface {
	RecordStageDuration(ctx context.Context, stage string, duration time.Duration)
	RecordRunCompleted(ctx context.Context, collection string)
	RecordRunFailed(ctx context.Context, code types.ErrorCode)
	RecordScenesMatched(ctx context.Context, collection string, count int)
	RecordTrainingSamples(ctx context.Context, count int)
	RecordBoundaryFeatures(ctx context.Context, count int)
	RecordPlatformCallFailure(ctx context.Context, operation string)
}

// Compile-time assertions that both implementations satisfy StageMetrics.
var (
	_ StageMetrics = (*CloudWatchStageMetrics)(nil)
	_ StageMetrics = (*NoopStageMetrics)(nil)
)

// CloudWatchStageMetrics implements StageMetrics by emitting metrics to AWS
// CloudWatch under a single namespace.
type CloudWatchStageMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchStageMetrics creates a CloudWatchStageMetrics publishing to the
// given namespace. An empty namespace falls back to the canonical one.
func NewCloudWatchStageMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchStageMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchStageMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordStageDuration emits a StageDuration metric with the Stage dimension.
// Duration is recorded in milliseconds for CloudWatch precision.
func (m *CloudWatchStageMetrics) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricStageDuration),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimStage), Value: aws.String(stage)},
		},
	}, "stage", stage, "duration_ms", duration.Milliseconds())
}

// RecordRunCompleted emits a RunCompleted count with the Collection dimension.
func (m *CloudWatchStageMetrics) RecordRunCompleted(ctx context.Context, collection string) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRunCompleted),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimCollection), Value: aws.String(collection)},
		},
	}, "collection", collection)
}

// RecordRunFailed emits a RunFailed count with the ErrorCode dimension.
func (m *CloudWatchStageMetrics) RecordRunFailed(ctx context.Context, code types.ErrorCode) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRunFailed),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimErrorCode), Value: aws.String(string(code))},
		},
	}, "code", string(code))
}

// RecordScenesMatched emits the scene count of a search with the Collection
// dimension.
func (m *CloudWatchStageMetrics) RecordScenesMatched(ctx context.Context, collection string, count int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricScenesMatched),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimCollection), Value: aws.String(collection)},
		},
	}, "collection", collection, "count", count)
}

// RecordTrainingSamples emits the sample count extracted for training.
func (m *CloudWatchStageMetrics) RecordTrainingSamples(ctx context.Context, count int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricTrainingSamples),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
	}, "count", count)
}

// RecordBoundaryFeatures emits the polygon count produced by vectorization.
func (m *CloudWatchStageMetrics) RecordBoundaryFeatures(ctx context.Context, count int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricBoundaryFeatures),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
	}, "count", count)
}

// RecordPlatformCallFailure emits a PlatformCallFailure count with the
// Operation dimension.
func (m *CloudWatchStageMetrics) RecordPlatformCallFailure(ctx context.Context, operation string) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPlatformCallFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimOperation), Value: aws.String(operation)},
		},
	}, "operation", operation)
}

// put delivers a single datum, logging delivery failures without propagating
// them.
func (m *CloudWatchStageMetrics) put(ctx context.Context, datum cwtypes.MetricDatum, logArgs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		args := append([]any{"error", err.Error(), "metric", aws.ToString(datum.MetricName)}, logArgs...)
		m.logger.WarnContext(ctx, "failed to record metric", args...)
	}
}

// NoopStageMetrics discards every metric. Used for dry runs and whenever
// metric publishing is disabled.
type NoopStageMetrics struct{}

// NewNoop returns a StageMetrics that discards everything.
func NewNoop() *NoopStageMetrics { return &NoopStageMetrics{} }

func (*NoopStageMetrics) RecordStageDuration(context.Context, string, time.Duration) {}
func (*NoopStageMetrics) RecordRunCompleted(context.Context, string)                 {}
func (*NoopStageMetrics) RecordRunFailed(context.Context, types.ErrorCode)           {}
func (*NoopStageMetrics) RecordScenesMatched(context.Context, string, int)           {}
func (*NoopStageMetrics) RecordTrainingSamples(context.Context, int)                 {}
func (*NoopStageMetrics) RecordBoundaryFeatures(context.Context, int)                {}
func (*NoopStageMetrics) RecordPlatformCallFailure(context.Context, string)          {}
