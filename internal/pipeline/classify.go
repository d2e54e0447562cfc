package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"fieldline/internal/types"
)

// sampleTraining samples the composite's band values under every ground-truth
// polygon, carrying the class property onto each sample. The platform rejects
// an empty or single-class sample with a training-data error, which is
// propagated verbatim.
func (p *Pipeline) sampleTraining(ctx context.Context, logger *slog.Logger, params types.RunParams, composite *types.CompositeImage) (*types.TrainingSummary, error) {
	features, err := p.truth.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding ground truth: %w", err)
	}

	summary, err := p.platform.SampleRegions(ctx, composite.AssetID, features,
		p.truth.ClassProperty(), params.Scale, params.TileScale)
	if err != nil {
		return nil, fmt.Errorf("sampling training regions: %w", err)
	}

	p.metrics.RecordTrainingSamples(ctx, summary.SampleCount)
	logger.InfoContext(ctx, "training samples extracted",
		"table_id", summary.TableID,
		"samples", summary.SampleCount,
		"polygons", p.truth.Len(),
	)

	return summary, nil
}

// trainClassifier fits the random-forest ensemble on the sample table, using
// every composite band (reflectance plus vegetation index) as a predictor.
func (p *Pipeline) trainClassifier(ctx context.Context, logger *slog.Logger, params types.RunParams, training *types.TrainingSummary, composite *types.CompositeImage) (*types.Classifier, error) {
	model, err := p.platform.TrainClassifier(ctx, training.TableID,
		p.truth.ClassProperty(), composite.Bands, params.Trees)
	if err != nil {
		return nil, fmt.Errorf("training classifier: %w", err)
	}

	logger.InfoContext(ctx, "classifier trained",
		"classifier_id", model.ClassifierID,
		"trees", model.Trees,
		"predictor_bands", composite.Bands,
	)

	return model, nil
}

// classifyComposite applies the trained model to the composite. The output
// raster's single band is named after the class property and carries the
// predicted label per pixel.
func (p *Pipeline) classifyComposite(ctx context.Context, logger *slog.Logger, composite *types.CompositeImage, model *types.Classifier) (*types.ClassificationRaster, error) {
	raster, err := p.platform.Classify(ctx, composite.AssetID, model.ClassifierID, p.truth.ClassProperty())
	if err != nil {
		return nil, fmt.Errorf("classifying composite: %w", err)
	}

	logger.InfoContext(ctx, "composite classified",
		"asset_id", raster.AssetID,
		"band", raster.Band,
	)

	return raster, nil
}
