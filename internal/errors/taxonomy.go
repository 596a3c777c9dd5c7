package errors

import "fmt"

// Pipeline error taxonomy. Callers match these with errors.Is; enhanced
// errors built around them keep the sentinel in their chain.
var (
	// ErrInvalidParameter rejects a request before any state is mutated.
	ErrInvalidParameter = NewStd("invalid parameter")

	// ErrNoTrainingData is returned when no labeled segment exists for a training run.
	ErrNoTrainingData = NewStd("no labeled segments available for training")

	// ErrUnsupportedModelFormat is returned for model files with an unknown extension.
	ErrUnsupportedModelFormat = NewStd("unsupported model format")

	// ErrMissingClassManifest is returned when a tensor model has no class_names.json beside it.
	ErrMissingClassManifest = NewStd("class names manifest not found")

	// ErrMissingArtifact marks a single missing file; the item is skipped, the workflow continues.
	ErrMissingArtifact = NewStd("artifact missing")

	// ErrExternalComponent wraps failures of the codec, trainer or inference runtime.
	ErrExternalComponent = NewStd("external component failure")
)

// ExternalFailure wraps err so that it matches ErrExternalComponent while
// keeping the original cause in the chain.
func ExternalFailure(component string, err error) *EnhancedError {
	return New(fmt.Errorf("%w: %w", ErrExternalComponent, err)).
		Component(component).
		Category(CategoryIntegration).
		Priority(PriorityHigh).
		Build()
}
