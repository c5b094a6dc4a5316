package inference

import "context"

// Operation identifies one inference operation and selects its prompt
// builder / normalizer pair.
type Operation string

const (
	OpImageNecessity    Operation = "image_necessity"
	OpImageAnalysis     Operation = "image_analysis"
	OpConditionMatch    Operation = "condition_match"
	OpFollowUpQuestions Operation = "follow_up_questions"
	OpRecommendation    Operation = "recommendation"
)

// RequestSpec is a fully built provider request: instructions plus the
// sampling and output-format parameters for one operation. Prompt builders
// produce these; providers translate them to their wire format.
type RequestSpec struct {
	System string
	User   string

	// Inline image payload for vision operations. Raw bytes; providers
	// encode at the wire boundary.
	ImageData []byte
	ImageMIME string

	Temperature float64
	MaxTokens   int

	// ForceJSON requests a structured (JSON-constrained) response from
	// providers that support it. Normalizers still treat the payload as
	// untrusted.
	ForceJSON bool

	// Vision selects the provider's vision model.
	Vision bool
}

// Provider sends a single completion request using the supplied credential
// and returns the raw completion text. Implementations surface transport
// failures, non-2xx statuses and empty completions as errors; they never
// interpret the payload.
type Provider interface {
	Name() string
	Complete(ctx context.Context, credential string, spec RequestSpec) (string, error)
}
