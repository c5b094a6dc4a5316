package assessment

import (
	"context"

	"symptomguide/internal/inference"
)

// Engine is the inference surface the orchestrator depends on. Production
// uses LLMEngine; tests substitute a scripted fake.
type Engine interface {
	ImageNecessity(ctx context.Context, profile UserProfile) (ImageNecessity, error)
	AnalyzeImage(ctx context.Context, profile UserProfile, imageData []byte, mime string) (ImageAnalysisResult, error)
	MatchCondition(ctx context.Context, profile UserProfile, analysis ImageAnalysisResult) (ConditionMatchVerdict, error)
	FollowUpQuestions(ctx context.Context, profile UserProfile, analysis *ImageAnalysisResult) ([]Question, error)
	Recommend(ctx context.Context, profile UserProfile, analysis *ImageAnalysisResult, questions []Question, answers AnswerSet) (Recommendation, error)
}

// LLMEngine pairs each operation's prompt builder with its normalizer and
// runs them through the retrying inference client.
type LLMEngine struct {
	client *inference.Client
}

// NewLLMEngine returns an engine backed by the given client.
func NewLLMEngine(client *inference.Client) *LLMEngine {
	return &LLMEngine{client: client}
}

func (e *LLMEngine) ImageNecessity(ctx context.Context, profile UserProfile) (ImageNecessity, error) {
	spec := BuildImageNecessityPrompt(profile)
	return inference.Invoke(ctx, e.client, inference.OpImageNecessity, spec, NormalizeImageNecessity)
}

func (e *LLMEngine) AnalyzeImage(ctx context.Context, profile UserProfile, imageData []byte, mime string) (ImageAnalysisResult, error) {
	spec := BuildImageAnalysisPrompt(profile, imageData, mime)
	return inference.Invoke(ctx, e.client, inference.OpImageAnalysis, spec, NormalizeImageAnalysis)
}

func (e *LLMEngine) MatchCondition(ctx context.Context, profile UserProfile, analysis ImageAnalysisResult) (ConditionMatchVerdict, error) {
	spec := BuildConditionMatchPrompt(profile, analysis)
	return inference.Invoke(ctx, e.client, inference.OpConditionMatch, spec, NormalizeConditionMatch)
}

func (e *LLMEngine) FollowUpQuestions(ctx context.Context, profile UserProfile, analysis *ImageAnalysisResult) ([]Question, error) {
	spec := BuildFollowUpQuestionsPrompt(profile, analysis)
	return inference.Invoke(ctx, e.client, inference.OpFollowUpQuestions, spec, NormalizeQuestions)
}

func (e *LLMEngine) Recommend(ctx context.Context, profile UserProfile, analysis *ImageAnalysisResult, questions []Question, answers AnswerSet) (Recommendation, error) {
	spec := BuildRecommendationPrompt(profile, analysis, questions, answers)
	return inference.Invoke(ctx, e.client, inference.OpRecommendation, spec, NormalizeRecommendation)
}
