package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomguide/internal/inference"
)

func TestNormalizeImageNecessity(t *testing.T) {
	t.Run("ParsesDecision", func(t *testing.T) {
		raw := `{"requires_image": true, "reason": "rash is visible", "urgency": "routine"}`
		got, err := NormalizeImageNecessity(raw)
		require.NoError(t, err)
		assert.True(t, got.RequiresImage)
		assert.Equal(t, "rash is visible", got.Reason)
		assert.Equal(t, UrgencyRoutine, got.Urgency)
	})

	t.Run("MissingDiscriminatorIsSchemaError", func(t *testing.T) {
		_, err := NormalizeImageNecessity(`{"reason": "unclear"}`)
		require.Error(t, err)
		assert.True(t, inference.IsSchemaError(err))
	})

	t.Run("ProseWrappedJSON", func(t *testing.T) {
		raw := "Here is my assessment:\n```json\n{\"requires_image\": false, \"reason\": \"internal symptom\", \"urgency\": \"self_care\"}\n```"
		got, err := NormalizeImageNecessity(raw)
		require.NoError(t, err)
		assert.False(t, got.RequiresImage)
	})

	t.Run("UnknownUrgencyDefaultsToSelfCare", func(t *testing.T) {
		got, err := NormalizeImageNecessity(`{"requires_image": false, "urgency": "whenever"}`)
		require.NoError(t, err)
		assert.Equal(t, UrgencySelfCare, got.Urgency)
	})

	t.Run("NoJSONIsSchemaError", func(t *testing.T) {
		_, err := NormalizeImageNecessity("I cannot help with that.")
		assert.True(t, inference.IsSchemaError(err))
	})
}

func TestNormalizeImageAnalysis(t *testing.T) {
	t.Run("AppliesDefaults", func(t *testing.T) {
		raw := `{"condition_type": "contact dermatitis", "visible_symptoms": ["redness"], "severity": "medium", "urgency": "routine"}`
		got, err := NormalizeImageAnalysis(raw)
		require.NoError(t, err)
		assert.Equal(t, "unknown", got.BodyPart)
		assert.Equal(t, "low", got.Confidence)
		assert.Equal(t, SeverityModerate, got.Severity)
		assert.NotNil(t, got.Characteristics)
		assert.NotNil(t, got.WarningSigns)
	})

	t.Run("SeveritySynonyms", func(t *testing.T) {
		for in, want := range map[string]Severity{
			"mild":     SeverityMild,
			"medium":   SeverityModerate,
			"moderate": SeverityModerate,
			"serious":  SeveritySevere,
			"severe":   SeveritySevere,
		} {
			got, err := NormalizeImageAnalysis(`{"condition_type": "burn", "severity": "` + in + `"}`)
			require.NoError(t, err)
			assert.Equal(t, want, got.Severity, "input %q", in)
		}
	})

	t.Run("NothingIdentifiedIsSchemaError", func(t *testing.T) {
		_, err := NormalizeImageAnalysis(`{"body_part": "arm"}`)
		assert.True(t, inference.IsSchemaError(err))
	})
}

func TestNormalizeConditionMatch(t *testing.T) {
	t.Run("Mismatch", func(t *testing.T) {
		got, err := NormalizeConditionMatch(`{"mismatch": true, "explanation": "image shows a foot, complaint is a headache"}`)
		require.NoError(t, err)
		assert.True(t, got.Mismatch)
		assert.NotEmpty(t, got.Explanation)
	})

	t.Run("MissingVerdictIsSchemaError", func(t *testing.T) {
		_, err := NormalizeConditionMatch(`{"explanation": "looks fine"}`)
		assert.True(t, inference.IsSchemaError(err))
	})
}

func TestNormalizeQuestions(t *testing.T) {
	t.Run("DropsUnusableAndAssignsIDs", func(t *testing.T) {
		raw := `{"questions": [
			{"prompt": "How long has this lasted?", "options": ["<1 day", "1-3 days", ">3 days"]},
			{"id": "qx", "prompt": "", "options": ["a", "b"]},
			{"id": "q9", "prompt": "Any fever?", "options": ["only one option"]},
			{"id": "q2", "prompt": "Does it itch?", "options": ["yes", "no", "sometimes"]}
		]}`
		got, err := NormalizeQuestions(raw)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "q1", got[0].ID)
		assert.Equal(t, "q2", got[1].ID)
	})

	t.Run("EmptyListIsSchemaError", func(t *testing.T) {
		_, err := NormalizeQuestions(`{"questions": []}`)
		assert.True(t, inference.IsSchemaError(err))
	})
}

func TestNormalizeRecommendation(t *testing.T) {
	full := `{
		"severity": "mild",
		"medical_attention": {"required": false, "timeframe": "", "reasons": ["self-limiting condition"]},
		"medications": [
			{"name": "Paracetamol (Tylenol)", "dosage": "500mg", "frequency": "every 6 hours", "duration": "3 days", "warnings": ["do not exceed 4g/day"]},
			{"name": "", "dosage": "ignored"}
		],
		"alternatives": {
			"natural_remedies": ["rest", "fluids"],
			"medications": [{"name": "Ibuprofen", "description": "if fever persists"}]
		},
		"lifestyle": ["stay hydrated"],
		"monitoring": ["fever above 39C"],
		"doctor_visit": "if symptoms persist beyond 5 days"
	}`

	t.Run("ParsesFullPayload", func(t *testing.T) {
		got, err := NormalizeRecommendation(full)
		require.NoError(t, err)
		assert.Equal(t, SeverityMild, got.Severity)
		require.Len(t, got.Medications, 1)
		assert.Equal(t, "Paracetamol (Tylenol)", got.Medications[0].Name)
		assert.Len(t, got.Alternatives.Medications, 1)
		assert.Equal(t, "if symptoms persist beyond 5 days", got.DoctorVisit)
	})

	t.Run("MissingSeverityIsSchemaError", func(t *testing.T) {
		_, err := NormalizeRecommendation(`{"medications": []}`)
		assert.True(t, inference.IsSchemaError(err))
	})

	t.Run("SevereStripsMedications", func(t *testing.T) {
		raw := `{"severity": "severe", "medications": [{"name": "Aspirin", "dosage": "325mg"}]}`
		got, err := NormalizeRecommendation(raw)
		require.NoError(t, err)
		assert.True(t, got.MedicalAttention.Required)
		assert.Empty(t, got.Medications)
	})
}
