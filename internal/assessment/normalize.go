package assessment

import (
	"encoding/json"
	"fmt"
	"strings"

	"symptomguide/internal/inference"
)

// Normalizers turn raw provider output into domain values. Required
// discriminator fields raise a SchemaError (retried by the client);
// optional fields get conservative defaults so a sparse but well-formed
// payload still yields a usable result.

func decodeJSON(op inference.Operation, raw string, v interface{}) error {
	payload := inference.ExtractJSON(raw)
	if payload == "" {
		return &inference.SchemaError{Operation: op, Field: "", Reason: "no JSON object in response"}
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return &inference.SchemaError{Operation: op, Field: "", Reason: err.Error()}
	}
	return nil
}

func normalizeSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mild", "low":
		return SeverityMild
	case "moderate", "medium":
		return SeverityModerate
	case "severe", "serious", "high", "emergency":
		return SeveritySevere
	default:
		return SeverityModerate
	}
}

func normalizeUrgency(s string) Urgency {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "self_care", "selfcare", "none", "low":
		return UrgencySelfCare
	case "routine", "medium":
		return UrgencyRoutine
	case "soon", "within_24_hours":
		return UrgencySoon
	case "urgent", "high":
		return UrgencyUrgent
	case "emergency", "immediate":
		return UrgencyEmergency
	default:
		return UrgencySelfCare
	}
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// NormalizeImageNecessity parses the image-need decision.
func NormalizeImageNecessity(raw string) (ImageNecessity, error) {
	var wire struct {
		RequiresImage *bool  `json:"requires_image"`
		Reason        string `json:"reason"`
		Urgency       string `json:"urgency"`
	}
	if err := decodeJSON(inference.OpImageNecessity, raw, &wire); err != nil {
		return ImageNecessity{}, err
	}
	if wire.RequiresImage == nil {
		return ImageNecessity{}, &inference.SchemaError{
			Operation: inference.OpImageNecessity, Field: "requires_image", Reason: "missing",
		}
	}
	return ImageNecessity{
		RequiresImage: *wire.RequiresImage,
		Reason:        strings.TrimSpace(wire.Reason),
		Urgency:       normalizeUrgency(wire.Urgency),
	}, nil
}

// NormalizeImageAnalysis parses the visual analysis payload.
func NormalizeImageAnalysis(raw string) (ImageAnalysisResult, error) {
	var wire struct {
		BodyPart           string   `json:"body_part"`
		ConditionType      string   `json:"condition_type"`
		Characteristics    []string `json:"characteristics"`
		VisibleSymptoms    []string `json:"visible_symptoms"`
		PossibleConditions []string `json:"possible_conditions"`
		Confidence         string   `json:"confidence"`
		Severity           string   `json:"severity"`
		Urgency            string   `json:"urgency"`
		UrgencyTimeframe   string   `json:"urgency_timeframe"`
		UrgencyFactors     []string `json:"urgency_factors"`
		WarningSigns       []string `json:"warning_signs"`
	}
	if err := decodeJSON(inference.OpImageAnalysis, raw, &wire); err != nil {
		return ImageAnalysisResult{}, err
	}
	if wire.ConditionType == "" && len(wire.VisibleSymptoms) == 0 {
		return ImageAnalysisResult{}, &inference.SchemaError{
			Operation: inference.OpImageAnalysis, Field: "condition_type", Reason: "no condition or symptoms identified",
		}
	}

	bodyPart := strings.TrimSpace(wire.BodyPart)
	if bodyPart == "" {
		bodyPart = "unknown"
	}
	confidence := strings.ToLower(strings.TrimSpace(wire.Confidence))
	if confidence == "" {
		confidence = "low"
	}

	return ImageAnalysisResult{
		BodyPart:           bodyPart,
		ConditionType:      strings.TrimSpace(wire.ConditionType),
		Characteristics:    nonNil(wire.Characteristics),
		VisibleSymptoms:    nonNil(wire.VisibleSymptoms),
		PossibleConditions: nonNil(wire.PossibleConditions),
		Confidence:         confidence,
		Severity:           normalizeSeverity(wire.Severity),
		Urgency:            normalizeUrgency(wire.Urgency),
		UrgencyTimeframe:   strings.TrimSpace(wire.UrgencyTimeframe),
		UrgencyFactors:     nonNil(wire.UrgencyFactors),
		WarningSigns:       nonNil(wire.WarningSigns),
	}, nil
}

// NormalizeConditionMatch parses the consistency verdict.
func NormalizeConditionMatch(raw string) (ConditionMatchVerdict, error) {
	var wire struct {
		Mismatch    *bool  `json:"mismatch"`
		Explanation string `json:"explanation"`
	}
	if err := decodeJSON(inference.OpConditionMatch, raw, &wire); err != nil {
		return ConditionMatchVerdict{}, err
	}
	if wire.Mismatch == nil {
		return ConditionMatchVerdict{}, &inference.SchemaError{
			Operation: inference.OpConditionMatch, Field: "mismatch", Reason: "missing",
		}
	}
	return ConditionMatchVerdict{
		Mismatch:    *wire.Mismatch,
		Explanation: strings.TrimSpace(wire.Explanation),
	}, nil
}

// NormalizeQuestions parses the follow-up question list. Questions without
// a prompt or with fewer than two options are dropped; an empty surviving
// list is a schema violation.
func NormalizeQuestions(raw string) ([]Question, error) {
	var wire struct {
		Questions []struct {
			ID      string   `json:"id"`
			Prompt  string   `json:"prompt"`
			Options []string `json:"options"`
		} `json:"questions"`
	}
	if err := decodeJSON(inference.OpFollowUpQuestions, raw, &wire); err != nil {
		return nil, err
	}

	out := make([]Question, 0, len(wire.Questions))
	for i, q := range wire.Questions {
		prompt := strings.TrimSpace(q.Prompt)
		if prompt == "" || len(q.Options) < 2 {
			continue
		}
		id := strings.TrimSpace(q.ID)
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}
		out = append(out, Question{ID: id, Prompt: prompt, Options: q.Options})
	}
	if len(out) == 0 {
		return nil, &inference.SchemaError{
			Operation: inference.OpFollowUpQuestions, Field: "questions", Reason: "no usable questions",
		}
	}
	return out, nil
}

// NormalizeRecommendation parses the final recommendation payload.
func NormalizeRecommendation(raw string) (Recommendation, error) {
	var wire struct {
		Severity         string `json:"severity"`
		MedicalAttention struct {
			Required  bool     `json:"required"`
			Timeframe string   `json:"timeframe"`
			Reasons   []string `json:"reasons"`
		} `json:"medical_attention"`
		Medications []struct {
			Name      string   `json:"name"`
			Dosage    string   `json:"dosage"`
			Frequency string   `json:"frequency"`
			Duration  string   `json:"duration"`
			Warnings  []string `json:"warnings"`
		} `json:"medications"`
		Alternatives struct {
			NaturalRemedies []string `json:"natural_remedies"`
			Medications     []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"medications"`
		} `json:"alternatives"`
		Lifestyle   []string `json:"lifestyle"`
		Monitoring  []string `json:"monitoring"`
		DoctorVisit string   `json:"doctor_visit"`
	}
	if err := decodeJSON(inference.OpRecommendation, raw, &wire); err != nil {
		return Recommendation{}, err
	}
	if strings.TrimSpace(wire.Severity) == "" {
		return Recommendation{}, &inference.SchemaError{
			Operation: inference.OpRecommendation, Field: "severity", Reason: "missing",
		}
	}

	rec := Recommendation{
		Severity: normalizeSeverity(wire.Severity),
		MedicalAttention: MedicalAttention{
			Required:  wire.MedicalAttention.Required,
			Timeframe: strings.TrimSpace(wire.MedicalAttention.Timeframe),
			Reasons:   nonNil(wire.MedicalAttention.Reasons),
		},
		Medications: []Medication{},
		Alternatives: Alternatives{
			NaturalRemedies: nonNil(wire.Alternatives.NaturalRemedies),
			Medications:     []AlternativeMedication{},
		},
		Lifestyle:   nonNil(wire.Lifestyle),
		Monitoring:  nonNil(wire.Monitoring),
		DoctorVisit: strings.TrimSpace(wire.DoctorVisit),
	}
	for _, m := range wire.Medications {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		rec.Medications = append(rec.Medications, Medication{
			Name:      m.Name,
			Dosage:    m.Dosage,
			Frequency: m.Frequency,
			Duration:  m.Duration,
			Warnings:  nonNil(m.Warnings),
		})
	}
	for _, m := range wire.Alternatives.Medications {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		rec.Alternatives.Medications = append(rec.Alternatives.Medications, AlternativeMedication{
			Name:        m.Name,
			Description: m.Description,
		})
	}

	// Severe findings never carry self-service medication advice.
	if rec.Severity == SeveritySevere {
		rec.MedicalAttention.Required = true
		rec.Medications = []Medication{}
	}

	return rec, nil
}
