// Package assessment implements the symptom-assessment domain: the session
// aggregate, prompt builders and response normalizers for each inference
// operation, and the orchestrating state machine.
package assessment

import "time"

// AgeUnit is the unit of a reported age.
type AgeUnit string

const (
	AgeYears  AgeUnit = "years"
	AgeMonths AgeUnit = "months"
)

// Severity is the three-tier condition severity.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Urgency is the tier of recommended medical-attention timing, ordered
// from least to most urgent.
type Urgency string

const (
	UrgencySelfCare  Urgency = "self_care"
	UrgencyRoutine   Urgency = "routine"
	UrgencySoon      Urgency = "soon"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// UserProfile is the initial patient submission. Immutable after intake
// except when the user chooses to adopt an image-detected condition in
// place of the reported complaint.
type UserProfile struct {
	Age              int     `json:"age"`
	AgeUnit          AgeUnit `json:"age_unit"`
	Gender           string  `json:"gender"`
	PrimaryComplaint string  `json:"primary_complaint"`
}

// IsChild reports whether the patient requires pediatric framing: age
// reported in months, or under 12 years.
func (p UserProfile) IsChild() bool {
	return p.AgeUnit == AgeMonths || (p.AgeUnit == AgeYears && p.Age < 12)
}

// IsInfant reports whether the patient is under 24 months.
func (p UserProfile) IsInfant() bool {
	return p.AgeUnit == AgeMonths && p.Age < 24
}

// ImageNecessity is the outcome of the image-need decision.
type ImageNecessity struct {
	RequiresImage bool    `json:"requires_image"`
	Reason        string  `json:"reason"`
	Urgency       Urgency `json:"urgency"`
}

// ImageAnalysisResult is the structured description of a visually assessed
// condition. Never mutated after creation; a re-submitted image supersedes
// it wholesale.
type ImageAnalysisResult struct {
	BodyPart           string   `json:"body_part"`
	ConditionType      string   `json:"condition_type"`
	Characteristics    []string `json:"characteristics"`
	VisibleSymptoms    []string `json:"visible_symptoms"`
	PossibleConditions []string `json:"possible_conditions"`
	Confidence         string   `json:"confidence"`
	Severity           Severity `json:"severity"`
	Urgency            Urgency  `json:"urgency"`
	UrgencyTimeframe   string   `json:"urgency_timeframe"`
	UrgencyFactors     []string `json:"urgency_factors"`
	WarningSigns       []string `json:"warning_signs"`
}

// DetectedCondition renders the finding as a complaint phrase, used when
// the user chooses to proceed with the image-detected condition.
func (r ImageAnalysisResult) DetectedCondition() string {
	if r.ConditionType == "" {
		return r.BodyPart
	}
	if r.BodyPart == "" || r.BodyPart == "unknown" {
		return r.ConditionType
	}
	return r.ConditionType + " on " + r.BodyPart
}

// ConditionMatchVerdict is the anatomical-consistency check between the
// reported complaint and the image findings. Ephemeral: produced and
// consumed within one transition, retained on the session only while a
// mismatch awaits resolution.
type ConditionMatchVerdict struct {
	Mismatch    bool   `json:"mismatch"`
	Explanation string `json:"explanation"`
}

// Question is one follow-up diagnostic question with mutually exclusive
// answer options.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// AnswerSet maps question IDs to the selected option.
type AnswerSet map[string]string

// Medication is one recommended medication with dosing guidance.
type Medication struct {
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Frequency string   `json:"frequency"`
	Duration  string   `json:"duration"`
	Warnings  []string `json:"warnings"`
}

// AlternativeMedication is a fallback medication with the context in which
// to consider it.
type AlternativeMedication struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Alternatives groups non-primary treatment options.
type Alternatives struct {
	NaturalRemedies []string                `json:"natural_remedies"`
	Medications     []AlternativeMedication `json:"medications"`
}

// MedicalAttention describes whether and when professional care is needed.
type MedicalAttention struct {
	Required  bool     `json:"required"`
	Timeframe string   `json:"timeframe"`
	Reasons   []string `json:"reasons"`
}

// Recommendation is the final structured recommendation. Immutable once
// produced; redoing the assessment replaces it wholesale.
type Recommendation struct {
	Severity         Severity         `json:"severity"`
	MedicalAttention MedicalAttention `json:"medical_attention"`
	Medications      []Medication     `json:"medications"`
	Alternatives     Alternatives     `json:"alternatives"`
	Lifestyle        []string         `json:"lifestyle"`
	Monitoring       []string         `json:"monitoring"`
	DoctorVisit      string           `json:"doctor_visit,omitempty"`
}

// State tags the orchestrator's current position in the assessment flow.
type State string

const (
	StateStart             State = "start"
	StateAwaitingImage     State = "awaiting_image"
	StateAwaitingMismatch  State = "awaiting_mismatch_resolution"
	StateAwaitingQuestions State = "awaiting_questions"
	StateCompleted         State = "completed"
)

// Session is the root aggregate of one assessment. Mutated exclusively by
// the Orchestrator; exactly one flow position is true at a time, mirrored
// by State.
type Session struct {
	ID         string `json:"id"`
	Generation int    `json:"generation"`
	State      State  `json:"state"`

	Profile        *UserProfile           `json:"profile,omitempty"`
	ImageNecessity *ImageNecessity        `json:"image_necessity,omitempty"`
	ImageAnalysis  *ImageAnalysisResult   `json:"image_analysis,omitempty"`
	Mismatch       *ConditionMatchVerdict `json:"mismatch,omitempty"`
	Questions      []Question             `json:"questions,omitempty"`
	Answers        AnswerSet              `json:"answers,omitempty"`
	Recommendation *Recommendation        `json:"recommendation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a deep copy safe to hand across the orchestrator
// boundary.
func (s *Session) Snapshot() Session {
	out := *s

	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	if s.ImageNecessity != nil {
		n := *s.ImageNecessity
		out.ImageNecessity = &n
	}
	if s.ImageAnalysis != nil {
		a := *s.ImageAnalysis
		a.Characteristics = append([]string(nil), s.ImageAnalysis.Characteristics...)
		a.VisibleSymptoms = append([]string(nil), s.ImageAnalysis.VisibleSymptoms...)
		a.PossibleConditions = append([]string(nil), s.ImageAnalysis.PossibleConditions...)
		a.UrgencyFactors = append([]string(nil), s.ImageAnalysis.UrgencyFactors...)
		a.WarningSigns = append([]string(nil), s.ImageAnalysis.WarningSigns...)
		out.ImageAnalysis = &a
	}
	if s.Mismatch != nil {
		m := *s.Mismatch
		out.Mismatch = &m
	}
	if s.Questions != nil {
		out.Questions = make([]Question, len(s.Questions))
		for i, q := range s.Questions {
			q.Options = append([]string(nil), q.Options...)
			out.Questions[i] = q
		}
	}
	if s.Answers != nil {
		out.Answers = make(AnswerSet, len(s.Answers))
		for k, v := range s.Answers {
			out.Answers[k] = v
		}
	}
	if s.Recommendation != nil {
		r := *s.Recommendation
		r.Medications = append([]Medication(nil), s.Recommendation.Medications...)
		r.Lifestyle = append([]string(nil), s.Recommendation.Lifestyle...)
		r.Monitoring = append([]string(nil), s.Recommendation.Monitoring...)
		r.MedicalAttention.Reasons = append([]string(nil), s.Recommendation.MedicalAttention.Reasons...)
		r.Alternatives.NaturalRemedies = append([]string(nil), s.Recommendation.Alternatives.NaturalRemedies...)
		r.Alternatives.Medications = append([]AlternativeMedication(nil), s.Recommendation.Alternatives.Medications...)
		out.Recommendation = &r
	}

	return out
}
