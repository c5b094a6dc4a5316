package assessment

import (
	"fmt"
	"strings"

	"symptomguide/internal/inference"
)

// Prompt builders produce the full request for each inference operation.
// Every prompt embeds an explicit JSON example so json-mode output lands
// on the normalizer's expected shape.

func describePatient(p UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Age: %d %s", p.Age, p.AgeUnit)
	if p.IsChild() {
		b.WriteString(" (CHILD PATIENT)")
	}
	fmt.Fprintf(&b, "\nGender: %s\nPrimary complaint: %s", p.Gender, p.PrimaryComplaint)
	return b.String()
}

func clinicianRole(p UserProfile) string {
	if p.IsChild() {
		return "a pediatrician"
	}
	return "a medical professional"
}

// BuildImageNecessityPrompt asks whether a photo of the affected area would
// materially improve the assessment of the reported complaint.
func BuildImageNecessityPrompt(p UserProfile) inference.RequestSpec {
	user := fmt.Sprintf(`As %s, analyze this patient's initial presentation:

%s

Decide whether a photograph of the affected area would materially improve
the assessment. Visible conditions (rashes, wounds, swelling, skin changes,
eye problems) benefit from a photo; internal or systemic complaints
(headache, nausea, fatigue, cough) do not.

Return ONLY a JSON object in this exact format:
{
  "requires_image": true,
  "reason": "one-sentence explanation",
  "urgency": "self_care | routine | soon | urgent | emergency"
}`, clinicianRole(p), describePatient(p))

	return inference.RequestSpec{
		System:      "You are a careful clinical triage assistant. Respond with valid JSON only.",
		User:        user,
		Temperature: 0.1,
		MaxTokens:   256,
		ForceJSON:   true,
	}
}

// BuildImageAnalysisPrompt asks for a structured description of the
// submitted photo in the context of the patient profile.
func BuildImageAnalysisPrompt(p UserProfile, imageData []byte, mime string) inference.RequestSpec {
	user := fmt.Sprintf(`As %s, analyze this image for a patient with:

%s

Describe what is visible and assess its severity and urgency. Relate your
findings to the reported complaint: note whether what you see is consistent
with it.

Return ONLY a JSON object in this exact format:
{
  "body_part": "affected body part, or \"unknown\"",
  "condition_type": "short name of the visible condition",
  "characteristics": ["visible characteristic 1", "visible characteristic 2"],
  "visible_symptoms": ["visible symptom 1", "visible symptom 2"],
  "possible_conditions": ["possible condition 1", "possible condition 2"],
  "confidence": "low | moderate | high",
  "severity": "mild | moderate | severe",
  "urgency": "self_care | routine | soon | urgent | emergency",
  "urgency_timeframe": "when care should be sought",
  "urgency_factors": ["factor behind the urgency rating"],
  "warning_signs": ["sign that should prompt escalation"]
}

Consider age-appropriate assessment, visible symptoms and characteristics,
and whether professional medical care is required.`, clinicianRole(p), describePatient(p))

	return inference.RequestSpec{
		System:      "You are a careful clinical imaging assistant. Respond with valid JSON only.",
		User:        user,
		ImageData:   imageData,
		ImageMIME:   mime,
		Temperature: 0.1,
		MaxTokens:   1024,
		ForceJSON:   true,
		Vision:      true,
	}
}

// BuildConditionMatchPrompt asks whether the image findings are
// anatomically consistent with the reported complaint.
func BuildConditionMatchPrompt(p UserProfile, analysis ImageAnalysisResult) inference.RequestSpec {
	user := fmt.Sprintf(`A patient reported: %q

Image analysis of the area they photographed found:
- Body part: %s
- Condition: %s
- Visible symptoms: %s

As %s, decide whether the photographed condition is anatomically and
clinically consistent with the reported complaint. Be strict: if you are
uncertain whether they describe the same condition, report a mismatch so
the patient can confirm which one to assess.

Return ONLY a JSON object in this exact format:
{
  "mismatch": false,
  "explanation": "one-sentence explanation"
}`, p.PrimaryComplaint, analysis.BodyPart, analysis.ConditionType,
		strings.Join(analysis.VisibleSymptoms, ", "), clinicianRole(p))

	return inference.RequestSpec{
		System:      "You are a careful clinical triage assistant. Respond with valid JSON only.",
		User:        user,
		Temperature: 0.1,
		MaxTokens:   512,
		ForceJSON:   true,
	}
}

// BuildFollowUpQuestionsPrompt asks for 3-5 diagnostic questions tailored
// to the complaint, with pediatric focus areas for child patients.
func BuildFollowUpQuestionsPrompt(p UserProfile, analysis *ImageAnalysisResult) inference.RequestSpec {
	role := "a pediatrician"
	if !p.IsChild() {
		role = "a pediatrician and general practitioner"
	}

	var focus string
	if p.IsChild() {
		focus = `   - Duration and pattern of symptoms
   - Impact on eating/drinking/sleep
   - Associated symptoms
   - Previous remedies tried by parents
   - Any exposure to sick contacts`
	} else {
		focus = `   - Pattern and timing of symptoms
   - Aggravating and relieving factors
   - Associated symptoms
   - Impact on daily activities
   - Previous treatments tried`
	}

	var imageContext string
	if analysis != nil {
		imageContext = fmt.Sprintf("\nImage analysis found: %s (severity: %s). Take these findings into account.\n",
			analysis.DetectedCondition(), analysis.Severity)
	}

	var childNote string
	if p.IsChild() {
		childNote = "\nIMPORTANT: This is a child patient. Questions must be appropriate for pediatric assessment and addressed to the parent or caregiver, not the patient.\n"
	}

	user := fmt.Sprintf(`As %s, generate 3-5 specific diagnostic questions for a patient:

Patient Profile:
%s
%s%s
Requirements:
1. Questions must be specifically tailored to %s
2. Each question should be clear and concise
3. Provide 3-4 distinct options for each question
4. Focus on:
%s

Return ONLY a JSON object in this exact format:
{
  "questions": [
    {
      "id": "q1",
      "prompt": "question text",
      "options": ["option 1", "option 2", "option 3"]
    }
  ]
}`, role, describePatient(p), childNote, imageContext, p.PrimaryComplaint, focus)

	return inference.RequestSpec{
		System:      "You are a careful clinical interview assistant. Respond with valid JSON only.",
		User:        user,
		Temperature: 0.2,
		MaxTokens:   768,
		ForceJSON:   true,
	}
}

// BuildRecommendationPrompt asks for the final structured recommendation,
// folding in image findings and questionnaire answers.
func BuildRecommendationPrompt(p UserProfile, analysis *ImageAnalysisResult, questions []Question, answers AnswerSet) inference.RequestSpec {
	var b strings.Builder
	fmt.Fprintf(&b, "As %s, provide SAFE recommendations for:\n\nPatient Profile:\n%s\n", clinicianRole(p), describePatient(p))

	if p.IsChild() {
		patientKind := "CHILD"
		if p.IsInfant() {
			patientKind = "INFANT"
		}
		fmt.Fprintf(&b, `
CRITICAL SAFETY NOTICE:
- This is a %s patient
- Medications must be specifically safe for %d %s old
- Dosing must be precisely calculated for child's age
- Many adult medications are NOT safe for children
- When in doubt, recommend professional medical care
`, patientKind, p.Age, p.AgeUnit)
	}

	if analysis != nil {
		fmt.Fprintf(&b, "\nImage analysis findings:\n- Condition: %s\n- Severity: %s\n- Visible symptoms: %s\n",
			analysis.DetectedCondition(), analysis.Severity, strings.Join(analysis.VisibleSymptoms, ", "))
		if analysis.Severity == SeveritySevere {
			b.WriteString("\nThe visual assessment already indicates a SEVERE condition. Do NOT suggest any over-the-counter medications; direct the patient to professional medical care.\n")
		}
	}

	b.WriteString("\nAssessment responses:\n")
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", q.Prompt, a)
		}
	}

	b.WriteString(`
Return ONLY a JSON object in this EXACT format:
{
  "severity": "mild | moderate | severe",
  "medical_attention": {
    "required": false,
    "timeframe": "when to seek care, if required",
    "reasons": ["reason professional care is or is not needed"]
  },
  "medications": [
    {
      "name": "Medication name (Brand example) - MUST BE AGE-APPROPRIATE",
      "dosage": "Precise age-appropriate dosage",
      "frequency": "How often to take",
      "duration": "How long to continue",
      "warnings": ["key warning"]
    }
  ],
  "alternatives": {
    "natural_remedies": ["safe natural remedy"],
    "medications": [
      {
        "name": "Alternative medication name - MUST BE AGE-APPROPRIATE",
        "description": "When to consider this alternative"
      }
    ]
  },
  "lifestyle": ["age-appropriate lifestyle recommendation"],
  "monitoring": ["what to watch for"],
  "doctor_visit": "when to get emergency care"
}

SAFETY REQUIREMENTS:
`)

	if p.IsChild() {
		fmt.Fprintf(&b, `- ALL medications MUST be explicitly safe for %d %s old children
- Include ONLY pediatric formulations and dosages
- For infants under 2 years, recommend professional medical care for most symptoms
- Be extremely cautious with medication recommendations
- Many OTC medications are NOT safe for young children
`, p.Age, p.AgeUnit)
	} else {
		b.WriteString(`- Consider age-specific contraindications
- Include appropriate dosing for adult age groups
- List specific precautions for the recommended medications
- Consider interactions with common conditions
`)
	}

	b.WriteString(`- If symptoms suggest anything beyond mild severity, recommend professional medical care
- Be specific about emergency warning signs
- Include age-appropriate alternatives and lifestyle modifications`)

	return inference.RequestSpec{
		System:      "You are a cautious clinical recommendation assistant. Respond with valid JSON only.",
		User:        b.String(),
		Temperature: 0.3,
		MaxTokens:   1536,
		ForceJSON:   true,
	}
}
