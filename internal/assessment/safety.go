package assessment

import "strings"

// Deterministic safety rules applied around inference results. These never
// depend on a provider call succeeding.

var severeConditions = []string{
	"chest pain", "difficulty breathing", "severe pain",
	"head injury", "stroke", "seizure", "heart attack",
	"severe allergic reaction", "anaphylaxis", "severe bleeding",
	"loss of consciousness", "suspected fracture", "severe burns",
	"poisoning", "overdose",
}

var severityMarkers = []string{"severe", "intense", "extreme"}

// Conditions where analgesics can mask diagnostically important pain.
var painMaskingConditions = []string{
	"head injury", "internal bleeding", "stomach pain", "appendicitis",
}

// SafetyCheck is the outcome of the deterministic red-flag scan.
type SafetyCheck struct {
	IsSevere             bool
	RequiresImmediate    bool
	CanSuggestOTC        bool
	CanProvidePainRelief bool
	Reasons              []string
	Timeframe            string
	WarningSymptoms      []string
}

// PerformSafetyCheck scans the complaint and known symptoms for red flags
// that bypass the normal flow.
func PerformSafetyCheck(complaint string, symptoms []string) SafetyCheck {
	all := make([]string, 0, len(symptoms)+1)
	all = append(all, strings.ToLower(complaint))
	for _, s := range symptoms {
		all = append(all, strings.ToLower(s))
	}

	immediate := false
	for _, s := range all {
		for _, marker := range severityMarkers {
			if strings.Contains(s, marker) {
				immediate = true
			}
		}
		for _, cond := range severeConditions {
			if strings.Contains(s, cond) {
				immediate = true
			}
		}
	}

	painRelief := true
	for _, s := range all {
		for _, cond := range painMaskingConditions {
			if strings.Contains(s, cond) {
				painRelief = false
			}
		}
	}

	check := SafetyCheck{
		IsSevere:             immediate,
		RequiresImmediate:    immediate,
		CanSuggestOTC:        !immediate,
		CanProvidePainRelief: painRelief,
		Timeframe:            "within_24_hours",
		WarningSymptoms: []string{
			"Severe or worsening pain",
			"Difficulty breathing",
			"Changes in consciousness",
			"Spreading of symptoms",
			"High fever",
		},
	}
	if immediate {
		check.Reasons = []string{"Condition requires immediate medical attention"}
		check.Timeframe = "immediate"
	} else {
		check.Reasons = []string{"Condition may be suitable for initial OTC treatment"}
	}
	return check
}

// PainReliefWarning returns the caution text matching the pain-relief
// masking rule.
func PainReliefWarning(canProvidePainRelief bool) string {
	if !canProvidePainRelief {
		return "DO NOT take pain medication as it may mask important symptoms. Seek immediate medical attention."
	}
	return "For temporary pain relief only while seeking medical care. Do not exceed recommended dosage."
}

// EmergencyGuidelines returns the standing instructions for a severe
// presentation.
func EmergencyGuidelines(severity Severity) []string {
	guidelines := []string{
		"Call emergency services immediately if condition worsens",
		"Document all symptoms and their timeline",
		"Do not eat or drink anything until evaluated by a medical professional",
		"Have someone stay with you until medical help arrives",
	}
	if severity == SeveritySevere {
		guidelines = append([]string{"Seek immediate emergency care"}, guidelines...)
	}
	return guidelines
}

// ApplyPediatricGate enforces the child-safety rule on a recommendation:
// any non-mild finding for a child strips medication advice and escalates
// to professional care.
func ApplyPediatricGate(p UserProfile, rec *Recommendation) {
	if !p.IsChild() || rec.Severity == SeverityMild {
		return
	}
	rec.Severity = SeveritySevere
	rec.Medications = []Medication{}
	rec.MedicalAttention.Required = true
	if rec.MedicalAttention.Timeframe == "" {
		rec.MedicalAttention.Timeframe = "as soon as possible"
	}
	rec.MedicalAttention.Reasons = append(rec.MedicalAttention.Reasons,
		"For children of this age, please consult a healthcare provider for proper evaluation and treatment.")
}

// ApplySafetyCheck folds the deterministic scan into a recommendation:
// red-flag findings suppress OTC advice and force immediate care.
func ApplySafetyCheck(check SafetyCheck, rec *Recommendation) {
	if !check.RequiresImmediate {
		return
	}
	rec.Severity = SeveritySevere
	rec.Medications = []Medication{}
	rec.MedicalAttention.Required = true
	rec.MedicalAttention.Timeframe = check.Timeframe
	rec.MedicalAttention.Reasons = append(rec.MedicalAttention.Reasons, check.Reasons...)
	rec.Monitoring = append(rec.Monitoring, check.WarningSymptoms...)
	if rec.DoctorVisit == "" {
		rec.DoctorVisit = "Seek immediate emergency care"
	}
}
