package core

import (
	"fmt"
	"strconv"
	"strings"

	"waitroom-triage/pkg"
)

// Summarizer builds the clinician-facing summary of a session from its
// intake fields and last verdict. The old summary is not needed: the
// session always holds the complete picture.
type Summarizer struct{}

// NewSummarizer constructs a summariser.
func NewSummarizer() *Summarizer { return &Summarizer{} }

// Summarize returns key points, structured fields and a short free-text
// paragraph for s.
func (z *Summarizer) Summarize(s *pkg.TriageSession) *pkg.CaseSummary {
	structured := map[string]any{
		"state":               string(s.State),
		"chief_complaint":     s.ChiefComplaint,
		"symptoms":            s.Symptoms,
		"associated_symptoms": s.AssociatedSymptoms,
		"chronic_conditions":  s.ChronicConditions,
		"medications":         s.Medications,
		"allergies":           s.Allergies,
		"red_flags":           s.RedFlagsDetected,
		"urgency_level":       string(s.UrgencyLevel),
		"triggered_rules":     s.TriggeredRules,
		"risk_score":          s.RiskScore,
	}
	if a := s.Demographics.Age; a != nil {
		structured["age"] = *a
	}
	if v := s.Demographics.Sex; v != nil {
		structured["sex"] = *v
	}
	if v := s.Demographics.PregnancyStatus; v != nil {
		structured["pregnancy_status"] = *v
	}
	if v := s.OnsetTime; v != nil {
		structured["onset_time"] = *v
	}
	if v := s.Severity; v != nil {
		structured["severity"] = *v
	}

	var points []string
	if len(s.RedFlagsDetected) > 0 {
		points = append(points, "Red flags: "+strings.Join(s.RedFlagsDetected, ", "))
	}
	if s.UrgencyLevel != "" {
		points = append(points, "Urgency: "+string(s.UrgencyLevel))
	}
	if s.ChiefComplaint != "" {
		points = append(points, "Complaint: "+s.ChiefComplaint)
	}
	if s.OnsetTime != nil {
		points = append(points, "Onset: "+*s.OnsetTime)
	}
	if s.Severity != nil {
		points = append(points, "Severity: "+strconv.Itoa(*s.Severity)+"/10")
	}
	if len(s.Allergies) > 0 && !noneAnswer(s.Allergies) {
		points = append(points, "Allergies: "+strings.Join(s.Allergies, ", "))
	}
	if len(points) == 0 {
		points = []string{"No triage data collected yet"}
	}

	return &pkg.CaseSummary{
		ConversationID: s.SessionID,
		KeyPoints:      points,
		Structured:     structured,
		FreeText:       freeText(s),
		UpdatedAt:      s.Timestamp,
	}
}

func freeText(s *pkg.TriageSession) string {
	var b strings.Builder
	b.WriteString("Patient")
	if a := s.Demographics.Age; a != nil {
		fmt.Fprintf(&b, ", age %d", *a)
	}
	if v := s.Demographics.Sex; v != nil {
		fmt.Fprintf(&b, ", %s", *v)
	}
	if s.ChiefComplaint != "" {
		fmt.Fprintf(&b, ", reports %s", s.ChiefComplaint)
	} else {
		b.WriteString(", complaint not yet recorded")
	}
	if s.OnsetTime != nil {
		fmt.Fprintf(&b, " since %s", *s.OnsetTime)
	}
	if s.Severity != nil {
		fmt.Fprintf(&b, " at severity %d/10", *s.Severity)
	}
	b.WriteString(".")
	if len(s.AssociatedSymptoms) > 0 && !noneAnswer(s.AssociatedSymptoms) {
		fmt.Fprintf(&b, " Also: %s.", strings.Join(s.AssociatedSymptoms, ", "))
	}
	if s.UrgencyLevel != "" {
		fmt.Fprintf(&b, " Triage verdict %s", s.UrgencyLevel)
		if len(s.TriggeredRules) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(s.TriggeredRules, ", "))
		}
		fmt.Fprintf(&b, ", risk score %.3f.", s.RiskScore)
	}
	fmt.Fprintf(&b, " Current state %s.", s.State)
	return b.String()
}

// noneAnswer reports whether a list answer only says there is nothing.
func noneAnswer(items []string) bool {
	for _, it := range items {
		switch strings.ToLower(strings.TrimSpace(it)) {
		case "none", "no", "nothing", "n/a", "na":
		default:
			return false
		}
	}
	return true
}
