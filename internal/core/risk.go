package core

import (
	"math"
	"strings"

	"waitroom-triage/pkg"
)

const (
	riskBase       = 0.1
	riskCeiling    = 0.99
	riskConfidence = 0.72
	// RiskEscalationThreshold is the score at which the risk check overrides
	// a non-emergency rule verdict.
	RiskEscalationThreshold = 0.85
)

// RiskEstimate is the supplemental numeric risk verdict.
type RiskEstimate struct {
	Score      float64 `json:"risk_score"`
	Confidence float64 `json:"confidence"`
}

// RiskScorer computes an additive risk score independent of the rule
// engine, used as a second opinion.
type RiskScorer struct{}

// NewRiskScorer returns the scorer.
func NewRiskScorer() *RiskScorer { return &RiskScorer{} }

// Score returns a value in [0, 0.99], rounded to three decimals.
func (r *RiskScorer) Score(s *pkg.TriageSession) RiskEstimate {
	score := riskBase
	if s.Severity != nil && *s.Severity > 0 {
		score += float64(*s.Severity) / 15
	}
	if s.Demographics.Age != nil && *s.Demographics.Age >= 65 {
		score += 0.15
	}
	texts := append([]string{s.ChiefComplaint}, s.AssociatedSymptoms...)
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), "pregnan") {
			score += 0.1
			break
		}
	}
	score = math.Min(riskCeiling, math.Round(score*1000)/1000)
	return RiskEstimate{Score: score, Confidence: riskConfidence}
}
