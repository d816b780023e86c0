package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"waitroom-triage/internal/core/defaults"
	"waitroom-triage/pkg"
)

// ErrInvalidRule is returned for rule configurations that cannot be used.
var ErrInvalidRule = errors.New("invalid clinical rule")

const (
	routineConfidence   = 0.65
	urgentConfidence    = 0.86
	emergencyConfidence = 0.98
)

// Rule is one configured escalation rule. Nil/empty predicates are absent
// and always pass.
type Rule struct {
	ID              string           `yaml:"id" json:"id"`
	Urgency         pkg.UrgencyLevel `yaml:"urgency" json:"urgency"`
	PhrasesAny      []string         `yaml:"phrases_any,omitempty" json:"phrases_any,omitempty"`
	PhrasesAll      []string         `yaml:"phrases_all,omitempty" json:"phrases_all,omitempty"`
	MinAge          *int             `yaml:"min_age,omitempty" json:"min_age,omitempty"`
	MaxDurationDays *int             `yaml:"max_duration_days,omitempty" json:"max_duration_days,omitempty"`
	SeverityMin     *int             `yaml:"severity_min,omitempty" json:"severity_min,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// RuleSet is a validated, ordered list of rules. It is never mutated after
// it is built and may be shared between goroutines.
type RuleSet struct {
	rules []Rule
}

// Rules returns a copy of the rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// LoadRules reads a rule file. An empty path selects the built-in rules.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return ParseRules(defaults.ClinicalRules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRules decodes and validates a YAML (or JSON) rule document.
func ParseRules(data []byte) (*RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing rules: %v", ErrInvalidRule, err)
	}
	return NewRuleSet(f.Rules)
}

// NewRuleSet validates rules and freezes them in the given order. Phrases
// are lower-cased here so evaluation never has to.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	seen := make(map[string]bool, len(rules))
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("%w: rule %d has no id", ErrInvalidRule, i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = true
		if !r.Urgency.Valid() {
			return nil, fmt.Errorf("%w: rule %q has unknown urgency %q", ErrInvalidRule, r.ID, r.Urgency)
		}
		r.PhrasesAny = lowerAll(r.PhrasesAny)
		r.PhrasesAll = lowerAll(r.PhrasesAll)
		out = append(out, r)
	}
	return &RuleSet{rules: out}, nil
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = strings.ToLower(p)
	}
	return out
}

// RuleVerdict is the outcome of one rules evaluation.
type RuleVerdict struct {
	UrgencyLevel   pkg.UrgencyLevel `json:"urgency_level"`
	TriggeredRules []string         `json:"triggered_rules"`
	Confidence     float64          `json:"confidence"`
}

// RulesEngine evaluates a RuleSet against the accumulated intake.
type RulesEngine struct {
	rules *RuleSet
}

// NewRulesEngine returns an engine bound to rules.
func NewRulesEngine(rules *RuleSet) *RulesEngine {
	return &RulesEngine{rules: rules}
}

// Evaluate walks the rules in order. The first EMERGENCY match ends the
// walk; URGENT matches raise the verdict but never lower an EMERGENCY.
// Every matched rule id is recorded, including those matched before an
// EMERGENCY stop.
func (e *RulesEngine) Evaluate(s *pkg.TriageSession) RuleVerdict {
	blob := textBlob(s)
	v := RuleVerdict{
		UrgencyLevel:   pkg.UrgencyRoutine,
		TriggeredRules: []string{},
		Confidence:     routineConfidence,
	}
	for _, r := range e.rules.rules {
		if !ruleMatches(r, s, blob) {
			continue
		}
		v.TriggeredRules = append(v.TriggeredRules, r.ID)
		switch r.Urgency {
		case pkg.UrgencyEmergency:
			v.UrgencyLevel = pkg.UrgencyEmergency
			v.Confidence = max(v.Confidence, emergencyConfidence)
			return v
		case pkg.UrgencyUrgent:
			if v.UrgencyLevel != pkg.UrgencyEmergency {
				v.UrgencyLevel = pkg.UrgencyUrgent
				v.Confidence = max(v.Confidence, urgentConfidence)
			}
		}
	}
	return v
}

func textBlob(s *pkg.TriageSession) string {
	parts := make([]string, 0, 1+len(s.Symptoms)+len(s.AssociatedSymptoms))
	parts = append(parts, s.ChiefComplaint)
	parts = append(parts, s.Symptoms...)
	parts = append(parts, s.AssociatedSymptoms...)
	return strings.ToLower(strings.Join(parts, " "))
}

func ruleMatches(r Rule, s *pkg.TriageSession, blob string) bool {
	if len(r.PhrasesAny) > 0 {
		hit := false
		for _, p := range r.PhrasesAny {
			if strings.Contains(blob, p) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, p := range r.PhrasesAll {
		if !strings.Contains(blob, p) {
			return false
		}
	}
	if r.MinAge != nil {
		age := s.Demographics.Age
		if age == nil || *age < *r.MinAge {
			return false
		}
	}
	// The duration predicate only counts day-based onsets; any other
	// recorded onset fails it.
	if r.MaxDurationDays != nil && s.OnsetTime != nil && *s.OnsetTime != "" {
		onset := *s.OnsetTime
		if !strings.Contains(strings.ToLower(onset), "day") {
			return false
		}
		if n, ok := firstNumber(onset); ok && n > *r.MaxDurationDays {
			return false
		}
	}
	if r.SeverityMin != nil {
		sev := s.Severity
		if sev == nil || *sev < *r.SeverityMin {
			return false
		}
	}
	return true
}
