package core

import (
	"sort"
	"strings"

	"waitroom-triage/pkg"
)

// FlagInfantFever fires for any mention of fever once the patient is known
// to be under one year old.
const FlagInfantFever = "high_fever_in_infant"

type redFlagGroup struct {
	key     string
	phrases []string
}

// redFlagTable lists the emergency phrase groups. A group fires when any of
// its phrases is a substring of the lower-cased message.
var redFlagTable = []redFlagGroup{
	{"difficulty_breathing", []string{"difficulty breathing", "shortness of breath", "can't breathe", "cannot breathe"}},
	{"chest_pain", []string{"chest pain"}},
	{"severe_bleeding", []string{"severe bleeding", "bleeding heavily", "won't stop bleeding"}},
	{"loss_of_consciousness", []string{"loss of consciousness", "passed out", "fainted"}},
	{"stroke_symptoms", []string{"face droop", "slurred speech", "one-sided weakness", "stroke"}},
	{"seizure", []string{"seizure", "convulsion"}},
	{"severe_allergic_reaction", []string{"anaphylaxis", "throat swelling", "severe allergic reaction"}},
	{"altered_mental_state", []string{"confused and disoriented", "altered mental state", "not making sense"}},
	{FlagInfantFever, []string{"infant with fever", "baby fever", "newborn fever"}},
	{"signs_of_shock", []string{"cold clammy skin", "weak rapid pulse", "signs of shock", "in shock"}},
	{"dying_statement", []string{"i am dying", "i'm dying"}},
	{"collapsed_statement", []string{"she collapsed", "he collapsed", "collapsed"}},
}

// RedFlagEngine detects emergency signals in a single message.
type RedFlagEngine struct{}

// NewRedFlagEngine returns the detector.
func NewRedFlagEngine() *RedFlagEngine { return &RedFlagEngine{} }

// Detect returns the sorted, deduplicated red-flag keys raised by message.
// Only the current message and the session demographics are consulted.
func (e *RedFlagEngine) Detect(message string, session *pkg.TriageSession) []string {
	msg := strings.ToLower(message)
	hits := map[string]struct{}{}
	for _, group := range redFlagTable {
		for _, phrase := range group.phrases {
			if strings.Contains(msg, phrase) {
				hits[group.key] = struct{}{}
				break
			}
		}
	}
	if age := session.Demographics.Age; age != nil && *age < 1 && strings.Contains(msg, "fever") {
		hits[FlagInfantFever] = struct{}{}
	}

	out := make([]string, 0, len(hits))
	for k := range hits {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
