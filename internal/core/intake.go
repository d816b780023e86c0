package core

import (
	"regexp"
	"strconv"
	"strings"

	"waitroom-triage/pkg"
)

// IntakeField names a session field collected by one intake question.
type IntakeField string

const (
	FieldAge                IntakeField = "age"
	FieldSex                IntakeField = "sex"
	FieldPregnancyStatus    IntakeField = "pregnancy_status"
	FieldChiefComplaint     IntakeField = "chief_complaint"
	FieldOnsetTime          IntakeField = "onset_time"
	FieldSeverity           IntakeField = "severity"
	FieldAssociatedSymptoms IntakeField = "associated_symptoms"
	FieldChronicConditions  IntakeField = "chronic_conditions"
	FieldMedications        IntakeField = "medications"
	FieldAllergies          IntakeField = "allergies"
)

// IntakeQuestion binds one question to one session field. Relevant, when
// set, decides whether the question applies to this patient at all.
type IntakeQuestion struct {
	Field    IntakeField
	Question string
	Relevant func(*pkg.TriageSession) bool
}

// setter applies an answer to the session. It reports false when the answer
// could not be used, leaving the field pending.
type setter func(s *pkg.TriageSession, value string) bool

var (
	digitRun    = regexp.MustCompile(`\d+`)
	listSplit   = regexp.MustCompile(`,|;| and `)
	femaleCoded = map[string]bool{"female": true, "f": true, "woman": true}
)

// intakeQuestions is the fixed question order.
var intakeQuestions = []IntakeQuestion{
	{Field: FieldAge, Question: "How old is the patient?"},
	{Field: FieldSex, Question: "What sex was assigned at birth?"},
	{Field: FieldPregnancyStatus, Question: "Is the patient currently pregnant or possibly pregnant?", Relevant: isFemale},
	{Field: FieldChiefComplaint, Question: "What is the main symptom or concern right now?"},
	{Field: FieldOnsetTime, Question: "When did this problem start?"},
	{Field: FieldSeverity, Question: "On a scale of 1 to 10, how severe is it now?"},
	{Field: FieldAssociatedSymptoms, Question: "Any other symptoms with it?"},
	{Field: FieldChronicConditions, Question: "Any chronic health conditions?"},
	{Field: FieldMedications, Question: "Any regular medications? (optional)"},
	{Field: FieldAllergies, Question: "Any known allergies? (optional)"},
}

var intakeSetters = map[IntakeField]setter{
	FieldAge: func(s *pkg.TriageSession, v string) bool {
		n, ok := firstNumber(v)
		if !ok {
			return false
		}
		// "8 months" and the like mean under a year.
		if strings.Contains(strings.ToLower(v), "month") && n < 12 {
			n = 0
		}
		s.Demographics.Age = &n
		return true
	},
	FieldSex: func(s *pkg.TriageSession, v string) bool {
		s.Demographics.Sex = &v
		return true
	},
	FieldPregnancyStatus: func(s *pkg.TriageSession, v string) bool {
		s.Demographics.PregnancyStatus = &v
		return true
	},
	FieldChiefComplaint: func(s *pkg.TriageSession, v string) bool {
		s.ChiefComplaint = v
		s.Symptoms = append(s.Symptoms, v)
		return true
	},
	FieldOnsetTime: func(s *pkg.TriageSession, v string) bool {
		s.OnsetTime = &v
		return true
	},
	FieldSeverity: func(s *pkg.TriageSession, v string) bool {
		n, ok := firstNumber(v)
		if !ok {
			return false
		}
		n = min(10, max(1, n))
		s.Severity = &n
		return true
	},
	FieldAssociatedSymptoms: func(s *pkg.TriageSession, v string) bool {
		s.AssociatedSymptoms = splitList(v)
		return true
	},
	FieldChronicConditions: func(s *pkg.TriageSession, v string) bool {
		s.ChronicConditions = splitList(v)
		return true
	},
	FieldMedications: func(s *pkg.TriageSession, v string) bool {
		s.Medications = splitList(v)
		return true
	},
	FieldAllergies: func(s *pkg.TriageSession, v string) bool {
		s.Allergies = splitList(v)
		return true
	},
}

func isFemale(s *pkg.TriageSession) bool {
	if s.Demographics.Sex == nil {
		return false
	}
	return femaleCoded[strings.ToLower(*s.Demographics.Sex)]
}

// firstNumber parses the first run of digits in v.
func firstNumber(v string) (int, bool) {
	m := digitRun.FindString(v)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range listSplit.Split(v, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IntakeWalker walks the ordered intake questions, one per turn.
type IntakeWalker struct {
	questions []IntakeQuestion
}

// NewIntakeWalker returns a walker over the standard question list.
func NewIntakeWalker() *IntakeWalker {
	return &IntakeWalker{questions: intakeQuestions}
}

// Questions returns the question list in asking order.
func (w *IntakeWalker) Questions() []IntakeQuestion {
	return append([]IntakeQuestion(nil), w.questions...)
}

// NextPending returns the first question whose field is not yet answered.
// Questions that do not apply to the patient are marked answered on the way
// past. It returns nil once intake is complete.
func (w *IntakeWalker) NextPending(s *pkg.TriageSession) *IntakeQuestion {
	if s.IntakeProgress == nil {
		s.IntakeProgress = map[string]bool{}
	}
	for i := range w.questions {
		q := &w.questions[i]
		if s.IntakeProgress[string(q.Field)] {
			continue
		}
		if q.Relevant != nil && !q.Relevant(s) {
			s.IntakeProgress[string(q.Field)] = true
			continue
		}
		return q
	}
	return nil
}

// UpdateFromUser applies message as the answer to the current pending
// question only. An answer that cannot be parsed leaves the question
// pending so it is asked again. It returns the field answered, if any.
func (w *IntakeWalker) UpdateFromUser(s *pkg.TriageSession, message string) (IntakeField, bool) {
	q := w.NextPending(s)
	if q == nil {
		return "", false
	}
	set, ok := intakeSetters[q.Field]
	if !ok || !set(s, strings.TrimSpace(message)) {
		return q.Field, false
	}
	s.IntakeProgress[string(q.Field)] = true
	return q.Field, true
}

// Prime records every known field as pending unless it already has a
// progress entry.
func (w *IntakeWalker) Prime(s *pkg.TriageSession) {
	if s.IntakeProgress == nil {
		s.IntakeProgress = map[string]bool{}
	}
	for _, q := range w.questions {
		if _, ok := s.IntakeProgress[string(q.Field)]; !ok {
			s.IntakeProgress[string(q.Field)] = false
		}
	}
}

// Complete reports whether every question is answered or skipped.
func (w *IntakeWalker) Complete(s *pkg.TriageSession) bool {
	return w.NextPending(s) == nil
}
