package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom-triage/pkg"
)

func newPrimedSession(w *IntakeWalker) *pkg.TriageSession {
	s := pkg.NewTriageSession("c", "p", fixedNow)
	w.Prime(s)
	return s
}

func TestIntakeWalker_OrderAndPregnancySkip(t *testing.T) {
	w := NewIntakeWalker()
	s := newPrimedSession(w)
	require.Len(t, s.IntakeProgress, 10)

	answers := []struct {
		answer string
		field  IntakeField
	}{
		{"40", FieldAge},
		{"male", FieldSex},
		{"sore throat", FieldChiefComplaint},
		{"3 days", FieldOnsetTime},
		{"4", FieldSeverity},
		{"fever and chills", FieldAssociatedSymptoms},
		{"asthma", FieldChronicConditions},
		{"inhaler; vitamin d", FieldMedications},
		{"none", FieldAllergies},
	}
	for _, a := range answers {
		q := w.NextPending(s)
		require.NotNil(t, q)
		assert.Equal(t, a.field, q.Field)
		field, ok := w.UpdateFromUser(s, a.answer)
		assert.True(t, ok)
		assert.Equal(t, a.field, field)
	}
	assert.True(t, w.Complete(s))
	assert.Nil(t, w.NextPending(s))
	assert.True(t, s.IntakeProgress[string(FieldPregnancyStatus)], "skipped for male patients")
	assert.Nil(t, s.Demographics.PregnancyStatus)

	assert.Equal(t, 40, *s.Demographics.Age)
	assert.Equal(t, "sore throat", s.ChiefComplaint)
	assert.Equal(t, []string{"sore throat"}, s.Symptoms)
	assert.Equal(t, []string{"fever", "chills"}, s.AssociatedSymptoms)
	assert.Equal(t, []string{"inhaler", "vitamin d"}, s.Medications)
	assert.Equal(t, []string{"none"}, s.Allergies)
}

func TestIntakeWalker_FemaleIsAskedPregnancy(t *testing.T) {
	w := NewIntakeWalker()
	s := newPrimedSession(w)
	_, _ = w.UpdateFromUser(s, "29")
	_, _ = w.UpdateFromUser(s, "Female")

	q := w.NextPending(s)
	require.NotNil(t, q)
	assert.Equal(t, FieldPregnancyStatus, q.Field)

	field, ok := w.UpdateFromUser(s, "yes, pregnant")
	assert.True(t, ok)
	assert.Equal(t, FieldPregnancyStatus, field)
	assert.Equal(t, "yes, pregnant", *s.Demographics.PregnancyStatus)
}

func TestIntakeWalker_Age(t *testing.T) {
	w := NewIntakeWalker()
	tests := []struct {
		answer string
		want   int
	}{
		{"45", 45},
		{"she is 72 years old", 72},
		{"8 months", 0},
		{"18 months", 18},
	}
	for _, tt := range tests {
		s := newPrimedSession(w)
		_, ok := w.UpdateFromUser(s, tt.answer)
		require.True(t, ok, tt.answer)
		assert.Equal(t, tt.want, *s.Demographics.Age, tt.answer)
	}
}

func TestIntakeWalker_UnparsedAnswerStaysPending(t *testing.T) {
	w := NewIntakeWalker()
	s := newPrimedSession(w)

	field, ok := w.UpdateFromUser(s, "I have a mild cough")
	assert.Equal(t, FieldAge, field)
	assert.False(t, ok)
	assert.Nil(t, s.Demographics.Age)
	assert.False(t, s.IntakeProgress[string(FieldAge)])
	assert.Equal(t, FieldAge, w.NextPending(s).Field)
}

func TestIntakeWalker_SeverityClamped(t *testing.T) {
	w := NewIntakeWalker()
	for _, tt := range []struct {
		answer string
		want   int
	}{{"15", 10}, {"0", 1}, {"about 6", 6}} {
		s := newPrimedSession(w)
		for _, a := range []string{"30", "male", "headache", "today"} {
			_, _ = w.UpdateFromUser(s, a)
		}
		field, ok := w.UpdateFromUser(s, tt.answer)
		require.True(t, ok)
		assert.Equal(t, FieldSeverity, field)
		assert.Equal(t, tt.want, *s.Severity, tt.answer)
	}
}

func TestIntakeWalker_PrimeKeepsAnswers(t *testing.T) {
	w := NewIntakeWalker()
	s := pkg.NewTriageSession("c", "p", fixedNow)
	s.IntakeProgress[string(FieldAge)] = true
	w.Prime(s)
	assert.True(t, s.IntakeProgress[string(FieldAge)])
	assert.False(t, s.IntakeProgress[string(FieldSex)])
	assert.Len(t, s.IntakeProgress, len(w.Questions()))
}
