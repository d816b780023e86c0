package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waitroom-triage/pkg"
)

func TestRedFlagEngine_Detect(t *testing.T) {
	e := NewRedFlagEngine()
	tests := []struct {
		name string
		msg  string
		want []string
	}{
		{"none", "I have a mild cough", []string{}},
		{"chest pain", "I have crushing CHEST PAIN", []string{"chest_pain"}},
		{"breathing", "my son can't breathe", []string{"difficulty_breathing"}},
		{"sorted and deduped", "seizure then she collapsed, another convulsion", []string{"collapsed_statement", "seizure"}},
		{"stroke", "slurred speech since noon", []string{"stroke_symptoms"}},
		{"dying", "I'm dying here", []string{"dying_statement"}},
		{"infant phrase", "newborn fever since morning", []string{FlagInfantFever}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Detect(tt.msg, pkg.NewTriageSession("c", "p", fixedNow))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedFlagEngine_InfantFeverUsesAge(t *testing.T) {
	e := NewRedFlagEngine()
	s := pkg.NewTriageSession("c", "p", fixedNow)

	assert.Empty(t, e.Detect("she has a fever", s), "age unknown")

	age := 4
	s.Demographics.Age = &age
	assert.Empty(t, e.Detect("she has a fever", s), "older child")

	age = 0
	assert.Equal(t, []string{FlagInfantFever}, e.Detect("she has a Fever", s))
}
