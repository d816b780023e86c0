package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntentClassifier_Cascade(t *testing.T) {
	c := NewIntentClassifier()
	tests := []struct {
		msg        string
		intent     Intent
		confidence float64
	}{
		{"Hello there", IntentGreeting, 0.98},
		{"  good morning", IntentGreeting, 0.98},
		{"what time is it", IntentTime, 0.90},
		{"what services do you offer", IntentServices, 0.90},
		{"you sound robotic", IntentStyle, 0.89},
		{"I have a bad headache", IntentMedical, 0.88},
		{"I want to book a visit", IntentAppointment, 0.85},
		{"question about billing", IntentAdmin, 0.84},
		{"asdf qwerty", IntentUnclear, 0.40},
		// earlier entries win
		{"hello, I have a fever", IntentGreeting, 0.98},
		{"can I book today", IntentTime, 0.90},
		{"pain since my appointment", IntentMedical, 0.88},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := c.Classify(tt.msg)
			assert.Equal(t, tt.intent, got.Intent)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestIsIdentityQuestion(t *testing.T) {
	assert.True(t, IsIdentityQuestion("Who are you?"))
	assert.True(t, IsIdentityQuestion("what's your name"))
	assert.True(t, IsIdentityQuestion("ur name pls"))
	assert.False(t, IsIdentityQuestion("my name is Sam"))
}

func TestFrontDesk_Respond(t *testing.T) {
	f := NewFrontDesk(fixedClock)
	assert.Equal(t, "It is 03:04 PM on Monday, January 02.", f.Respond(IntentTime))
	assert.Equal(t, ServicesReply, f.Respond(IntentServices))
	assert.Equal(t, StyleFeedbackReply, f.Respond(IntentStyle))
	assert.Equal(t, AppointmentReply, f.Respond(IntentAppointment))
	assert.Equal(t, AdminReply, f.Respond(IntentAdmin))
	assert.Equal(t, UnclearReply, f.Respond(IntentUnclear))
	assert.Equal(t, GreetingReply, f.Respond(IntentGreeting))
	assert.Equal(t, GreetingReply, f.Respond(Intent("something_else")))
}

func TestFrontDesk_NilClock(t *testing.T) {
	f := NewFrontDesk(nil)
	assert.Contains(t, f.Respond(IntentTime), time.Now().Format("Monday"))
}
