package core

import (
	"regexp"
	"strings"
)

// Intent is a front-desk intent tag.
type Intent string

const (
	IntentGreeting    Intent = "greeting"
	IntentTime        Intent = "time_question"
	IntentServices    Intent = "services_question"
	IntentStyle       Intent = "style_feedback"
	IntentMedical     Intent = "medical_symptom"
	IntentAppointment Intent = "appointment_request"
	IntentAdmin       Intent = "admin_question"
	IntentUnclear     Intent = "unclear"
)

const unclearConfidence = 0.40

// IntentResult is the classifier verdict.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type intentPattern struct {
	intent     Intent
	confidence float64
	re         *regexp.Regexp
}

// intentCascade is checked top to bottom; the first match wins, so the
// order is the priority.
var intentCascade = []intentPattern{
	{IntentGreeting, 0.98, regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good\s+(morning|afternoon|evening))\b`)},
	{IntentTime, 0.90, regexp.MustCompile(`(?i)\b(time|date|today)\b`)},
	{IntentServices, 0.90, regexp.MustCompile(`(?i)\b(service|services|offer|help with|what can you do)\b`)},
	{IntentStyle, 0.89, regexp.MustCompile(`(?i)\b(robotic|bot|human|too scripted)\b`)},
	{IntentMedical, 0.88, regexp.MustCompile(`(?i)\b(pain|fever|cough|rash|vomit|nausea|headache|dizzy|bleeding|pregnan|symptom|breath)\b`)},
	{IntentAppointment, 0.85, regexp.MustCompile(`(?i)\b(book|schedule|appointment|follow[- ]?up)\b`)},
	{IntentAdmin, 0.84, regexp.MustCompile(`(?i)\b(billing|insurance|hours|location|records)\b`)},
}

var identityPattern = regexp.MustCompile(`(?i)\b(who\s+are\s+you|what('s|\s+is)\s+your\s+name|ur\s+name|your\s+name)\b`)

// IntentClassifier tags idle and greeting phase messages.
type IntentClassifier struct{}

// NewIntentClassifier returns the classifier.
func NewIntentClassifier() *IntentClassifier { return &IntentClassifier{} }

// Classify returns the first matching intent of the cascade, or unclear.
func (c *IntentClassifier) Classify(message string) IntentResult {
	text := strings.TrimSpace(message)
	for _, p := range intentCascade {
		if p.re.MatchString(text) {
			return IntentResult{Intent: p.intent, Confidence: p.confidence}
		}
	}
	return IntentResult{Intent: IntentUnclear, Confidence: unclearConfidence}
}

// IsIdentityQuestion reports whether the user asks who the assistant is.
func IsIdentityQuestion(message string) bool {
	return identityPattern.MatchString(strings.TrimSpace(message))
}
