package core

// prompts.go holds every fixed sentence the assistant can say. Keeping them
// in one place makes wording changes possible without touching routing.

const (
	// IdentityReply answers "who are you" style questions.
	IdentityReply = "I am Celine, the hospital triage assistant. I can help with symptom triage or route front-desk requests."

	// GreetingReply is the default front-desk greeting.
	GreetingReply = "Hello, I am the hospital triage assistant. Tell me how I can help today."

	ServicesReply = "I can help with three things: (1) symptom triage, (2) routing appointment requests, and " +
		"(3) front-desk questions like billing, records, hours, or location."

	StyleFeedbackReply = "Good feedback. I am deterministic for clinical safety, so my phrasing can sound structured. " +
		"I can still keep replies shorter and more conversational while staying within triage scope."

	AppointmentReply = "I can help route appointment requests. If you also have symptoms, tell me your main symptom so I can start triage safely."

	AdminReply = "I can help with front-desk support and triage routing. For billing or records, a staff member can assist you directly."

	UnclearReply = "I can help with symptom triage, appointments, or admin questions. What do you need help with?"

	// ClarifyReply is asked when an idle conversation opens with a message
	// that does not route anywhere.
	ClarifyReply = "Could you clarify if you need symptom triage, appointment help, or another front-desk service?"

	// LowConfidenceReply is sent when the intent classifier is not sure enough
	// to route the conversation.
	LowConfidenceReply = "I need a human clinician to review this safely before proceeding."

	// RiskReviewReply is sent when the supplemental risk score overrides a
	// non-emergency rule verdict.
	RiskReviewReply = "Your case needs human clinician review now for safety."

	EmergencyReply = "Seek immediate medical care. Call emergency services or go to nearest emergency department. " +
		"I am stopping this triage now for safety."

	UrgentReply = "Your symptoms should be evaluated within 24 hours. Please arrange urgent clinical review now."

	RoutineReply = "This appears routine from triage data. Please book a standard appointment. If symptoms worsen, seek urgent care."

	// FailsafeReply closes any turn that reaches a state with no defined
	// route.
	FailsafeReply = "Seek immediate medical care. Call emergency services or go to nearest emergency department."

	// CapMessage is sent when a conversation exceeds its message cap.
	CapMessage = "We have reached the message limit for this conversation. Thank you for the details. A clinician can review the conversation."
)

// Handoff reasons recorded on responses and tickets.
const (
	ReasonLowConfidence = "Low intent confidence"
	ReasonRiskScore     = "High risk score uncertainty"
	ReasonEmergency     = "Emergency red-flag/rules trigger"
	ReasonUrgent        = "Urgent triage recommendation"
	ReasonFailsafe      = "Failsafe default"
)
