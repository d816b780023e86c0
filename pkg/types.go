package pkg

import "time"

// Disclaimer is attached to every response returned to the patient.
const Disclaimer = "This is a triage support tool and not a medical diagnosis."

// TriageState is the position of a conversation in the triage state
// machine.
type TriageState string

const (
	StateIdle      TriageState = "IDLE"
	StateGreeting  TriageState = "GREETING"
	StateIntake    TriageState = "INTAKE"
	StateTriage    TriageState = "TRIAGE"
	StateEmergency TriageState = "EMERGENCY"
	StateEscalated TriageState = "ESCALATED"
	StateClosed    TriageState = "CLOSED"
)

// Valid reports whether s is one of the known states.
func (s TriageState) Valid() bool {
	switch s {
	case StateIdle, StateGreeting, StateIntake, StateTriage, StateEmergency, StateEscalated, StateClosed:
		return true
	}
	return false
}

// UrgencyLevel is the clinical priority verdict.
type UrgencyLevel string

const (
	UrgencyEmergency UrgencyLevel = "EMERGENCY"
	UrgencyUrgent    UrgencyLevel = "URGENT"
	UrgencyRoutine   UrgencyLevel = "ROUTINE"
)

// Valid reports whether u is one of the known urgency levels.
func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyEmergency, UrgencyUrgent, UrgencyRoutine:
		return true
	}
	return false
}

// MessageRole describes who authored a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a chat message in a conversation.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Demographics are filled in incrementally during intake.
type Demographics struct {
	Age             *int    `json:"age,omitempty"`
	Sex             *string `json:"sex,omitempty"`
	PregnancyStatus *string `json:"pregnancy_status,omitempty"`
}

// AuditEvent is an immutable record of a decision or a state transition.
// Events are kept in insertion order; that order is the explanation of
// every outcome.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
}

// TriageSession is the per-conversation state. It is the unit of
// persistence and of concurrency control.
type TriageSession struct {
	SessionID          string          `json:"session_id"`
	PatientID          string          `json:"patient_id"`
	State              TriageState     `json:"state"`
	Demographics       Demographics    `json:"demographics"`
	ChiefComplaint     string          `json:"chief_complaint"`
	Symptoms           []string        `json:"symptoms"`
	OnsetTime          *string         `json:"onset_time,omitempty"`
	Severity           *int            `json:"severity,omitempty"`
	AssociatedSymptoms []string        `json:"associated_symptoms"`
	ChronicConditions  []string        `json:"chronic_conditions"`
	Medications        []string        `json:"medications"`
	Allergies          []string        `json:"allergies"`
	IntakeProgress     map[string]bool `json:"intake_progress"`
	RedFlagsDetected   []string        `json:"red_flags_detected"`
	UrgencyLevel       UrgencyLevel    `json:"urgency_level"`
	RiskScore          float64         `json:"risk_score"`
	TriggeredRules     []string        `json:"triggered_rules"`
	Confidence         float64         `json:"confidence"`
	AuditLog           []AuditEvent    `json:"audit_log"`
	Timestamp          time.Time       `json:"timestamp"`

	// persistedEvents counts the audit events already written by a store.
	persistedEvents int
}

// NewTriageSession returns an IDLE session with every intake field pending.
func NewTriageSession(sessionID, patientID string, now time.Time) *TriageSession {
	return &TriageSession{
		SessionID:          sessionID,
		PatientID:          patientID,
		State:              StateIdle,
		Symptoms:           []string{},
		AssociatedSymptoms: []string{},
		ChronicConditions:  []string{},
		Medications:        []string{},
		Allergies:          []string{},
		IntakeProgress:     map[string]bool{},
		RedFlagsDetected:   []string{},
		TriggeredRules:     []string{},
		AuditLog:           []AuditEvent{},
		Timestamp:          now,
	}
}

// UnsavedEvents returns the audit events appended since the last call to
// MarkEventsPersisted.
func (s *TriageSession) UnsavedEvents() []AuditEvent {
	if s.persistedEvents >= len(s.AuditLog) {
		return nil
	}
	return s.AuditLog[s.persistedEvents:]
}

// PersistedEvents returns how many audit events a store has already written.
func (s *TriageSession) PersistedEvents() int { return s.persistedEvents }

// MarkEventsPersisted records that every current audit event has been stored.
func (s *TriageSession) MarkEventsPersisted() { s.persistedEvents = len(s.AuditLog) }

// AddRedFlags merges flags into RedFlagsDetected without duplicates,
// keeping first-seen order.
func (s *TriageSession) AddRedFlags(flags []string) {
	for _, f := range flags {
		seen := false
		for _, existing := range s.RedFlagsDetected {
			if existing == f {
				seen = true
				break
			}
		}
		if !seen {
			s.RedFlagsDetected = append(s.RedFlagsDetected, f)
		}
	}
}

// Clone returns a deep copy of the session, including the persisted
// event counter.
func (s *TriageSession) Clone() *TriageSession {
	c := *s
	c.Demographics = Demographics{
		Age:             cloneInt(s.Demographics.Age),
		Sex:             cloneString(s.Demographics.Sex),
		PregnancyStatus: cloneString(s.Demographics.PregnancyStatus),
	}
	c.OnsetTime = cloneString(s.OnsetTime)
	c.Severity = cloneInt(s.Severity)
	c.Symptoms = append([]string{}, s.Symptoms...)
	c.AssociatedSymptoms = append([]string{}, s.AssociatedSymptoms...)
	c.ChronicConditions = append([]string{}, s.ChronicConditions...)
	c.Medications = append([]string{}, s.Medications...)
	c.Allergies = append([]string{}, s.Allergies...)
	c.RedFlagsDetected = append([]string{}, s.RedFlagsDetected...)
	c.TriggeredRules = append([]string{}, s.TriggeredRules...)
	c.IntakeProgress = make(map[string]bool, len(s.IntakeProgress))
	for k, v := range s.IntakeProgress {
		c.IntakeProgress[k] = v
	}
	c.AuditLog = make([]AuditEvent, len(s.AuditLog))
	for i, ev := range s.AuditLog {
		c.AuditLog[i] = AuditEvent{Timestamp: ev.Timestamp, Agent: ev.Agent, Action: ev.Action, Details: cloneDetails(ev.Details)}
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDetails(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// HandoffTicket asks a human clinician to take over a conversation. Its
// lifecycle is independent of the session.
type HandoffTicket struct {
	TicketID       string    `json:"ticket_id"`
	ConversationID string    `json:"conversation_id"`
	Reason         string    `json:"reason"`
	UserMessage    string    `json:"user_message"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatRequest is one inbound patient message.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	PatientID      string `json:"patient_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResponse is the reply to one ChatRequest.
type ChatResponse struct {
	ConversationID  string       `json:"conversation_id"`
	Response        string       `json:"response"`
	State           TriageState  `json:"state"`
	RequiresHandoff bool         `json:"requires_handoff"`
	HandoffReason   *string      `json:"handoff_reason"`
	UrgencyLevel    UrgencyLevel `json:"urgency_level"`
	Disclaimer      string       `json:"disclaimer"`
}

// CaseSummary holds the clinician-facing summary of a session. Structured
// mirrors the intake fields; KeyPoints and FreeText are for display.
type CaseSummary struct {
	ConversationID string         `json:"conversation_id"`
	KeyPoints      []string       `json:"key_points"`
	Structured     map[string]any `json:"structured"`
	FreeText       string         `json:"free_text"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SessionPreview is one row of the clinician session list.
type SessionPreview struct {
	ConversationID string      `json:"conversation_id"`
	PatientID      string      `json:"patient_id"`
	State          TriageState `json:"state"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
