package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"waitroom-triage/pkg"
)

// MinIntentConfidence is the classifier confidence below which an idle
// conversation is handed to a human instead of routed.
const MinIntentConfidence = 0.55

// Audit agent names.
const (
	AgentOrchestrator = "orchestrator"
	AgentRedFlags     = "red_flag_engine"
	AgentIntent       = "intent_classifier"
	AgentIntake       = "intake_walker"
	AgentRules        = "rules_engine"
	AgentRisk         = "risk_scoring_agent"
)

var (
	// ErrEmptyMessage is returned for blank inbound messages.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMissingConversation is returned when a request has no conversation id.
	ErrMissingConversation = errors.New("missing conversation id")
)

// SessionStore is the durable storage the orchestrator needs for one turn.
type SessionStore interface {
	GetOrCreateSession(ctx context.Context, conversationID, patientID string) (*pkg.TriageSession, error)
	GetSession(ctx context.Context, conversationID string) (*pkg.TriageSession, error)
	SaveSession(ctx context.Context, s *pkg.TriageSession) error
	AppendMessage(ctx context.Context, conversationID string, role pkg.MessageRole, content string, at time.Time) error
	CountMessages(ctx context.Context, conversationID string, role pkg.MessageRole) (int, error)
	AddHandoffTicket(ctx context.Context, t *pkg.HandoffTicket) error
}

// Result is the outcome of one turn.
type Result struct {
	Response pkg.ChatResponse
	Ticket   *pkg.HandoffTicket
	Session  *pkg.TriageSession
}

// Assessment is a read-only re-evaluation of a stored session.
type Assessment struct {
	ConversationID string          `json:"conversation_id"`
	State          pkg.TriageState `json:"state"`
	IntakeComplete bool            `json:"intake_complete"`
	Verdict        RuleVerdict     `json:"verdict"`
	Risk           RiskEstimate    `json:"risk"`
}

// reply is what a routing branch decided to say.
type reply struct {
	text    string
	handoff bool
	reason  *string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithLocation sets the time zone used when telling patients the time.
// Audit timestamps stay in UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) { o.loc = loc }
}

// WithMessageCap limits the user messages accepted per conversation; 0
// disables the limit. Red-flag messages are always processed.
func WithMessageCap(n int) Option {
	return func(o *Orchestrator) { o.messageCap = n }
}

// WithIDGenerator replaces the ticket id generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// Orchestrator drives the triage state machine, one turn per inbound
// message. Turns for the same conversation are serialised; turns for
// different conversations run in parallel.
type Orchestrator struct {
	store  SessionStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	locks  *keyLock
	loc    *time.Location

	messageCap int

	redFlags   *RedFlagEngine
	intents    *IntentClassifier
	frontDesk  *FrontDesk
	intake     *IntakeWalker
	rules      *RulesEngine
	risk       *RiskScorer
	escalation *EscalationPolicy
}

// NewOrchestrator wires the agents around store and the loaded rule set.
func NewOrchestrator(store SessionStore, rules *RuleSet, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
		locks:  newKeyLock(),
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.redFlags = NewRedFlagEngine()
	o.intents = NewIntentClassifier()
	o.frontDesk = NewFrontDesk(func() time.Time { return o.now().In(o.loc) })
	o.intake = NewIntakeWalker()
	o.rules = NewRulesEngine(rules)
	o.risk = NewRiskScorer()
	o.escalation = NewEscalationPolicy()
	return o
}

// Process runs one turn: load the session, route the message, persist the
// session, the reply and any handoff ticket. Once the message cap is
// reached only messages carrying a red flag are routed; the rest get the
// cap reply and leave the session untouched.
func (o *Orchestrator) Process(ctx context.Context, req pkg.ChatRequest) (*Result, error) {
	if strings.TrimSpace(req.ConversationID) == "" {
		return nil, ErrMissingConversation
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	patientID := req.PatientID
	if patientID == "" {
		patientID = req.ConversationID
	}

	unlock := o.locks.Lock(req.ConversationID)
	defer unlock()

	s, err := o.store.GetOrCreateSession(ctx, req.ConversationID, patientID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if o.messageCap > 0 {
		count, err := o.store.CountMessages(ctx, req.ConversationID, pkg.RoleUser)
		if err != nil {
			return nil, fmt.Errorf("count messages: %w", err)
		}
		if count >= o.messageCap && len(o.redFlags.Detect(req.Message, s)) == 0 {
			return o.capped(ctx, s)
		}
	}
	if err := o.store.AppendMessage(ctx, req.ConversationID, pkg.RoleUser, req.Message, o.now()); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	from := s.State
	o.intake.Prime(s)
	r := o.route(s, req.Message)
	return o.finalize(ctx, s, from, r)
}

func (o *Orchestrator) capped(ctx context.Context, s *pkg.TriageSession) (*Result, error) {
	o.logger.Info("message cap reached", zap.String("conversation_id", s.SessionID), zap.Int("cap", o.messageCap))
	if err := o.store.AppendMessage(ctx, s.SessionID, pkg.RoleAssistant, CapMessage, o.now()); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	return &Result{
		Response: pkg.ChatResponse{
			ConversationID: s.SessionID,
			Response:       CapMessage,
			State:          s.State,
			UrgencyLevel:   s.UrgencyLevel,
			Disclaimer:     pkg.Disclaimer,
		},
		Session: s,
	}, nil
}

// Assess re-derives the rule verdict and risk score of a stored session
// without changing it.
func (o *Orchestrator) Assess(ctx context.Context, conversationID string) (*Assessment, error) {
	stored, err := o.store.GetSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	s := stored.Clone()
	return &Assessment{
		ConversationID: conversationID,
		State:          s.State,
		IntakeComplete: o.intake.Complete(s),
		Verdict:        o.rules.Evaluate(s),
		Risk:           o.risk.Score(s),
	}, nil
}

func (o *Orchestrator) route(s *pkg.TriageSession, message string) reply {
	o.record(s, AgentOrchestrator, "message_received", map[string]any{
		"message": message,
		"state":   string(s.State),
	})

	if flags := o.redFlags.Detect(message, s); len(flags) > 0 {
		return o.emergencyOverride(s, flags)
	}

	if s.State == pkg.StateIdle {
		if IsIdentityQuestion(message) {
			o.transition(s, pkg.StateGreeting, "identity_route", nil)
			return reply{text: IdentityReply}
		}
		intent := o.classify(s, message)
		if intent.Confidence < MinIntentConfidence {
			o.transition(s, pkg.StateEscalated, "low_classifier_confidence", map[string]any{"confidence": intent.Confidence})
			return reply{text: LowConfidenceReply, handoff: true, reason: strPtr(ReasonLowConfidence)}
		}
		switch intent.Intent {
		case IntentGreeting:
			o.transition(s, pkg.StateGreeting, "greeting_route", nil)
			return reply{text: o.frontDesk.Respond(IntentGreeting)}
		case IntentAppointment, IntentAdmin:
			o.transition(s, pkg.StateGreeting, "front_desk_route", map[string]any{"intent": string(intent.Intent)})
			return reply{text: o.frontDesk.Respond(intent.Intent)}
		case IntentMedical:
			o.transition(s, pkg.StateIntake, "medical_route", nil)
		default:
			return reply{text: ClarifyReply}
		}
	}

	if s.State == pkg.StateGreeting {
		if IsIdentityQuestion(message) {
			return reply{text: IdentityReply}
		}
		intent := o.classify(s, message)
		if intent.Intent != IntentMedical {
			return reply{text: o.frontDesk.Respond(intent.Intent)}
		}
		o.transition(s, pkg.StateIntake, "symptom_detected_post_greeting", nil)
	}

	if s.State == pkg.StateIntake || s.State == pkg.StateTriage {
		return o.advanceIntake(s, message)
	}

	return o.failsafe(s)
}

func (o *Orchestrator) classify(s *pkg.TriageSession, message string) IntentResult {
	intent := o.intents.Classify(message)
	o.record(s, AgentIntent, "classified", map[string]any{
		"intent":     string(intent.Intent),
		"confidence": intent.Confidence,
	})
	return intent
}

func (o *Orchestrator) emergencyOverride(s *pkg.TriageSession, flags []string) reply {
	o.logger.Warn("red flag override", zap.String("conversation_id", s.SessionID), zap.Strings("red_flags", flags))
	s.AddRedFlags(flags)
	o.record(s, AgentRedFlags, "red_flags_detected", map[string]any{"red_flags": flags})
	o.transition(s, pkg.StateEmergency, "red_flag_override", map[string]any{"red_flags": flags})
	s.UrgencyLevel = pkg.UrgencyEmergency
	s.TriggeredRules = append(s.TriggeredRules, flags...)

	esc := o.escalation.For(pkg.UrgencyEmergency)
	o.transition(s, pkg.StateEscalated, "emergency_handoff", map[string]any{"handoff_reason": *esc.Reason})
	o.transition(s, pkg.StateClosed, "session_closed_after_emergency", nil)
	return reply{text: esc.Message, handoff: esc.RequiresHandoff, reason: esc.Reason}
}

func (o *Orchestrator) advanceIntake(s *pkg.TriageSession, message string) reply {
	if field, ok := o.intake.UpdateFromUser(s, message); field != "" {
		action := "answer_recorded"
		if !ok {
			action = "answer_unparsed"
		}
		o.record(s, AgentIntake, action, map[string]any{"field": string(field)})
	}
	o.transition(s, pkg.StateTriage, "triage_progress", map[string]any{"progress": progressSnapshot(s)})

	if q := o.intake.NextPending(s); q != nil {
		return reply{text: q.Question}
	}

	verdict := o.rules.Evaluate(s)
	s.UrgencyLevel = verdict.UrgencyLevel
	s.TriggeredRules = verdict.TriggeredRules
	s.Confidence = verdict.Confidence
	risk := o.risk.Score(s)
	s.RiskScore = risk.Score
	o.record(s, AgentRules, "urgency_classified", map[string]any{
		"urgency_level":   string(verdict.UrgencyLevel),
		"triggered_rules": append([]string{}, verdict.TriggeredRules...),
		"confidence":      verdict.Confidence,
	})
	o.record(s, AgentRisk, "supplemental_risk", map[string]any{
		"risk_score": risk.Score,
		"confidence": risk.Confidence,
	})

	if risk.Score >= RiskEscalationThreshold && s.UrgencyLevel != pkg.UrgencyEmergency {
		o.transition(s, pkg.StateEscalated, "risk_uncertain_escalation", map[string]any{"risk_score": risk.Score})
		return reply{text: RiskReviewReply, handoff: true, reason: strPtr(ReasonRiskScore)}
	}

	esc := o.escalation.For(s.UrgencyLevel)
	if esc.RequiresHandoff {
		o.transition(s, pkg.StateEscalated, "urgency_handoff", map[string]any{"urgency": string(s.UrgencyLevel)})
	}
	o.transition(s, pkg.StateClosed, "triage_completed", map[string]any{"urgency": string(s.UrgencyLevel)})
	return reply{text: esc.Message, handoff: esc.RequiresHandoff, reason: esc.Reason}
}

// failsafe closes any state with no defined route. A CLOSED conversation
// that receives another message lands here too.
func (o *Orchestrator) failsafe(s *pkg.TriageSession) reply {
	o.logger.Warn("failsafe route", zap.String("conversation_id", s.SessionID), zap.String("state", string(s.State)))
	o.transition(s, pkg.StateEmergency, "failsafe_default", nil)
	o.transition(s, pkg.StateClosed, "failsafe_closed", nil)
	return reply{text: FailsafeReply, handoff: true, reason: strPtr(ReasonFailsafe)}
}

func (o *Orchestrator) finalize(ctx context.Context, s *pkg.TriageSession, from pkg.TriageState, r reply) (*Result, error) {
	now := o.now()
	if err := o.store.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if err := o.store.AppendMessage(ctx, s.SessionID, pkg.RoleAssistant, r.text, now); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}

	var ticket *pkg.HandoffTicket
	if r.handoff {
		reason := "Clinical escalation"
		if r.reason != nil {
			reason = *r.reason
		}
		userMessage := s.ChiefComplaint
		if userMessage == "" {
			userMessage = "See session log"
		}
		ticket = &pkg.HandoffTicket{
			TicketID:       o.newID(),
			ConversationID: s.SessionID,
			Reason:         reason,
			UserMessage:    userMessage,
			CreatedAt:      now,
		}
		if err := o.store.AddHandoffTicket(ctx, ticket); err != nil {
			return nil, fmt.Errorf("store handoff ticket: %w", err)
		}
	}

	o.logger.Info("turn completed",
		zap.String("conversation_id", s.SessionID),
		zap.String("from", string(from)),
		zap.String("to", string(s.State)),
		zap.String("urgency", string(s.UrgencyLevel)),
		zap.Bool("handoff", r.handoff),
	)

	return &Result{
		Response: pkg.ChatResponse{
			ConversationID:  s.SessionID,
			Response:        r.text,
			State:           s.State,
			RequiresHandoff: r.handoff,
			HandoffReason:   r.reason,
			UrgencyLevel:    s.UrgencyLevel,
			Disclaimer:      pkg.Disclaimer,
		},
		Ticket:  ticket,
		Session: s,
	}, nil
}

func (o *Orchestrator) record(s *pkg.TriageSession, agent, action string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	now := o.now()
	s.AuditLog = append(s.AuditLog, pkg.AuditEvent{Timestamp: now, Agent: agent, Action: action, Details: details})
	s.Timestamp = now
}

func (o *Orchestrator) transition(s *pkg.TriageSession, to pkg.TriageState, reason string, extra map[string]any) {
	details := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		details[k] = v
	}
	details["from"] = string(s.State)
	details["to"] = string(to)
	details["reason"] = reason
	s.State = to
	o.record(s, AgentOrchestrator, "state_transition", details)
}

func progressSnapshot(s *pkg.TriageSession) map[string]bool {
	out := make(map[string]bool, len(s.IntakeProgress))
	for k, v := range s.IntakeProgress {
		out[k] = v
	}
	return out
}
