package core

import "waitroom-triage/pkg"

// Escalation is the user-facing outcome for an urgency level.
type Escalation struct {
	Message         string
	RequiresHandoff bool
	Reason          *string
}

// EscalationPolicy maps a final urgency level to a message and handoff.
type EscalationPolicy struct{}

// NewEscalationPolicy returns the policy.
func NewEscalationPolicy() *EscalationPolicy { return &EscalationPolicy{} }

// For returns the escalation for urgency. Anything that is not EMERGENCY or
// URGENT is handled as routine.
func (p *EscalationPolicy) For(urgency pkg.UrgencyLevel) Escalation {
	switch urgency {
	case pkg.UrgencyEmergency:
		return Escalation{Message: EmergencyReply, RequiresHandoff: true, Reason: strPtr(ReasonEmergency)}
	case pkg.UrgencyUrgent:
		return Escalation{Message: UrgentReply, RequiresHandoff: true, Reason: strPtr(ReasonUrgent)}
	default:
		return Escalation{Message: RoutineReply}
	}
}

func strPtr(s string) *string { return &s }
