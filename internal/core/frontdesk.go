package core

import (
	"fmt"
	"time"
)

// FrontDesk produces canned replies for non-clinical intents.
type FrontDesk struct {
	now func() time.Time
}

// NewFrontDesk returns a FrontDesk that reads the wall clock through now.
func NewFrontDesk(now func() time.Time) *FrontDesk {
	if now == nil {
		now = time.Now
	}
	return &FrontDesk{now: now}
}

// Respond returns the reply for intent. Unknown intents and greetings get
// the default greeting.
func (f *FrontDesk) Respond(intent Intent) string {
	switch intent {
	case IntentTime:
		t := f.now()
		return fmt.Sprintf("It is %s on %s.", t.Format("03:04 PM"), t.Format("Monday, January 02"))
	case IntentServices:
		return ServicesReply
	case IntentStyle:
		return StyleFeedbackReply
	case IntentAppointment:
		return AppointmentReply
	case IntentAdmin:
		return AdminReply
	case IntentUnclear:
		return UnclearReply
	default:
		return GreetingReply
	}
}
