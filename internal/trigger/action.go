package trigger

// Action is the closed set of downstream outreach actions a tier can be
// configured to fire. The engine only decides; an external dispatcher
// executes.
type Action string

const (
	ActionIgnore      Action = "ignore"
	ActionWatch       Action = "watch"
	ActionNurture     Action = "nurture"
	ActionSDREscalate Action = "sdr_escalate"
	ActionAutoMeeting Action = "auto_meeting"
)

// ParseAction maps an action name from configuration to its Action,
// reporting whether it is one of the known action types.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionIgnore, ActionWatch, ActionNurture, ActionSDREscalate, ActionAutoMeeting:
		return a, true
	default:
		return a, false
	}
}

// PriorityScore is the fixed ordinal used by the external dispatcher for
// queue ordering. Unknown actions sort with ignore.
func (a Action) PriorityScore() int {
	switch a {
	case ActionWatch:
		return 10
	case ActionNurture:
		return 50
	case ActionSDREscalate:
		return 100
	case ActionAutoMeeting:
		return 200
	default:
		return 0
	}
}

// Rule declares which contact methods an action needs before it may fire.
type Rule struct {
	RequireEmail        bool `json:"require_email"`
	RequireEmailOrPhone bool `json:"require_email_or_phone"`
}

// DefaultRules is the action-rule table used when the config store has no
// rows. Nurture and auto-booked meetings need an email; SDR escalation can
// work from either contact method.
func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionIgnore:      {},
		ActionWatch:       {},
		ActionNurture:     {RequireEmail: true},
		ActionSDREscalate: {RequireEmailOrPhone: true},
		ActionAutoMeeting: {RequireEmail: true},
	}
}
