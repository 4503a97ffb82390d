package model

import (
	"strconv"
	"time"
)

type DecisionKind int

const (
	Allow DecisionKind = iota
	DeleteAndWarn
	DeleteAndMute
	Ban
	Approve
	Reply
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case DeleteAndWarn:
		return "delete_and_warn"
	case DeleteAndMute:
		return "delete_and_mute"
	case Ban:
		return "ban"
	case Approve:
		return "approve"
	case Reply:
		return "reply"
	default:
		return "unknown"
	}
}

// Target is the platform context a decision acts on.
type Target struct {
	GroupID   string
	ChannelID string
	UserID    string
	MessageID string
}

// Button is an inline button attached to a reply.
type Button struct {
	Label   string
	Payload string
}

// Filter rules that can produce a decision.
const (
	RuleBlockedWord = "blocked_word"
	RuleBannedLink  = "banned_link"
	RuleMedia       = "media"
	RuleNightMode   = "night_mode"
	RuleFlood       = "flood"
	RuleApproval    = "approval"
	RuleWarnings    = "max_warnings"
	RuleManual      = "manual"
)

// Decision is the verdict of one component for one event. Text is a trusted
// template; the placeholders {mention} and {reason} are filled by the dispatcher
// with escaped renderings of Mention and Reason.
type Decision struct {
	Kind          DecisionKind
	ID            string
	Target        Target
	Reason        string
	Rule          string
	Duration      time.Duration // mute length, or ban length when non-zero
	Text          string
	Mention       *UserRef
	Buttons       []Button
	EditMessageID string
	Ephemeral     bool
	MentionAll    bool
	Notify        bool
}

// IsTerminal reports whether the decision ends processing of a message.
func (d Decision) IsTerminal() bool {
	return d.Kind != Allow
}

// AllowDecision is the zero-effect verdict.
func AllowDecision() Decision {
	return Decision{Kind: Allow}
}

// ReplyDecision builds a plain reply in the event's channel.
func ReplyDecision(t Target, text string) Decision {
	return Decision{Kind: Reply, Target: t, Text: text}
}

// WithID stamps the idempotency key of a decision derived from eventID.
func (d Decision) WithID(eventID string, seq int) Decision {
	if eventID == "" {
		return d
	}
	d.ID = eventID + ":" + d.Kind.String()
	if seq > 0 {
		d.ID += ":" + strconv.Itoa(seq)
	}
	return d
}
