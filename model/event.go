package model

import (
	"strings"
	"time"
)

type EventKind int

const (
	MessageReceived EventKind = iota + 1
	UserJoined
	UserLeft
	ButtonPressed
	CommandInvoked
)

func (k EventKind) String() string {
	switch k {
	case MessageReceived:
		return "message"
	case UserJoined:
		return "join"
	case UserLeft:
		return "leave"
	case ButtonPressed:
		return "button"
	case CommandInvoked:
		return "command"
	default:
		return "unknown"
	}
}

// UserRef identifies a platform user together with the display fields used in replies.
type UserRef struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns the best human readable name. It is untrusted input.
func (u UserRef) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// Command is the parsed payload of a CommandInvoked event.
type Command struct {
	Name   string
	Args   []string
	Target *UserRef // from a mention or the replied-to message
}

// Event is one inbound delivery from the transport. All payload fields are untrusted.
type Event struct {
	ID         string // delivery identity, stable across redeliveries
	Kind       EventKind
	GroupID    string
	GroupTitle string
	ChannelID  string
	User       UserRef
	Timestamp  time.Time
	MessageID  string
	Text       string
	MediaType  string
	Callback   string
	Command    *Command
}

// Key returns the (group, user) serialization key of the event. Commands are
// keyed by their target because that is the member whose state they mutate.
func (e Event) Key() string {
	user := e.User.ID
	switch e.Kind {
	case CommandInvoked:
		if e.Command != nil && e.Command.Target != nil {
			user = e.Command.Target.ID
		}
	case ButtonPressed:
		if target, ok := ParseCaptchaPayload(e.Callback); ok {
			user = target
		}
	}
	return e.GroupID + "/" + user
}

const captchaPrefix = "captcha:"

// CaptchaPayload encodes the user a verification button is bound to.
func CaptchaPayload(userID string) string {
	return captchaPrefix + userID
}

// ParseCaptchaPayload extracts the bound user id from a button payload.
func ParseCaptchaPayload(payload string) (string, bool) {
	if !strings.HasPrefix(payload, captchaPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(payload, captchaPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}
