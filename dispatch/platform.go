package dispatch

import (
	"context"
	"time"

	"guardbot/model"
)

// OutgoingMessage is a rendered reply ready for the platform.
type OutgoingMessage struct {
	GroupID        string
	ChannelID      string
	ReplyTo        string
	Text           string
	Buttons        []model.Button
	MentionUserIDs []string // the only users the message may ping
	MentionAll     bool
}

// Platform is the outbound surface of the chat platform. Implementations
// return model.ErrGone when the target message or member no longer exists and
// model.ErrAlreadyApplied when the requested state already holds.
type Platform interface {
	DeleteMessage(ctx context.Context, groupID, channelID, messageID string) error
	// RestrictMember applies perms until the given time. A zero until lifts the restriction.
	RestrictMember(ctx context.Context, groupID, userID string, perms model.Permissions, until time.Time) error
	// BanMember bans userID. A zero until bans permanently.
	BanMember(ctx context.Context, groupID, userID string, until time.Time, reason string) error
	SetChatPermissions(ctx context.Context, groupID string, perms model.Permissions) error
	SendReply(ctx context.Context, msg OutgoingMessage) (string, error)
	EditMessage(ctx context.Context, groupID, channelID, messageID, text string) error
	GetAdministrators(ctx context.Context, groupID string) ([]string, error)
}

// AdminResolver is implemented by platforms that can answer a single admin
// query without listing every administrator.
type AdminResolver interface {
	IsAdministrator(ctx context.Context, groupID, userID string) (bool, error)
}

// DirectMessenger is implemented by platforms that can message a user privately.
type DirectMessenger interface {
	SendDirect(ctx context.Context, userID, text string) error
}

// Auditor receives every ban and mute that reached the platform.
type Auditor interface {
	Audit(ctx context.Context, d model.Decision)
}
