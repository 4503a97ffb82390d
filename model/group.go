package model

import "time"

// Group is one managed community. The table is named 'chat_groups' and is keyed by
// the platform's chat identity.
type Group struct {
	ChatID           string `db:"chat_id"`
	Title            string `db:"title"`
	Language         string `db:"language"`
	WelcomeEnabled   bool   `db:"welcome_enabled"`
	GoodbyeEnabled   bool   `db:"goodbye_enabled"`
	CaptchaEnabled   bool   `db:"captcha_enabled"`
	ApprovalMode     bool   `db:"approval_mode"`
	AntiFloodEnabled bool   `db:"anti_flood_enabled"`
	NightModeEnabled bool   `db:"night_mode_enabled"`
	NightModeStart   string `db:"night_mode_start"` // HH:MM
	NightModeEnd     string `db:"night_mode_end"`   // HH:MM
	CreatedAt        int64  `db:"created_at"`
}

// NewGroup returns a group with the defaults used on first sight.
func NewGroup(chatID, title string, now time.Time) Group {
	return Group{
		ChatID:           chatID,
		Title:            title,
		Language:         "en",
		WelcomeEnabled:   true,
		GoodbyeEnabled:   true,
		AntiFloodEnabled: true,
		NightModeStart:   "23:00",
		NightModeEnd:     "07:00",
		CreatedAt:        now.Unix(),
	}
}

// Member is the per-group moderation record of one user.
type Member struct {
	GroupID       string `db:"group_id"`
	UserID        string `db:"user_id"`
	Username      string `db:"username"`
	FirstName     string `db:"first_name"`
	LastName      string `db:"last_name"`
	IsApproved    bool   `db:"is_approved"`
	IsAdmin       bool   `db:"is_admin"` // informational, privilege is always checked live
	WarningsCount int    `db:"warnings_count"`
	JoinedAt      int64  `db:"joined_at"`
}

// Ref returns the user identity stored on the member row.
func (m Member) Ref() UserRef {
	return UserRef{ID: m.UserID, Username: m.Username, FirstName: m.FirstName, LastName: m.LastName}
}

// Warning is an append-only audit record of a /warn decision.
type Warning struct {
	ID       int64  `db:"id"`
	GroupID  string `db:"group_id"`
	UserID   string `db:"user_id"`
	Reason   string `db:"reason"`
	IssuedBy string `db:"issued_by"`
	IssuedAt int64  `db:"issued_at"`
	EventID  string `db:"event_id"`
	// TriggeredBan marks the warning that reached the threshold.
	TriggeredBan bool `db:"triggered_ban"`
}

// BlockedWord is a per-group literal or regex pattern.
type BlockedWord struct {
	ID      int64  `db:"id"`
	GroupID string `db:"group_id"`
	Word    string `db:"word"`
	IsRegex bool   `db:"is_regex"`
}

// MediaSetting restricts one media type in one group. No row means no restriction.
type MediaSetting struct {
	GroupID   string `db:"group_id"`
	MediaType string `db:"media_type"`
	Allowed   bool   `db:"allowed"`
	AdminOnly bool   `db:"admin_only"`
}

// Media type tags.
const (
	MediaPhoto    = "photo"
	MediaVideo    = "video"
	MediaDocument = "document"
	MediaAudio    = "audio"
	MediaVoice    = "voice"
	MediaSticker  = "sticker"
	MediaGIF      = "gif"
)

// MediaTypes lists every tag accepted by the media command.
var MediaTypes = []string{MediaPhoto, MediaVideo, MediaDocument, MediaAudio, MediaVoice, MediaSticker, MediaGIF}

// IsMediaType reports whether t is a known media tag.
func IsMediaType(t string) bool {
	for _, m := range MediaTypes {
		if m == t {
			return true
		}
	}
	return false
}

// WarnResult is what the store reports after recording a warning.
type WarnResult struct {
	Count     int  // count after the increment, before any reset
	Banned    bool // the threshold was reached and the counter was reset, also on a duplicate of that warning
	Duplicate bool // the event had already been recorded
}
