package flood

import (
	"context"
	"fmt"
	"time"

	"guardbot/model"
	"guardbot/utils"
)

type Verdict int

const (
	Normal Verdict = iota
	Flood
)

func (v Verdict) String() string {
	if v == Flood {
		return "flood"
	}
	return "normal"
}

// Store keeps one sliding window per key. Observe counts a message at now and
// classifies it. A window older than window is reset before counting, and a
// window that reaches limit is reset as it fires so one burst mutes once.
type Store interface {
	Observe(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Verdict, error)
}

// Detector applies the configured thresholds to a window store.
type Detector struct {
	store        Store
	limit        int
	window       time.Duration
	muteDuration time.Duration
}

func NewDetector(store Store, cfg model.ModerationConfig) *Detector {
	return &Detector{
		store:        store,
		limit:        cfg.FloodLimit,
		window:       cfg.FloodWindow,
		muteDuration: cfg.FloodMuteDuration,
	}
}

// Key is the window key of a member.
func Key(groupID, userID string) string {
	return groupID + "/" + userID
}

// Observe counts one message from userID in groupID.
func (d *Detector) Observe(ctx context.Context, groupID, userID string, now time.Time) (Verdict, error) {
	v, err := d.store.Observe(ctx, Key(groupID, userID), now, d.limit, d.window)
	if err != nil {
		return Normal, model.TransientStoreError("failed to update flood window", fmt.Errorf("%s/%s: %w", groupID, userID, err))
	}
	return v, nil
}

// MuteDecision is the escalation for a Flood verdict.
func (d *Detector) MuteDecision(target model.Target, sender model.UserRef) model.Decision {
	return model.Decision{
		Kind:     model.DeleteAndMute,
		Target:   target,
		Reason:   "flooding",
		Rule:     model.RuleFlood,
		Duration: d.muteDuration,
		Text:     fmt.Sprintf("🚫 {mention} has been muted for %s due to flooding.", utils.FormatDuration(d.muteDuration)),
		Mention:  &sender,
		Notify:   true,
	}
}

// Window returns the configured window length.
func (d *Detector) Window() time.Duration {
	return d.window
}
