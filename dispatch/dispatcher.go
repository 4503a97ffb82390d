package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"guardbot/model"
	"guardbot/utils"
	"guardbot/utils/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Options configures a Dispatcher.
type Options struct {
	NoticeTTL  time.Duration // lifetime of ephemeral notices
	DedupeSize int
	DedupeTTL  time.Duration
	Auditor    Auditor
	Now        func() time.Time
}

// Dispatcher turns decisions into idempotent platform calls.
type Dispatcher struct {
	platform Platform
	opts     Options
	applied  *expirable.LRU[string, struct{}]
	log      *zap.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(platform Platform, opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 10000
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 10 * time.Minute
	}
	return &Dispatcher{
		platform: platform,
		opts:     opts,
		applied:  expirable.NewLRU[string, struct{}](opts.DedupeSize, nil, opts.DedupeTTL),
		log:      logger.Named("dispatch"),
		timers:   make(map[*time.Timer]struct{}),
	}
}

// Apply performs the platform calls of d. A decision whose ID was already
// applied is skipped. Platform refusals come back as model.PlatformError and
// are never retried here.
func (x *Dispatcher) Apply(ctx context.Context, d model.Decision) error {
	if d.Kind == model.Allow {
		return nil
	}
	if d.ID != "" {
		if _, ok := x.applied.Get(d.ID); ok {
			return nil
		}
	}

	var err error
	switch d.Kind {
	case model.DeleteAndWarn:
		err = x.deleteAndWarn(ctx, d)
	case model.DeleteAndMute:
		err = x.deleteAndMute(ctx, d)
	case model.Ban:
		err = x.ban(ctx, d)
	case model.Approve:
		err = x.approve(ctx, d)
	case model.Reply:
		err = x.reply(ctx, d)
	default:
		err = fmt.Errorf("unknown decision kind %d", d.Kind)
	}
	if err != nil {
		return err
	}

	if d.ID != "" {
		x.applied.Add(d.ID, struct{}{})
	}
	decisionsApplied.WithLabelValues(d.Kind.String()).Inc()
	return nil
}

// SetChatPermissions changes the default permissions of a group.
func (x *Dispatcher) SetChatPermissions(ctx context.Context, groupID string, perms model.Permissions) error {
	if err := x.platform.SetChatPermissions(ctx, groupID, perms); err != nil {
		return x.platformError("set_permissions", "❌ Could not change group permissions", err)
	}
	return nil
}

// IsAdmin asks the platform whether userID administers groupID. Answers are
// never cached.
func (x *Dispatcher) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	if r, ok := x.platform.(AdminResolver); ok {
		return r.IsAdministrator(ctx, groupID, userID)
	}
	admins, err := x.platform.GetAdministrators(ctx, groupID)
	if err != nil {
		return false, err
	}
	for _, id := range admins {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (x *Dispatcher) deleteAndWarn(ctx context.Context, d model.Decision) error {
	if err := x.deleteMessage(ctx, d.Target); err != nil {
		return err
	}
	return x.reply(ctx, withoutMessage(d))
}

func (x *Dispatcher) deleteAndMute(ctx context.Context, d model.Decision) error {
	if err := x.deleteMessage(ctx, d.Target); err != nil {
		return err
	}
	until := x.opts.Now().Add(d.Duration)
	err := x.platform.RestrictMember(ctx, d.Target.GroupID, d.Target.UserID, model.MutedPermissions, until)
	if err != nil && !errors.Is(err, model.ErrAlreadyApplied) {
		return x.platformError("restrict", "❌ Failed to mute user", err)
	}
	x.audit(ctx, d)
	x.notify(ctx, d, fmt.Sprintf("🔇 You have been muted for %s.\nReason: %s", utils.FormatDuration(d.Duration), d.Reason))
	return x.reply(ctx, withoutMessage(d))
}

func (x *Dispatcher) ban(ctx context.Context, d model.Decision) error {
	var until time.Time
	if d.Duration > 0 {
		until = x.opts.Now().Add(d.Duration)
	}
	// The member is told before the ban closes the shared server.
	x.notify(ctx, d, fmt.Sprintf("🚫 You have been banned.\nReason: %s", d.Reason))
	err := x.platform.BanMember(ctx, d.Target.GroupID, d.Target.UserID, until, d.Reason)
	if err != nil && !errors.Is(err, model.ErrAlreadyApplied) {
		return x.platformError("ban", "❌ Failed to ban user", err)
	}
	x.audit(ctx, d)
	return x.reply(ctx, d)
}

func (x *Dispatcher) approve(ctx context.Context, d model.Decision) error {
	err := x.platform.RestrictMember(ctx, d.Target.GroupID, d.Target.UserID, model.OpenPermissions, time.Time{})
	if err != nil && !errors.Is(err, model.ErrAlreadyApplied) && !errors.Is(err, model.ErrGone) {
		return x.platformError("restrict", "❌ Failed to approve user", err)
	}
	if d.Text == "" {
		return nil
	}
	if d.EditMessageID != "" {
		msg := Render(d)
		err := x.platform.EditMessage(ctx, d.Target.GroupID, d.Target.ChannelID, d.EditMessageID, msg.Text)
		if err == nil || errors.Is(err, model.ErrGone) {
			return nil
		}
		return x.platformError("edit", "❌ Failed to update message", err)
	}
	return x.reply(ctx, d)
}

func (x *Dispatcher) reply(ctx context.Context, d model.Decision) error {
	if d.Text == "" {
		return nil
	}
	msg := Render(d)
	if d.Ephemeral {
		// A missing notice only costs the user a hint.
		msg.ReplyTo = ""
	}
	id, err := x.platform.SendReply(ctx, msg)
	if err != nil {
		if d.Ephemeral {
			x.log.Debug("ephemeral notice not sent", zap.String("group", d.Target.GroupID), zap.Error(err))
			return nil
		}
		return x.platformError("reply", "❌ Failed to send reply", err)
	}
	if d.Ephemeral && id != "" && x.opts.NoticeTTL > 0 {
		x.scheduleDelete(d.Target.GroupID, d.Target.ChannelID, id)
	}
	return nil
}

func (x *Dispatcher) deleteMessage(ctx context.Context, t model.Target) error {
	if t.MessageID == "" {
		return nil
	}
	err := x.platform.DeleteMessage(ctx, t.GroupID, t.ChannelID, t.MessageID)
	if err != nil && !errors.Is(err, model.ErrGone) {
		return x.platformError("delete", "❌ Failed to delete message", err)
	}
	return nil
}

// withoutMessage drops the reply reference to a message that was just deleted.
func withoutMessage(d model.Decision) model.Decision {
	d.Target.MessageID = ""
	return d
}

func (x *Dispatcher) notify(ctx context.Context, d model.Decision, text string) {
	if !d.Notify || d.Target.UserID == "" {
		return
	}
	dm, ok := x.platform.(DirectMessenger)
	if !ok {
		return
	}
	if err := dm.SendDirect(ctx, d.Target.UserID, text); err != nil {
		x.log.Debug("direct message not delivered", zap.String("user", d.Target.UserID), zap.Error(err))
	}
}

func (x *Dispatcher) audit(ctx context.Context, d model.Decision) {
	if x.opts.Auditor != nil {
		x.opts.Auditor.Audit(ctx, d)
	}
}

func (x *Dispatcher) platformError(action, message string, err error) error {
	platformErrors.WithLabelValues(action).Inc()
	return model.PlatformError(message, err)
}

// scheduleDelete removes an ephemeral notice after NoticeTTL. A notice that is
// already gone is ignored.
func (x *Dispatcher) scheduleDelete(groupID, channelID, messageID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return
	}

	var t *time.Timer
	x.wg.Add(1)
	t = time.AfterFunc(x.opts.NoticeTTL, func() {
		defer x.wg.Done()
		x.mu.Lock()
		delete(x.timers, t)
		x.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := x.platform.DeleteMessage(ctx, groupID, channelID, messageID)
		if err != nil && !errors.Is(err, model.ErrGone) {
			x.log.Debug("failed to delete notice", zap.String("group", groupID), zap.String("message", messageID), zap.Error(err))
		}
	})
	x.timers[t] = struct{}{}
}

// Close cancels pending notice deletions and waits for running ones.
func (x *Dispatcher) Close() {
	x.mu.Lock()
	x.closed = true
	for t := range x.timers {
		if t.Stop() {
			x.wg.Done()
		}
		delete(x.timers, t)
	}
	x.mu.Unlock()
	x.wg.Wait()
}

// Pending returns the number of scheduled notice deletions.
func (x *Dispatcher) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.timers)
}
