package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guardbot/dispatch"
	"guardbot/model"
	"guardbot/utils"
	"guardbot/utils/logger"

	"go.uber.org/zap"
)

// Store is the member state the machine owns.
type Store interface {
	model.MemberStore
}

const (
	textOnlyAdmins      = "❌ Only admins can use this command."
	textUserNotFound    = "❌ User not found in database."
	textNoReason        = "No reason provided"
	textVerified        = "✅ Verification successful! You can now chat in the group."
	textAlreadyVerified = "✅ You are already verified."
	textNotForYou       = "❌ This button is not for you."
	textInvalidButton   = "❌ This verification button is no longer valid."
)

// Machine drives the admission and warning lifecycle of members. Callers
// serialise calls per (group, user).
type Machine struct {
	store  Store
	admins model.AdminChecker
	cfg    model.ModerationConfig
	log    *zap.Logger
}

func New(store Store, admins model.AdminChecker, cfg model.ModerationConfig) *Machine {
	return &Machine{
		store:  store,
		admins: admins,
		cfg:    cfg,
		log:    logger.Named("moderation"),
	}
}

// RequireAdmin asks the platform, every time, whether userID administers the group.
func (m *Machine) RequireAdmin(ctx context.Context, groupID, userID string) error {
	ok, err := m.admins.IsAdmin(ctx, groupID, userID)
	if err != nil {
		return model.PlatformError("❌ Could not check admin rights", err)
	}
	if !ok {
		return model.PermissionDenied(textOnlyAdmins)
	}
	return nil
}

// Join records a new member and emits the verification prompt, the approval
// notice or the welcome message depending on the group's flags.
func (m *Machine) Join(ctx context.Context, g model.Group, t model.Target, user model.UserRef, now time.Time) ([]model.Decision, error) {
	gated := g.CaptchaEnabled || g.ApprovalMode
	member := model.Member{
		GroupID:    g.ChatID,
		UserID:     user.ID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		IsApproved: !gated,
		JoinedAt:   now.Unix(),
	}
	if err := m.store.UpsertMember(ctx, member); err != nil {
		return nil, err
	}

	var lines []string
	if g.WelcomeEnabled {
		lines = append(lines, "Welcome {mention} to the group!")
	}

	reply := model.Decision{Kind: model.Reply, Target: t, Mention: &user}
	switch {
	case g.ApprovalMode:
		lines = append(lines, "You're in approval mode. An admin will need to approve you before you can chat.")
	case g.CaptchaEnabled:
		lines = append(lines, "{mention}, please verify you're human by clicking the button below:")
		reply.Buttons = []model.Button{{Label: "I'm human!", Payload: model.CaptchaPayload(user.ID)}}
	}
	if len(lines) == 0 {
		return nil, nil
	}
	reply.Text = strings.Join(lines, "\n\n")
	return []model.Decision{reply}, nil
}

// Leave keeps the member row so warnings survive a rejoin.
func (m *Machine) Leave(ctx context.Context, g model.Group, t model.Target, user model.UserRef) ([]model.Decision, error) {
	if !g.GoodbyeEnabled {
		return nil, nil
	}
	return []model.Decision{{
		Kind:    model.Reply,
		Target:  t,
		Text:    "Goodbye {name}! We'll miss you!",
		Mention: &user,
	}}, nil
}

// VerifyCaptcha approves the member bound to payload, but only when the
// clicking user is that member.
func (m *Machine) VerifyCaptcha(ctx context.Context, g model.Group, t model.Target, clicker model.UserRef, payload string) ([]model.Decision, error) {
	targetID, ok := model.ParseCaptchaPayload(payload)
	if !ok {
		return []model.Decision{ephemeral(t, textInvalidButton)}, nil
	}
	if targetID != clicker.ID {
		return []model.Decision{ephemeral(t, textNotForYou)}, nil
	}

	member, err := m.store.GetMember(ctx, g.ChatID, targetID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return []model.Decision{ephemeral(t, textInvalidButton)}, nil
	}
	// Approve lifts restrictions, which would also end an active mute.
	if member.IsApproved {
		return []model.Decision{ephemeral(t, textAlreadyVerified)}, nil
	}
	if err := m.store.SetApproved(ctx, g.ChatID, targetID, true); err != nil {
		return nil, err
	}

	target := t
	target.UserID = targetID
	return []model.Decision{{
		Kind:          model.Approve,
		Target:        target,
		EditMessageID: t.MessageID,
		Text:          textVerified,
		Mention:       &clicker,
	}}, nil
}

// Approve lets an admin clear a pending member.
func (m *Machine) Approve(ctx context.Context, g model.Group, t model.Target, admin model.UserRef, target *model.UserRef) ([]model.Decision, error) {
	if err := m.RequireAdmin(ctx, g.ChatID, admin.ID); err != nil {
		return nil, err
	}
	if target == nil {
		return reply(t, "❌ Please reply to the user's message or mention them to approve them."), nil
	}
	member, err := m.store.GetMember(ctx, g.ChatID, target.ID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return reply(t, textUserNotFound), nil
	}
	if member.IsApproved {
		return []model.Decision{{
			Kind:    model.Reply,
			Target:  t,
			Text:    "ℹ️ {mention} is already approved.",
			Mention: target,
		}}, nil
	}
	if err := m.store.SetApproved(ctx, g.ChatID, target.ID, true); err != nil {
		return nil, err
	}

	dt := t
	dt.UserID = target.ID
	return []model.Decision{{
		Kind:    model.Approve,
		Target:  dt,
		Text:    "✅ {mention} has been approved and can now chat.",
		Mention: target,
	}}, nil
}

// Warn records a warning. Reaching the threshold bans the member and resets
// the counter in the same store transaction.
func (m *Machine) Warn(ctx context.Context, g model.Group, t model.Target, admin model.UserRef, target *model.UserRef, reason, eventID string, now time.Time) ([]model.Decision, error) {
	if err := m.RequireAdmin(ctx, g.ChatID, admin.ID); err != nil {
		return nil, err
	}
	if target == nil {
		return reply(t, "❌ Please reply to the user's message or mention them to warn them."), nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = textNoReason
	}

	member, err := m.store.GetMember(ctx, g.ChatID, target.ID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return reply(t, textUserNotFound), nil
	}

	res, err := m.store.AddWarning(ctx, model.Warning{
		GroupID:  g.ChatID,
		UserID:   target.ID,
		Reason:   reason,
		IssuedBy: admin.ID,
		IssuedAt: now.Unix(),
		EventID:  eventID,
	}, m.cfg.MaxWarnings)
	if model.IsKind(err, model.KindNotFound) {
		return reply(t, textUserNotFound), nil
	}
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		m.log.Debug("warning already recorded", zap.String("group", g.ChatID), zap.String("user", target.ID),
			zap.String("event_id", eventID), zap.Bool("triggered_ban", res.Banned))
		// The ban of a threshold warning may not have reached the platform.
		if !res.Banned {
			return nil, nil
		}
	}

	dt := t
	dt.UserID = target.ID
	if res.Banned {
		return []model.Decision{{
			Kind:     model.Ban,
			Target:   dt,
			Reason:   reason,
			Rule:     model.RuleWarnings,
			Duration: m.cfg.WarnBanDuration,
			Text:     fmt.Sprintf("🚫 User {mention} has been banned for reaching %d warnings.", m.cfg.MaxWarnings),
			Mention:  target,
			Notify:   true,
		}}, nil
	}

	left := m.cfg.MaxWarnings - res.Count
	return []model.Decision{{
		Kind:   model.Reply,
		Target: dt,
		Reason: reason,
		Text: fmt.Sprintf("⚠️ Warning issued to {mention}.\nReason: {reason}\nWarnings: %d/%d\n%d warnings left before ban.",
			res.Count, m.cfg.MaxWarnings, left),
		Mention: target,
	}}, nil
}

// ResetWarnings sets a member's counter back to zero.
func (m *Machine) ResetWarnings(ctx context.Context, g model.Group, t model.Target, admin model.UserRef, target *model.UserRef) ([]model.Decision, error) {
	if err := m.RequireAdmin(ctx, g.ChatID, admin.ID); err != nil {
		return nil, err
	}
	if target == nil {
		return reply(t, "❌ Please reply to the user's message or mention them to reset their warnings."), nil
	}
	err := m.store.ResetWarnings(ctx, g.ChatID, target.ID)
	if model.IsKind(err, model.KindNotFound) {
		return reply(t, textUserNotFound), nil
	}
	if err != nil {
		return nil, err
	}
	return []model.Decision{{
		Kind:    model.Reply,
		Target:  t,
		Text:    "✅ Warnings for {mention} have been reset.",
		Mention: target,
	}}, nil
}

// Info describes a member. Anyone may ask; without a target it describes the requester.
func (m *Machine) Info(ctx context.Context, g model.Group, t model.Target, requester model.UserRef, target *model.UserRef) ([]model.Decision, error) {
	subject := requester
	if target != nil {
		subject = *target
	}
	member, err := m.store.GetMember(ctx, g.ChatID, subject.ID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return reply(t, textUserNotFound), nil
	}

	ref := member.Ref()
	status := "Pending Approval"
	if member.IsApproved {
		status = "Approved"
	}
	username := "@{username}"
	if ref.Username == "" {
		username = "N/A"
	}
	text := fmt.Sprintf("👤 User Info:\nName: {name}\nUsername: %s\nUser ID: %s\nWarnings: %d/%d\nJoined: %s\nStatus: %s",
		username, ref.ID, member.WarningsCount, m.cfg.MaxWarnings,
		time.Unix(member.JoinedAt, 0).Format("2006-01-02 15:04"), status)
	return []model.Decision{{Kind: model.Reply, Target: t, Text: text, Mention: &ref}}, nil
}

// recentWarnings is how many audit rows /warnings shows.
const recentWarnings = 5

// Warnings lists a member's current counter and latest warnings. Anyone may
// ask; without a target it describes the requester.
func (m *Machine) Warnings(ctx context.Context, g model.Group, t model.Target, requester model.UserRef, target *model.UserRef) ([]model.Decision, error) {
	subject := requester
	if target != nil {
		subject = *target
	}
	member, err := m.store.GetMember(ctx, g.ChatID, subject.ID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return reply(t, textUserNotFound), nil
	}
	total, err := m.store.CountWarnings(ctx, g.ChatID, subject.ID)
	if err != nil {
		return nil, err
	}
	records, err := m.store.ListWarnings(ctx, g.ChatID, subject.ID, recentWarnings)
	if err != nil {
		return nil, err
	}

	ref := member.Ref()
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Warnings for {name}: %d/%d", member.WarningsCount, m.cfg.MaxWarnings)
	if total == 0 {
		sb.WriteString("\nNo warnings recorded.")
	} else {
		fmt.Fprintf(&sb, "\nRecorded in total: %d", total)
		for _, w := range records {
			// reasons are user input, the template itself is trusted
			fmt.Fprintf(&sb, "\n• %s: %s", time.Unix(w.IssuedAt, 0).Format("2006-01-02 15:04"), dispatch.Escape(w.Reason))
			if w.TriggeredBan {
				sb.WriteString(" (ban)")
			}
		}
	}
	return []model.Decision{{Kind: model.Reply, Target: t, Text: sb.String(), Mention: &ref}}, nil
}

// Mute restricts a member for duration on an admin's request.
func (m *Machine) Mute(ctx context.Context, g model.Group, t model.Target, admin model.UserRef, target *model.UserRef, duration time.Duration, reason string) ([]model.Decision, error) {
	if err := m.RequireAdmin(ctx, g.ChatID, admin.ID); err != nil {
		return nil, err
	}
	if target == nil {
		return reply(t, "❌ Usage: /mute @user <duration> [reason]"), nil
	}
	if duration <= 0 {
		duration = m.cfg.FloodMuteDuration
	}
	if strings.TrimSpace(reason) == "" {
		reason = textNoReason
	}
	dt := t
	dt.UserID = target.ID
	dt.MessageID = "" // the command message stays
	return []model.Decision{{
		Kind:     model.DeleteAndMute,
		Target:   dt,
		Reason:   reason,
		Rule:     model.RuleManual,
		Duration: duration,
		Text:     fmt.Sprintf("🔇 {mention} has been muted for %s.\nReason: {reason}", utils.FormatDuration(duration)),
		Mention:  target,
		Notify:   true,
	}}, nil
}

// Ban removes a member on an admin's request.
func (m *Machine) Ban(ctx context.Context, g model.Group, t model.Target, admin model.UserRef, target *model.UserRef, reason string) ([]model.Decision, error) {
	if err := m.RequireAdmin(ctx, g.ChatID, admin.ID); err != nil {
		return nil, err
	}
	if target == nil {
		return reply(t, "❌ Usage: /ban @user [reason]"), nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = textNoReason
	}
	dt := t
	dt.UserID = target.ID
	return []model.Decision{{
		Kind:    model.Ban,
		Target:  dt,
		Reason:  reason,
		Rule:    model.RuleManual,
		Text:    "🚫 {mention} has been banned.\nReason: {reason}",
		Mention: target,
		Notify:  true,
	}}, nil
}

// PostingGate deletes messages from members still waiting for captcha or approval.
func (m *Machine) PostingGate(ctx context.Context, g model.Group, t model.Target, sender model.UserRef, senderIsAdmin bool) (model.Decision, error) {
	if senderIsAdmin || !(g.CaptchaEnabled || g.ApprovalMode) {
		return model.AllowDecision(), nil
	}
	member, err := m.store.GetMember(ctx, g.ChatID, sender.ID)
	if err != nil {
		return model.Decision{}, err
	}
	if member == nil || member.IsApproved {
		return model.AllowDecision(), nil
	}
	return model.Decision{
		Kind:      model.DeleteAndWarn,
		Target:    t,
		Reason:    "pending approval",
		Rule:      model.RuleApproval,
		Text:      "⏳ {mention}, you need to be verified or approved before you can chat.",
		Mention:   &sender,
		Ephemeral: true,
	}, nil
}

func reply(t model.Target, text string) []model.Decision {
	return []model.Decision{model.ReplyDecision(t, text)}
}

func ephemeral(t model.Target, text string) model.Decision {
	d := model.ReplyDecision(t, text)
	d.Ephemeral = true
	return d
}
