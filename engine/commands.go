package engine

import (
	"context"
	"fmt"
	"strings"

	"guardbot/commands"
	"guardbot/dispatch"
	"guardbot/filter"
	"guardbot/model"
	"guardbot/utils"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type commandFunc func(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error)

func (e *Engine) commandTable() map[string]commandFunc {
	return map[string]commandFunc{
		"help":       e.cmdHelp,
		"info":       e.cmdInfo,
		"warn":       e.cmdWarn,
		"warnings":   e.cmdWarnings,
		"resetwarns": e.cmdResetWarns,
		"mute":       e.cmdMute,
		"ban":        e.cmdBan,
		"approve":    e.cmdApprove,
		"block":      e.cmdBlock,
		"unblock":    e.cmdUnblock,
		"blocklist":  e.cmdBlocklist,
		"media":      e.cmdMedia,
		"setting":    e.cmdSetting,
		"nightmode":  e.cmdNightMode,
		"lang":       e.cmdLang,
		"open":       e.cmdOpen,
		"close":      e.cmdClose,
		"tagall":     e.cmdTagAll,
		"stats":      e.cmdStats,
	}
}

// handleCommand runs one command. Rejections a user can fix are answered and
// swallowed; everything else is answered and returned for logging.
func (e *Engine) handleCommand(ctx context.Context, g model.Group, t model.Target, ev model.Event) error {
	if ev.Command == nil {
		return nil
	}
	h, ok := e.commands[ev.Command.Name]
	if !ok {
		e.eventLogger(ev).Debug("unknown command", zap.String("command", ev.Command.Name))
		return nil
	}

	decisions, err := h(ctx, g, t, ev)
	if err != nil {
		e.replyError(ctx, ev, t, err)
		switch model.KindOf(err) {
		case model.KindPermissionDenied, model.KindConfig, model.KindNotFound:
			e.eventLogger(ev).Debug("command rejected", zap.String("command", ev.Command.Name), zap.Error(err))
			return nil
		}
		return err
	}
	return e.apply(ctx, ev, t, decisions, true)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func usage(name string) error {
	entry, _ := commands.Lookup(name)
	return model.ConfigError("❌ Usage: "+entry.Usage, nil)
}

func (e *Engine) cmdHelp(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	return []model.Decision{model.ReplyDecision(t, commands.HelpText())}, nil
}

func (e *Engine) cmdInfo(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	return e.Machine.Info(ctx, g, t, ev.User, ev.Command.Target)
}

func (e *Engine) cmdWarn(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	return e.Machine.Warn(ctx, g, t, ev.User, ev.Command.Target, joinArgs(ev.Command.Args), ev.ID, ev.Timestamp)
}

func (e *Engine) cmdWarnings(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	return e.Machine.Warnings(ctx, g, t, ev.User, ev.Command.Target)
}

func (e *Engine) cmdResetWarns(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	return e.Machine.ResetWarnings(ctx, g, t, ev.User, ev.Command.Target)
}

func (e *Engine) cmdMute(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	args := ev.Command.Args
	duration := e.cfg.FloodMuteDuration
	if len(args) > 0 {
		if d, err := utils.ParseDuration(args[0]); err == nil {
			duration = d
			args = args[1:]
		}
	}
	return e.Machine.Mute(ctx, g, t, ev.User, ev.Command.Target, duration, joinArgs(args))
}

func (e *Engine) cmdBan(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	return e.Machine.Ban(ctx, g, t, ev.User, ev.Command.Target, joinArgs(ev.Command.Args))
}

func (e *Engine) cmdApprove(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	return e.Machine.Approve(ctx, g, t, ev.User, ev.Command.Target)
}

func (e *Engine) cmdBlock(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	var words []string
	isRegex := false
	for _, a := range ev.Command.Args {
		if a == "--regex" {
			isRegex = true
			continue
		}
		words = append(words, a)
	}
	word := joinArgs(words)
	if word == "" {
		return nil, usage("block")
	}

	added, err := e.Filter.AddPattern(ctx, g.ChatID, word, isRegex)
	if err != nil {
		return nil, err
	}
	if !added {
		return []model.Decision{model.ReplyDecision(t, "❌ This word is already blocked.")}, nil
	}
	d := model.ReplyDecision(t, "✅ Word '{reason}' added to blocklist.")
	d.Reason = word
	return []model.Decision{d}, nil
}

func (e *Engine) cmdUnblock(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	word := joinArgs(ev.Command.Args)
	if word == "" {
		return nil, usage("unblock")
	}
	removed, err := e.Filter.RemovePattern(ctx, g.ChatID, word)
	if err != nil {
		return nil, err
	}
	if !removed {
		return []model.Decision{model.ReplyDecision(t, "❌ This word is not blocked.")}, nil
	}
	d := model.ReplyDecision(t, "✅ Word '{reason}' removed from blocklist.")
	d.Reason = word
	return []model.Decision{d}, nil
}

func (e *Engine) cmdBlocklist(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	words, err := e.Filter.Patterns(ctx, g.ChatID)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return []model.Decision{model.ReplyDecision(t, "📝 No blocked words in this group.")}, nil
	}
	var sb strings.Builder
	sb.WriteString("🚫 Blocked words:")
	for _, w := range words {
		sb.WriteString("\n• ")
		// stored words are user input
		sb.WriteString(dispatch.Escape(w.Word))
		if w.IsRegex {
			sb.WriteString(" (regex)")
		}
	}
	return []model.Decision{model.ReplyDecision(t, sb.String())}, nil
}

func (e *Engine) cmdMedia(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	args := ev.Command.Args
	if len(args) != 2 {
		return nil, usage("media")
	}
	mediaType, mode := strings.ToLower(args[0]), strings.ToLower(args[1])
	if !model.IsMediaType(mediaType) {
		return nil, model.ConfigError("❌ Unknown media type. Use one of: "+strings.Join(model.MediaTypes, ", "), nil)
	}

	setting := model.MediaSetting{GroupID: g.ChatID, MediaType: mediaType}
	var text string
	switch mode {
	case "allow":
		setting.Allowed = true
		text = fmt.Sprintf("✅ %s is now allowed for everyone.", mediaType)
	case "deny":
		text = fmt.Sprintf("🚫 %s is now blocked.", mediaType)
	case "admins":
		setting.Allowed = true
		setting.AdminOnly = true
		text = fmt.Sprintf("🛡️ %s is now limited to admins.", mediaType)
	case "clear":
		if err := e.Store.ClearMediaSetting(ctx, g.ChatID, mediaType); err != nil {
			return nil, err
		}
		return []model.Decision{model.ReplyDecision(t, fmt.Sprintf("✅ %s restriction removed.", mediaType))}, nil
	default:
		return nil, usage("media")
	}
	if err := e.Store.SetMediaSetting(ctx, setting); err != nil {
		return nil, err
	}
	return []model.Decision{model.ReplyDecision(t, text)}, nil
}

func settingFlag(g *model.Group, name string) *bool {
	switch name {
	case "welcome":
		return &g.WelcomeEnabled
	case "goodbye":
		return &g.GoodbyeEnabled
	case "captcha":
		return &g.CaptchaEnabled
	case "approval":
		return &g.ApprovalMode
	case "antiflood":
		return &g.AntiFloodEnabled
	case "nightmode":
		return &g.NightModeEnabled
	}
	return nil
}

func parseSwitch(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "on", "true", "yes", "1":
		return true, true
	case "off", "false", "no", "0":
		return false, true
	}
	return false, false
}

func (e *Engine) cmdSetting(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	args := ev.Command.Args
	if len(args) != 2 {
		return nil, usage("setting")
	}
	name := strings.ToLower(args[0])
	on, ok := parseSwitch(args[1])
	if !ok || settingFlag(&g, name) == nil {
		return nil, usage("setting")
	}

	err := e.updateGroup(ctx, g.ChatID, func(grp *model.Group) error {
		*settingFlag(grp, name) = on
		return nil
	})
	if err != nil {
		return nil, err
	}
	state := "off"
	if on {
		state = "on"
	}
	return []model.Decision{model.ReplyDecision(t, fmt.Sprintf("✅ %s is now %s.", name, state))}, nil
}

func (e *Engine) cmdNightMode(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	args := ev.Command.Args
	if len(args) == 1 && strings.EqualFold(args[0], "off") {
		err := e.updateGroup(ctx, g.ChatID, func(grp *model.Group) error {
			grp.NightModeEnabled = false
			return nil
		})
		if err != nil {
			return nil, err
		}
		return []model.Decision{model.ReplyDecision(t, "🌙 Night mode disabled.")}, nil
	}
	if len(args) != 2 {
		return nil, usage("nightmode")
	}
	start, okStart := filter.ParseClock(args[0])
	end, okEnd := filter.ParseClock(args[1])
	if !okStart || !okEnd || start == end {
		return nil, model.ConfigError("❌ Times must be HH:MM and differ, e.g. /nightmode 23:00 07:00", nil)
	}

	err := e.updateGroup(ctx, g.ChatID, func(grp *model.Group) error {
		grp.NightModeEnabled = true
		grp.NightModeStart = args[0]
		grp.NightModeEnd = args[1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []model.Decision{model.ReplyDecision(t,
		fmt.Sprintf("🌙 Night mode enabled from %s to %s (%s).", args[0], args[1], e.cfg.NightModePolicy))}, nil
}

func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func (e *Engine) cmdLang(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	code := strings.ToLower(joinArgs(ev.Command.Args))
	supported := false
	options := make([]string, 0, len(e.cfg.Languages))
	for _, l := range e.cfg.Languages {
		options = append(options, fmt.Sprintf("%s (%s)", l, languageName(l)))
		if l == code {
			supported = true
		}
	}
	if !supported {
		return nil, model.ConfigError("❌ Available languages: "+strings.Join(options, ", "), nil)
	}

	err := e.updateGroup(ctx, g.ChatID, func(grp *model.Group) error {
		grp.Language = code
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []model.Decision{model.ReplyDecision(t, fmt.Sprintf("✅ Language set to %s.", languageName(code)))}, nil
}

func (e *Engine) cmdOpen(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	if err := e.Dispatcher.SetChatPermissions(ctx, g.ChatID, model.OpenPermissions); err != nil {
		return nil, err
	}
	return []model.Decision{model.ReplyDecision(t, "🔓 Group has been opened. Everyone can send messages now.")}, nil
}

func (e *Engine) cmdClose(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	if err := e.Dispatcher.SetChatPermissions(ctx, g.ChatID, model.ClosedPermissions); err != nil {
		return nil, err
	}
	return []model.Decision{model.ReplyDecision(t, "🔒 Group has been closed. Only admins can send messages.")}, nil
}

func (e *Engine) cmdTagAll(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	admin := ev.User
	d := model.Decision{
		Kind:       model.Reply,
		Target:     t,
		Mention:    &admin,
		MentionAll: true,
		Text:       "📢 Announcement from {mention}:\n\n@everyone",
	}
	if msg := joinArgs(ev.Command.Args); msg != "" {
		d.Reason = msg
		d.Text = "📢 Announcement from {mention}:\n\n{reason}\n\n@everyone"
	}
	return []model.Decision{d}, nil
}

func (e *Engine) cmdStats(ctx context.Context, g model.Group, t model.Target, ev model.Event) ([]model.Decision, error) {
	if err := e.Machine.RequireAdmin(ctx, g.ChatID, ev.User.ID); err != nil {
		return nil, err
	}
	stats, err := e.Store.GetGroupStats(ctx, g.ChatID)
	if err != nil {
		return nil, err
	}
	lines := []string{
		"📊 Group statistics:",
		fmt.Sprintf("👥 Members: %d (%d approved)", stats.Members, stats.Approved),
		fmt.Sprintf("⚠️ Warnings issued: %d", stats.Warnings),
		fmt.Sprintf("🚫 Blocked words: %d", stats.BlockedWords),
		"",
	}
	lines = append(lines, utils.CollectSystemInfo().Lines()...)
	return []model.Decision{model.ReplyDecision(t, strings.Join(lines, "\n"))}, nil
}

// updateGroup applies fn to a fresh copy of the group under the group's
// settings lock so concurrent toggles do not overwrite each other.
func (e *Engine) updateGroup(ctx context.Context, groupID string, fn func(*model.Group) error) error {
	unlock := e.locks.Lock("settings:" + groupID)
	defer unlock()

	g, err := e.Store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return model.NotFound("❌ Group not found.")
	}
	if err := fn(g); err != nil {
		return err
	}
	return e.Store.UpdateGroup(ctx, *g)
}
