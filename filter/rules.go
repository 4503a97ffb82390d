package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"guardbot/model"
	"guardbot/utils"
)

// Pattern is a blocked word ready for evaluation. Re is set for regex entries.
type Pattern struct {
	Word    string
	IsRegex bool
	Re      *regexp.Regexp
}

// RuleSet is everything Evaluate needs to judge one message in one group.
type RuleSet struct {
	Group        model.Group
	Patterns     []Pattern
	BannedLinks  []string // lower-cased
	Media        map[string]model.MediaSetting
	Action       string // model.FilterActionWarn or model.FilterActionMute
	MuteDuration time.Duration
	NightPolicy  string
}

// Message is the part of an inbound message the filter looks at.
type Message struct {
	Target    model.Target
	Sender    model.UserRef
	Text      string
	MediaType string
}

// ValidatePattern checks a pattern before it is stored and returns the compiled
// form for regex entries.
func ValidatePattern(pattern string, isRegex bool) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, model.ConfigError("❌ Pattern must not be empty.", nil)
	}
	if !isRegex {
		return nil, nil
	}
	re, err := compile(pattern)
	if err != nil {
		return nil, model.ConfigError("❌ Invalid regex pattern.", err)
	}
	return re, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// Evaluate judges a message against a rule set. Order is fixed and the first
// match wins: blocked words, banned links, media restrictions, night mode.
func Evaluate(rs RuleSet, msg Message, senderIsAdmin bool, now time.Time) model.Decision {
	if senderIsAdmin {
		return model.AllowDecision()
	}

	text := strings.ToLower(msg.Text)
	if text != "" {
		for _, p := range rs.Patterns {
			if p.matches(text) {
				return rs.reject(msg, model.RuleBlockedWord, "blocked content", "🚫 {mention}, your message contained blocked content.")
			}
		}
		for _, link := range rs.BannedLinks {
			if link != "" && strings.Contains(text, link) {
				return rs.reject(msg, model.RuleBannedLink, "banned link", "🚫 {mention}, banned links are not allowed.")
			}
		}
	}

	if msg.MediaType != "" {
		if setting, ok := rs.Media[msg.MediaType]; ok && (!setting.Allowed || setting.AdminOnly) {
			return rs.reject(msg, model.RuleMedia, "media type not allowed", "🚫 {mention}, this type of media is not allowed.")
		}
	}

	if rs.Group.NightModeEnabled && InNightWindow(rs.Group.NightModeStart, rs.Group.NightModeEnd, now) {
		switch rs.NightPolicy {
		case model.NightModeDeleteAll:
			return rs.reject(msg, model.RuleNightMode, "night mode", "🌙 {mention}, night mode is active. Messages are not allowed right now.")
		case model.NightModeDeleteMedia:
			if msg.MediaType != "" {
				return rs.reject(msg, model.RuleNightMode, "night mode", "🌙 {mention}, night mode is active. Media is not allowed right now.")
			}
		}
	}

	return model.AllowDecision()
}

func (p Pattern) matches(lowered string) bool {
	if p.IsRegex {
		return p.Re != nil && p.Re.MatchString(lowered)
	}
	return p.Word != "" && strings.Contains(lowered, strings.ToLower(p.Word))
}

func (rs RuleSet) reject(msg Message, rule, reason, text string) model.Decision {
	sender := msg.Sender
	d := model.Decision{
		Kind:    model.DeleteAndWarn,
		Target:  msg.Target,
		Reason:  reason,
		Rule:    rule,
		Text:    text,
		Mention: &sender,
	}
	if rs.Action == model.FilterActionMute && rs.MuteDuration > 0 {
		d.Kind = model.DeleteAndMute
		d.Duration = rs.MuteDuration
		d.Text = fmt.Sprintf("🔇 {mention} has been muted for %s: {reason}.", utils.FormatDuration(rs.MuteDuration))
		d.Notify = true
		return d
	}
	d.Ephemeral = true
	return d
}

// InNightWindow reports whether the time of day of now lies in [start, end).
// The window wraps past midnight when end is before start. Equal or malformed
// bounds mean no window.
func InNightWindow(start, end string, now time.Time) bool {
	s, ok := ParseClock(start)
	if !ok {
		return false
	}
	e, ok := ParseClock(end)
	if !ok || s == e {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if s < e {
		return cur >= s && cur < e
	}
	return cur >= s || cur < e
}

// ParseClock parses HH:MM into minutes after midnight.
func ParseClock(v string) (int, bool) {
	h, m, found := strings.Cut(strings.TrimSpace(v), ":")
	if !found {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return 0, false
	}
	return hour*60 + minute, true
}
