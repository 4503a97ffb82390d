package utils

import (
	"context"
	"fmt"
	"time"

	"guardbot/model"

	"github.com/bwmarrin/discordgo"
)

type LogLevel string

const (
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

func getColor(level LogLevel) int {
	switch level {
	case Info:
		return 3066993 // Green
	case Warn:
		return 15105570 // Orange
	case Error:
		return 15158332 // Red
	default:
		return 3447003 // Blue
	}
}

// EmbedSender is the part of *discordgo.Session the mod log needs.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ModLog posts operational and moderation events to a log channel. A zero
// channel id disables it.
type ModLog struct {
	sender    EmbedSender
	channelID string
}

func NewModLog(sender EmbedSender, channelID string) *ModLog {
	return &ModLog{sender: sender, channelID: channelID}
}

func (l *ModLog) send(ctx context.Context, embed *discordgo.MessageEmbed) error {
	if l == nil || l.channelID == "" {
		return nil
	}
	_, err := l.sender.ChannelMessageSendEmbed(l.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send log embed: %w", err)
	}
	return nil
}

func (l *ModLog) sendLog(level LogLevel, module, operation, extraInfo string) error {
	embed := &discordgo.MessageEmbed{
		Title: string(level) + " Log",
		Color: getColor(level),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Module", Value: field(module)},
			{Name: "Operation", Value: field(operation)},
			{Name: "Details", Value: field(extraInfo)},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	return l.send(context.Background(), embed)
}

func (l *ModLog) LogInfo(module, operation, extraInfo string) error {
	return l.sendLog(Info, module, operation, extraInfo)
}

func (l *ModLog) LogWarn(module, operation, extraInfo string) error {
	return l.sendLog(Warn, module, operation, extraInfo)
}

func (l *ModLog) LogError(module, operation, extraInfo string) error {
	return l.sendLog(Error, module, operation, extraInfo)
}

// Audit records a ban or mute that was applied.
func (l *ModLog) Audit(ctx context.Context, d model.Decision) {
	title := "🔨 Member banned"
	level := Error
	if d.Kind == model.DeleteAndMute {
		title = "🔇 Member muted"
		level = Warn
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Group", Value: field(d.Target.GroupID), Inline: true},
		{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", d.Target.UserID, d.Target.UserID), Inline: true},
		{Name: "Rule", Value: field(d.Rule), Inline: true},
		{Name: "Reason", Value: field(d.Reason)},
	}
	switch {
	case d.Duration > 0:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: FormatDuration(d.Duration), Inline: true})
	case d.Kind == model.Ban:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: "permanent", Inline: true})
	}
	embed := &discordgo.MessageEmbed{
		Title:     title,
		Color:     getColor(level),
		Fields:    fields,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	// the decision already happened, a lost log line is not worth failing it
	_ = l.send(ctx, embed)
}

// field keeps embed values inside Discord's 1024 character limit and non-empty.
func field(v string) string {
	if v == "" {
		return "-"
	}
	r := []rune(v)
	if len(r) > 1024 {
		return string(r[:1021]) + "..."
	}
	return v
}
