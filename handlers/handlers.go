package handlers

import (
	"guardbot/bot"
	"guardbot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Register wires the gateway events into the bot's engine.
func Register(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.Log().Info("Logged in", zap.String("user", r.User.Username))
		b.LogStartup(r.User.Username)
	})
	b.Session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		go b.RefreshCommands(g.ID)
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if ev, ok := MessageEvent(m.Message, guildTitle(s, m.GuildID)); ok {
			b.Submit(ev)
		}
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if ev, ok := JoinEvent(m.Member, systemChannel(s, m.GuildID), guildTitle(s, m.GuildID)); ok {
			b.Submit(ev)
		}
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
		if ev, ok := LeaveEvent(m.Member, systemChannel(s, m.GuildID), guildTitle(s, m.GuildID)); ok {
			b.Submit(ev)
		}
	})
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		handleInteractionCreate(s, i, b)
	})
}

func handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		ev, ok := CommandInteractionEvent(i.Interaction, guildTitle(s, i.GuildID))
		if !ok {
			return
		}
		// results are posted in the channel, the interaction only needs an answer
		if err := utils.SendSimpleResponse(s, i, "⏳ Working on it..."); err != nil {
			b.Log().Warn("failed to acknowledge command", zap.String("command", ev.Command.Name), zap.Error(err))
		}
		b.Submit(ev)
	case discordgo.InteractionMessageComponent:
		ev, ok := ButtonEvent(i.Interaction, guildTitle(s, i.GuildID))
		if !ok {
			return
		}
		if err := utils.DeferUpdate(s, i); err != nil {
			b.Log().Warn("failed to acknowledge button", zap.Error(err))
		}
		b.Submit(ev)
	}
}

func guildTitle(s *discordgo.Session, guildID string) string {
	if g, err := s.State.Guild(guildID); err == nil {
		return g.Name
	}
	return ""
}

// systemChannel is where join and leave replies go. Empty lets the platform
// adapter resolve it.
func systemChannel(s *discordgo.Session, guildID string) string {
	if g, err := s.State.Guild(guildID); err == nil {
		return g.SystemChannelID
	}
	return ""
}
