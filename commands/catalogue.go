package commands

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Entry describes one chat command. Definition doubles as the slash command
// registered with Discord.
type Entry struct {
	Usage      string
	AdminOnly  bool
	Definition *discordgo.ApplicationCommand
}

// Name is the command word without a prefix.
func (s Entry) Name() string {
	return s.Definition.Name
}

func userOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func stringOption(name, description string, required bool, choices ...string) *discordgo.ApplicationCommandOption {
	opt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
	for _, c := range choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c})
	}
	return opt
}

// Catalogue lists every command in help order.
var Catalogue = []Entry{
	{
		Usage: "/help",
		Definition: &discordgo.ApplicationCommand{
			Name:        "help",
			Description: "Show the available commands",
		},
	},
	{
		Usage: "/info [@user]",
		Definition: &discordgo.ApplicationCommand{
			Name:        "info",
			Description: "Show a member's moderation record",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to look up", false)},
		},
	},
	{
		Usage:     "/warn @user [reason]",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "warn",
			Description: "Warn a member",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.SpanishES: "Advertir a un miembro",
				discordgo.Russian:   "Предупредить участника",
				discordgo.French:    "Avertir un membre",
			},
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member to warn", true),
				stringOption("reason", "Why the member is warned", false),
			},
		},
	},
	{
		Usage: "/warnings [@user]",
		Definition: &discordgo.ApplicationCommand{
			Name:        "warnings",
			Description: "Show a member's recent warnings",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to look up", false)},
		},
	},
	{
		Usage:     "/resetwarns @user",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "resetwarns",
			Description: "Reset a member's warnings",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to reset", true)},
		},
	},
	{
		Usage:     "/mute @user [duration] [reason]",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "mute",
			Description: "Mute a member for a while",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.SpanishES: "Silenciar a un miembro",
				discordgo.Russian:   "Заглушить участника",
				discordgo.French:    "Rendre un membre muet",
			},
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member to mute", true),
				stringOption("duration", "For example 30m, 2h or 1d", false),
				stringOption("reason", "Why the member is muted", false),
			},
		},
	},
	{
		Usage:     "/ban @user [reason]",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "ban",
			Description: "Ban a member",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.SpanishES: "Expulsar a un miembro",
				discordgo.Russian:   "Забанить участника",
				discordgo.French:    "Bannir un membre",
			},
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member to ban", true),
				stringOption("reason", "Why the member is banned", false),
			},
		},
	},
	{
		Usage:     "/approve @user",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "approve",
			Description: "Approve a pending member",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to approve", true)},
		},
	},
	{
		Usage:     "/block <word> [--regex]",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "block",
			Description: "Add a word or pattern to the blocklist",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("word", "Word or pattern to block", true),
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "regex",
					Description: "Treat the word as a regular expression",
				},
			},
		},
	},
	{
		Usage:     "/unblock <word>",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "unblock",
			Description: "Remove a word from the blocklist",
			Options:     []*discordgo.ApplicationCommandOption{stringOption("word", "Word to unblock", true)},
		},
	},
	{
		Usage:     "/blocklist",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "blocklist",
			Description: "List blocked words",
		},
	},
	{
		Usage:     "/media <type> <allow|deny|admins|clear>",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "media",
			Description: "Restrict a media type",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("type", "Media type", true, "photo", "video", "document", "audio", "voice", "sticker", "gif"),
				stringOption("mode", "Who may post it", true, "allow", "deny", "admins", "clear"),
			},
		},
	},
	{
		Usage:     "/setting <welcome|goodbye|captcha|approval|antiflood|nightmode> <on|off>",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "setting",
			Description: "Toggle a group feature",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("name", "Feature", true, "welcome", "goodbye", "captcha", "approval", "antiflood", "nightmode"),
				stringOption("value", "State", true, "on", "off"),
			},
		},
	},
	{
		Usage:     "/nightmode <HH:MM> <HH:MM> | off",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "nightmode",
			Description: "Set the night mode window",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("start", "Start time HH:MM, or off", true),
				stringOption("end", "End time HH:MM", false),
			},
		},
	},
	{
		Usage:     "/lang <code>",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "lang",
			Description: "Set the group language",
			Options:     []*discordgo.ApplicationCommandOption{stringOption("code", "Language code", true)},
		},
	},
	{
		Usage:     "/open",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "open",
			Description: "Let everyone send messages",
		},
	},
	{
		Usage:     "/close",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "close",
			Description: "Only admins may send messages",
		},
	},
	{
		Usage:     "/tagall [message]",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "tagall",
			Description: "Mention everyone with an announcement",
			Options:     []*discordgo.ApplicationCommandOption{stringOption("message", "Announcement", false)},
		},
	},
	{
		Usage:     "/stats",
		AdminOnly: true,
		Definition: &discordgo.ApplicationCommand{
			Name:        "stats",
			Description: "Show group and host statistics",
		},
	},
}

var byName = func() map[string]Entry {
	m := make(map[string]Entry, len(Catalogue))
	for _, s := range Catalogue {
		m[s.Name()] = s
	}
	return m
}()

// Lookup finds a command by name, case-insensitively.
func Lookup(name string) (Entry, bool) {
	s, ok := byName[strings.ToLower(name)]
	return s, ok
}

// HelpText renders the command list.
func HelpText() string {
	var sb strings.Builder
	sb.WriteString("🤖 Available commands:\n")
	for _, s := range Catalogue {
		sb.WriteString("\n")
		sb.WriteString(s.Usage)
		sb.WriteString(" - ")
		sb.WriteString(s.Definition.Description)
		if s.AdminOnly {
			sb.WriteString(" (admin)")
		}
	}
	return sb.String()
}
