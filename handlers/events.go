package handlers

import (
	"strconv"
	"strings"
	"time"

	"guardbot/commands"
	"guardbot/model"

	"github.com/bwmarrin/discordgo"
)

func userRef(u *discordgo.User, member *discordgo.Member) model.UserRef {
	ref := commands.UserRef(u)
	if member != nil && member.Nick != "" {
		ref.FirstName = member.Nick
	}
	return ref
}

// MediaType classifies the first attachment or sticker of a message.
func MediaType(m *discordgo.Message) string {
	if len(m.StickerItems) > 0 {
		return model.MediaSticker
	}
	if len(m.Attachments) == 0 {
		return ""
	}
	ct := strings.ToLower(m.Attachments[0].ContentType)
	switch {
	case ct == "image/gif":
		return model.MediaGIF
	case strings.HasPrefix(ct, "image/"):
		return model.MediaPhoto
	case strings.HasPrefix(ct, "video/"):
		return model.MediaVideo
	case strings.HasPrefix(ct, "audio/"):
		return model.MediaAudio
	default:
		return model.MediaDocument
	}
}

// MessageEvent translates a guild message. Text that parses as a known
// command becomes a CommandInvoked event; bot and direct messages are ignored.
func MessageEvent(m *discordgo.Message, title string) (model.Event, bool) {
	if m == nil || m.GuildID == "" || m.Author == nil || m.Author.Bot {
		return model.Event{}, false
	}
	ev := model.Event{
		ID:         "msg:" + m.ID,
		Kind:       model.MessageReceived,
		GroupID:    m.GuildID,
		GroupTitle: title,
		ChannelID:  m.ChannelID,
		User:       userRef(m.Author, m.Member),
		Timestamp:  m.Timestamp,
		MessageID:  m.ID,
		Text:       m.Content,
		MediaType:  MediaType(m),
	}

	p, ok := commands.Parse(m.Content)
	if !ok {
		return ev, true
	}
	ev.Kind = model.CommandInvoked
	ev.Command = &model.Command{Name: p.Name, Args: p.Args, Target: commandTarget(m, p.Mentions)}
	return ev, true
}

// commandTarget is the first mentioned user, or the author of the message
// being replied to.
func commandTarget(m *discordgo.Message, mentions []string) *model.UserRef {
	if len(mentions) > 0 {
		for _, u := range m.Mentions {
			if u.ID == mentions[0] {
				ref := userRef(u, nil)
				return &ref
			}
		}
		return &model.UserRef{ID: mentions[0]}
	}
	if m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		ref := userRef(m.ReferencedMessage.Author, nil)
		return &ref
	}
	return nil
}

func memberEvent(kind model.EventKind, prefix string, m *discordgo.Member, channelID, title string, at time.Time) (model.Event, bool) {
	if m == nil || m.User == nil || m.User.Bot {
		return model.Event{}, false
	}
	return model.Event{
		ID:         prefix + ":" + m.GuildID + ":" + m.User.ID + ":" + strconv.FormatInt(at.UnixNano(), 10),
		Kind:       kind,
		GroupID:    m.GuildID,
		GroupTitle: title,
		ChannelID:  channelID,
		User:       userRef(m.User, m),
		Timestamp:  at,
	}, true
}

// JoinEvent translates a member joining. The join time makes the id stable
// across gateway redeliveries.
func JoinEvent(m *discordgo.Member, channelID, title string) (model.Event, bool) {
	if m == nil {
		return model.Event{}, false
	}
	at := m.JoinedAt
	if at.IsZero() {
		at = time.Now()
	}
	return memberEvent(model.UserJoined, "join", m, channelID, title, at)
}

// LeaveEvent translates a member leaving.
func LeaveEvent(m *discordgo.Member, channelID, title string) (model.Event, bool) {
	return memberEvent(model.UserLeft, "leave", m, channelID, title, time.Now())
}

func interactionUser(i *discordgo.Interaction) (*discordgo.User, *discordgo.Member) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User, i.Member
	}
	return i.User, nil
}

// CommandInteractionEvent translates a slash command.
func CommandInteractionEvent(i *discordgo.Interaction, title string) (model.Event, bool) {
	if i.GuildID == "" {
		return model.Event{}, false
	}
	cmd, ok := commands.FromInteraction(i.ApplicationCommandData())
	if !ok {
		return model.Event{}, false
	}
	u, member := interactionUser(i)
	if u == nil {
		return model.Event{}, false
	}
	return model.Event{
		ID:         "interaction:" + i.ID,
		Kind:       model.CommandInvoked,
		GroupID:    i.GuildID,
		GroupTitle: title,
		ChannelID:  i.ChannelID,
		User:       userRef(u, member),
		Timestamp:  time.Now(),
		Command:    cmd,
	}, true
}

// ButtonEvent translates a press on a verification button.
func ButtonEvent(i *discordgo.Interaction, title string) (model.Event, bool) {
	if i.GuildID == "" {
		return model.Event{}, false
	}
	data := i.MessageComponentData()
	if _, ok := model.ParseCaptchaPayload(data.CustomID); !ok {
		return model.Event{}, false
	}
	u, member := interactionUser(i)
	if u == nil {
		return model.Event{}, false
	}
	ev := model.Event{
		ID:         "interaction:" + i.ID,
		Kind:       model.ButtonPressed,
		GroupID:    i.GuildID,
		GroupTitle: title,
		ChannelID:  i.ChannelID,
		User:       userRef(u, member),
		Timestamp:  time.Now(),
		Callback:   data.CustomID,
	}
	if i.Message != nil {
		ev.MessageID = i.Message.ID
	}
	return ev, true
}
