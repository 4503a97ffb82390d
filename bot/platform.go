package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guardbot/dispatch"
	"guardbot/model"
	"guardbot/utils"

	"github.com/bwmarrin/discordgo"
)

// Discord caps member timeouts at 28 days.
const maxTimeout = 28 * 24 * time.Hour

// Permissions a member needs to count as a group administrator.
const adminPermissions = discordgo.PermissionAdministrator | discordgo.PermissionManageGuild | discordgo.PermissionModerateMembers

// Platform implements dispatch.Platform on a discordgo session. A guild is a
// group and the @everyone role carries the group's default permissions.
type Platform struct {
	s *discordgo.Session
}

func NewPlatform(s *discordgo.Session) *Platform {
	return &Platform{s: s}
}

var (
	_ dispatch.Platform        = (*Platform)(nil)
	_ dispatch.AdminResolver   = (*Platform)(nil)
	_ dispatch.DirectMessenger = (*Platform)(nil)
)

// mapError turns Discord's "unknown entity" answers into model.ErrGone.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
			return fmt.Errorf("%w: %v", model.ErrGone, err)
		}
	}
	return err
}

func (p *Platform) DeleteMessage(ctx context.Context, groupID, channelID, messageID string) error {
	return mapError(p.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

// RestrictMember maps a mute onto a member timeout. Anything that lets the
// member send again clears the timeout.
func (p *Platform) RestrictMember(ctx context.Context, groupID, userID string, perms model.Permissions, until time.Time) error {
	if until.IsZero() || perms.SendMessages {
		return mapError(p.s.GuildMemberTimeout(groupID, userID, nil, discordgo.WithContext(ctx)))
	}
	if limit := time.Now().Add(maxTimeout); until.After(limit) {
		until = limit
	}
	return mapError(p.s.GuildMemberTimeout(groupID, userID, &until, discordgo.WithContext(ctx)))
}

// BanMember bans permanently; Discord bans have no expiry.
func (p *Platform) BanMember(ctx context.Context, groupID, userID string, until time.Time, reason string) error {
	return mapError(p.s.GuildBanCreateWithReason(groupID, userID, reason, 0, discordgo.WithContext(ctx)))
}

func permissionBits(base int64, perms model.Permissions) int64 {
	set := func(bits int64, on bool) {
		if on {
			base |= bits
		} else {
			base &^= bits
		}
	}
	set(discordgo.PermissionSendMessages|discordgo.PermissionSendMessagesInThreads, perms.SendMessages)
	set(discordgo.PermissionAttachFiles, perms.SendMedia)
	set(discordgo.PermissionAddReactions|discordgo.PermissionUseExternalEmojis, perms.SendOther)
	set(discordgo.PermissionEmbedLinks, perms.AddWebPreviews)
	set(discordgo.PermissionChangeNickname, perms.ChangeInfo)
	set(discordgo.PermissionCreateInstantInvite, perms.InviteUsers)
	return base
}

// SetChatPermissions edits the @everyone role, whose id equals the guild id.
func (p *Platform) SetChatPermissions(ctx context.Context, groupID string, perms model.Permissions) error {
	roles, err := p.s.GuildRoles(groupID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	var everyone *discordgo.Role
	for _, r := range roles {
		if r.ID == groupID {
			everyone = r
			break
		}
	}
	if everyone == nil {
		return fmt.Errorf("@everyone role of guild %s not found", groupID)
	}
	bits := permissionBits(everyone.Permissions, perms)
	_, err = p.s.GuildRoleEdit(groupID, everyone.ID, &discordgo.RoleParams{Permissions: &bits}, discordgo.WithContext(ctx))
	return mapError(err)
}

func (p *Platform) systemChannel(ctx context.Context, groupID string) (string, error) {
	if g, err := p.s.State.Guild(groupID); err == nil && g.SystemChannelID != "" {
		return g.SystemChannelID, nil
	}
	g, err := p.s.Guild(groupID, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	if g.SystemChannelID == "" {
		return "", fmt.Errorf("guild %s has no system channel", groupID)
	}
	return g.SystemChannelID, nil
}

func (p *Platform) SendReply(ctx context.Context, msg dispatch.OutgoingMessage) (string, error) {
	channelID := msg.ChannelID
	if channelID == "" {
		var err error
		if channelID, err = p.systemChannel(ctx, msg.GroupID); err != nil {
			return "", err
		}
	}

	send := &discordgo.MessageSend{
		Content:         msg.Text,
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: msg.MentionUserIDs},
	}
	if msg.MentionAll {
		send.AllowedMentions.Parse = []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone}
	}
	if msg.ReplyTo != "" {
		failIfMissing := false
		send.Reference = &discordgo.MessageReference{
			MessageID:       msg.ReplyTo,
			ChannelID:       channelID,
			GuildID:         msg.GroupID,
			FailIfNotExists: &failIfMissing,
		}
	}
	if len(msg.Buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range msg.Buttons {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: b.Payload,
			})
		}
		send.Components = []discordgo.MessageComponent{row}
	}

	m, err := p.s.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return m.ID, nil
}

// EditMessage replaces the text of a bot message and drops its buttons.
func (p *Platform) EditMessage(ctx context.Context, groupID, channelID, messageID, text string) error {
	components := []discordgo.MessageComponent{}
	_, err := p.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:              messageID,
		Channel:         channelID,
		Content:         &text,
		Components:      &components,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return mapError(err)
}

// IsAdministrator computes the member's guild permissions from the gateway
// state, falling back to REST when the state has not seen the guild or member.
func (p *Platform) IsAdministrator(ctx context.Context, groupID, userID string) (bool, error) {
	guild, err := p.s.State.Guild(groupID)
	if err != nil {
		if guild, err = p.s.Guild(groupID, discordgo.WithContext(ctx)); err != nil {
			return false, mapError(err)
		}
	}
	if guild.OwnerID == userID {
		return true, nil
	}

	member, err := p.s.State.Member(groupID, userID)
	if err != nil {
		if member, err = p.s.GuildMember(groupID, userID, discordgo.WithContext(ctx)); err != nil {
			if errors.Is(mapError(err), model.ErrGone) {
				return false, nil
			}
			return false, mapError(err)
		}
	}
	return memberPermissions(guild, member)&adminPermissions != 0, nil
}

func memberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	var perms int64
	held := make(map[string]bool, len(member.Roles)+1)
	held[guild.ID] = true // @everyone
	for _, id := range member.Roles {
		held[id] = true
	}
	for _, r := range guild.Roles {
		if held[r.ID] {
			perms |= r.Permissions
		}
	}
	return perms
}

// GetAdministrators lists members with admin permissions. It pages through
// the member list and is only used when IsAdministrator is not.
func (p *Platform) GetAdministrators(ctx context.Context, groupID string) ([]string, error) {
	guild, err := p.s.Guild(groupID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	if len(guild.Roles) == 0 {
		if guild.Roles, err = p.s.GuildRoles(groupID, discordgo.WithContext(ctx)); err != nil {
			return nil, mapError(err)
		}
	}

	admins := []string{guild.OwnerID}
	after := ""
	for {
		members, err := p.s.GuildMembers(groupID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, mapError(err)
		}
		for _, m := range members {
			if m.User != nil && m.User.ID != guild.OwnerID && memberPermissions(guild, m)&adminPermissions != 0 {
				admins = append(admins, m.User.ID)
			}
		}
		if len(members) < 1000 {
			return admins, nil
		}
		after = members[len(members)-1].User.ID
	}
}

func (p *Platform) SendDirect(ctx context.Context, userID, text string) error {
	return utils.SendPrivateMessage(ctx, p.s, userID, text)
}
