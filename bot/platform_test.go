package bot

import (
	"errors"
	"testing"

	"guardbot/model"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	gone := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"}}
	assert.ErrorIs(t, mapError(gone), model.ErrGone)

	denied := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions, Message: "Missing Permissions"}}
	assert.NotErrorIs(t, mapError(denied), model.ErrGone)

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
	assert.NoError(t, mapError(nil))
}

func TestPermissionBits(t *testing.T) {
	base := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles)

	closed := permissionBits(base, model.ClosedPermissions)
	assert.Zero(t, closed&discordgo.PermissionSendMessages)
	assert.Zero(t, closed&discordgo.PermissionAttachFiles)
	assert.NotZero(t, closed&discordgo.PermissionViewChannel, "unrelated bits are kept")

	open := permissionBits(closed, model.OpenPermissions)
	assert.NotZero(t, open&discordgo.PermissionSendMessages)
	assert.NotZero(t, open&discordgo.PermissionEmbedLinks)
	assert.NotZero(t, open&discordgo.PermissionCreateInstantInvite)
	assert.Zero(t, open&discordgo.PermissionChangeNickname)
}

func TestMemberPermissions(t *testing.T) {
	guild := &discordgo.Guild{
		ID: "g",
		Roles: []*discordgo.Role{
			{ID: "g", Permissions: discordgo.PermissionSendMessages},
			{ID: "mods", Permissions: discordgo.PermissionModerateMembers},
			{ID: "fans", Permissions: discordgo.PermissionAddReactions},
		},
	}
	mod := &discordgo.Member{Roles: []string{"mods"}}
	fan := &discordgo.Member{Roles: []string{"fans"}}

	assert.NotZero(t, memberPermissions(guild, mod)&adminPermissions)
	assert.Zero(t, memberPermissions(guild, fan)&adminPermissions)
	assert.NotZero(t, memberPermissions(guild, fan)&discordgo.PermissionSendMessages)
}
