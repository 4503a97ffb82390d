package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"guardbot/model"
	"guardbot/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	sent    int
	edited  int
	editErr error
	last    *discordgo.MessageEmbed
}

func (f *fakePoster) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent++
	f.last = embed
	return &discordgo.Message{ID: "stats-msg", ChannelID: channelID}, nil
}

func (f *fakePoster) ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited++
	f.last = embed
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func seededStore(t *testing.T, now time.Time) *database.Store {
	t.Helper()
	ctx := context.Background()
	store, err := database.Open(filepath.Join(t.TempDir(), "guardbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.EnsureGroup(ctx, "100", "Test", now)
	require.NoError(t, err)
	for _, uid := range []string{"2", "3"} {
		require.NoError(t, store.UpsertMember(ctx, model.Member{GroupID: "100", UserID: uid, IsApproved: true, JoinedAt: now.Unix()}))
	}
	warn := func(user, admin, event string, at time.Time) {
		_, err := store.AddWarning(ctx, model.Warning{GroupID: "100", UserID: user, IssuedBy: admin, IssuedAt: at.Unix(), EventID: event}, 10)
		require.NoError(t, err)
	}
	warn("2", "1", "e1", now.Add(-time.Minute))
	warn("3", "1", "e2", now.Add(-2*time.Minute))
	warn("2", "9", "e3", now.Add(-3*time.Minute))
	warn("3", "9", "e4", now.Add(-48*time.Hour))
	return store
}

func TestGenerateWarningStatsEmbed(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := seededStore(t, now)

	embed, err := GenerateWarningStatsEmbed(context.Background(), store, "100", 24*time.Hour, now)
	require.NoError(t, err)
	assert.Contains(t, embed.Description, "last 1 day")
	assert.Contains(t, embed.Description, "**Total: 3**")
	assert.Contains(t, embed.Description, "1. <@1>: 2\n2. <@9>: 1\n")
}

func TestWarningStatsPostsThenEdits(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := seededStore(t, now)
	poster := &fakePoster{}
	w := NewWarningStats(store, poster, model.StatsConfig{ChannelID: "c", GuildID: "100", Interval: time.Hour})

	require.NoError(t, w.Update(context.Background(), now))
	assert.Equal(t, 1, poster.sent)
	assert.Equal(t, "stats-msg", w.MessageID())

	require.NoError(t, w.Update(context.Background(), now))
	assert.Equal(t, 1, poster.sent)
	assert.Equal(t, 1, poster.edited)

	poster.editErr = errors.New("unknown message")
	require.NoError(t, w.Update(context.Background(), now))
	assert.Equal(t, 2, poster.sent)
}
