package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"guardbot/model"
	"guardbot/utils"
	"guardbot/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// StatsStore reads warning counts.
type StatsStore interface {
	GetAdminWarningStats(ctx context.Context, groupID string, since time.Time) (map[string]int, error)
	GetTotalWarningCount(ctx context.Context, groupID string, since time.Time) (int, error)
}

// EmbedPoster sends and edits embeds. *discordgo.Session satisfies it.
type EmbedPoster interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// GenerateWarningStatsEmbed builds the warning leaderboard of one group.
func GenerateWarningStatsEmbed(ctx context.Context, store StatsStore, groupID string, duration time.Duration, now time.Time) (*discordgo.MessageEmbed, error) {
	since := now.Add(-duration)
	stats, err := store.GetAdminWarningStats(ctx, groupID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin warning stats for group %s: %w", groupID, err)
	}

	total, err := store.GetTotalWarningCount(ctx, groupID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get total warning count for group %s: %w", groupID, err)
	}

	var sortedAdmins []string
	for adminID := range stats {
		sortedAdmins = append(sortedAdmins, adminID)
	}
	sort.Slice(sortedAdmins, func(i, j int) bool {
		if stats[sortedAdmins[i]] != stats[sortedAdmins[j]] {
			return stats[sortedAdmins[i]] > stats[sortedAdmins[j]]
		}
		return sortedAdmins[i] < sortedAdmins[j]
	})

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("### Warnings in the last %s\n", utils.FormatDuration(duration)))
	builder.WriteString(fmt.Sprintf("**Total: %d**\n\n", total))
	if len(sortedAdmins) > 0 {
		builder.WriteString("**By admin:**\n")
	}
	for i, adminID := range sortedAdmins {
		builder.WriteString(fmt.Sprintf("%d. <@%s>: %d\n", i+1, adminID, stats[adminID]))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Warning statistics",
		Description: builder.String(),
		Timestamp:   now.Format(time.RFC3339),
		Color:       0x00ff00,
	}
	return embed, nil
}

// WarningStats keeps one statistics message up to date: the first run posts
// it, later runs edit it in place.
type WarningStats struct {
	store  StatsStore
	poster EmbedPoster
	cfg    model.StatsConfig
	log    *zap.Logger

	mu        sync.Mutex
	messageID string
}

func NewWarningStats(store StatsStore, poster EmbedPoster, cfg model.StatsConfig) *WarningStats {
	return &WarningStats{
		store:     store,
		poster:    poster,
		cfg:       cfg,
		log:       logger.Named("tasks"),
		messageID: cfg.MessageID,
	}
}

// Update regenerates the embed for the configured interval.
func (w *WarningStats) Update(ctx context.Context, now time.Time) error {
	embed, err := GenerateWarningStatsEmbed(ctx, w.store, w.cfg.GuildID, w.cfg.Interval, now)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.messageID != "" {
		_, err = w.poster.ChannelMessageEditEmbed(w.cfg.ChannelID, w.messageID, embed, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}
		// the message may have been removed by hand, post a new one
		w.log.Warn("failed to edit warning stats message, posting a new one",
			zap.String("channel", w.cfg.ChannelID), zap.String("message", w.messageID), zap.Error(err))
	}

	msg, err := w.poster.ChannelMessageSendEmbed(w.cfg.ChannelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send warning stats message to channel %s: %w", w.cfg.ChannelID, err)
	}
	w.messageID = msg.ID
	return nil
}

// MessageID returns the id of the statistics message, empty before the first post.
func (w *WarningStats) MessageID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.messageID
}
