package utils

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// SendPrivateMessage sends a direct message to a user.
func SendPrivateMessage(ctx context.Context, s *discordgo.Session, userID, message string) error {
	channel, err := s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open private channel with user %s: %w", userID, err)
	}
	_, err = s.ChannelMessageSend(channel.ID, message, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send private message to user %s: %w", userID, err)
	}
	return nil
}
