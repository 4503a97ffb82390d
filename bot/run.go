package bot

import (
	"context"
	"fmt"
)

// Run connects to the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		b.Close()
		return fmt.Errorf("error opening connection: %w", err)
	}
	b.scheduler.Start()
	b.log.Info("Bot is now running. Press CTRL-C to exit.")

	<-ctx.Done()
	b.Close()
	return nil
}
