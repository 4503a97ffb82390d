package bot

import (
	"context"
	"sync"
	"time"

	"guardbot/scanner"
	"guardbot/tasks"

	"go.uber.org/zap"
)

// Scheduler manages the background tasks.
type Scheduler struct {
	bot  *Bot
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewScheduler(bot *Bot) *Scheduler {
	return &Scheduler{
		bot:  bot,
		done: make(chan struct{}),
	}
}

// Start begins all scheduled tasks.
func (s *Scheduler) Start() {
	cfg := s.bot.Config

	// Only the in-memory flood store needs sweeping, Redis expires its keys.
	if s.bot.floodMem != nil && cfg.Moderation.FloodSweepInterval > 0 {
		stopped := scanner.StartFloodSweeper(s.bot.floodMem, cfg.Moderation.FloodSweepInterval, cfg.Moderation.FloodWindow, s.done)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			<-stopped
		}()
	}

	if cfg.Stats.ChannelID != "" && cfg.Stats.GuildID != "" && cfg.Stats.Interval > 0 {
		s.wg.Add(1)
		go s.startWarningStats()
	}
}

// Stop terminates all scheduled tasks gracefully.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.bot.log.Info("Stopping scheduler...")
		close(s.done)
		s.wg.Wait()
		s.bot.log.Info("Scheduler stopped.")
	})
}

func (s *Scheduler) startWarningStats() {
	defer s.wg.Done()
	stats := tasks.NewWarningStats(s.bot.Store, s.bot.Session, s.bot.Config.Stats)
	ticker := time.NewTicker(s.bot.Config.Stats.Interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
			if err := stats.Update(ctx, now); err != nil {
				s.bot.log.Error("failed to update warning stats", zap.Error(err))
			}
			cancel()
		case <-s.done:
			return
		}
	}
}
