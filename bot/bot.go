package bot

import (
	"fmt"
	"time"

	"guardbot/commands"
	"guardbot/dispatch"
	"guardbot/engine"
	"guardbot/filter"
	"guardbot/flood"
	"guardbot/model"
	"guardbot/moderation"
	"guardbot/utils"
	"guardbot/utils/database"
	"guardbot/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const restTimeout = 20 * time.Second

type Bot struct {
	Session    *discordgo.Session
	Config     *model.Config
	Store      *database.Store
	Engine     *engine.Engine
	Dispatcher *dispatch.Dispatcher
	ModLog     *utils.ModLog

	// exactly one of the flood stores is set
	floodMem   *flood.MemStore
	floodRedis *flood.RedisStore

	scheduler *Scheduler
	log       *zap.Logger
}

func New(cfg *model.Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	dg.StateEnabled = true
	dg.Client = utils.NewHTTPClient(restTimeout)

	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		Session: dg,
		Config:  cfg,
		Store:   store,
		ModLog:  utils.NewModLog(dg, cfg.LogChannelID),
		log:     logger.Named("bot"),
	}

	var floodStore flood.Store
	if cfg.RedisURL != "" {
		rs, err := flood.NewRedisStore(cfg.RedisURL)
		if err != nil {
			store.Close()
			return nil, err
		}
		b.floodRedis = rs
		floodStore = rs
	} else {
		b.floodMem = flood.NewMemStore()
		floodStore = b.floodMem
	}

	b.Dispatcher = dispatch.New(NewPlatform(dg), dispatch.Options{
		NoticeTTL:  cfg.Moderation.EphemeralNoticeTTL,
		DedupeSize: cfg.Moderation.DedupeSize,
		DedupeTTL:  cfg.Moderation.EventDedupeTTL,
		Auditor:    b.ModLog,
	})

	filterEngine, err := filter.NewEngine(store, cfg.Moderation)
	if err != nil {
		b.closeStores()
		return nil, fmt.Errorf("failed to create filter engine: %w", err)
	}

	b.Engine = engine.New(engine.Deps{
		Store:      store,
		Filter:     filterEngine,
		Flood:      flood.NewDetector(floodStore, cfg.Moderation),
		Machine:    moderation.New(store, b.Dispatcher, cfg.Moderation),
		Dispatcher: b.Dispatcher,
	}, cfg.Moderation)

	b.scheduler = NewScheduler(b)
	return b, nil
}

// RefreshCommands registers the slash commands for one guild.
func (b *Bot) RefreshCommands(guildID string) {
	if b.Session.State.User == nil {
		return
	}
	cmds := commands.GenerateCommands()
	b.log.Info("registering commands", zap.String("guild", guildID), zap.Int("count", len(cmds)))
	if _, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, guildID, cmds); err != nil {
		b.log.Error("cannot update commands", zap.String("guild", guildID), zap.Error(err))
	}
}

// Close stops intake first, then drains queued events, pending notices and
// background tasks before releasing the stores.
func (b *Bot) Close() {
	b.log.Info("Gracefully shutting down.")
	if err := b.Session.Close(); err != nil {
		b.log.Warn("failed to close discord session", zap.Error(err))
	}
	b.Engine.Close()
	b.Dispatcher.Close()
	b.scheduler.Stop()
	b.closeStores()
}

func (b *Bot) closeStores() {
	if b.floodRedis != nil {
		if err := b.floodRedis.Close(); err != nil {
			b.log.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if err := b.Store.Close(); err != nil {
		b.log.Warn("failed to close database", zap.Error(err))
	}
}

// Submit hands an event to the engine.
func (b *Bot) Submit(ev model.Event) {
	if !b.Engine.Submit(ev) {
		b.log.Debug("event dropped during shutdown", zap.String("event_id", ev.ID))
	}
}

// LogStartup announces the bot in the log channel.
func (b *Bot) LogStartup(username string) {
	if err := b.ModLog.LogInfo("System", "Startup", "Logged in as "+username); err != nil {
		b.log.Warn("failed to send startup log", zap.Error(err))
	}
}

// Log returns the bot's logger.
func (b *Bot) Log() *zap.Logger {
	return b.log
}
