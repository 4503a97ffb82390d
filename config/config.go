package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"guardbot/model"
	"guardbot/utils/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// EnvPrefix is prepended to every environment override, e.g. GUARDBOT_MODERATION_FLOOD_LIMIT.
const EnvPrefix = "GUARDBOT"

// Options controls how Load behaves.
type Options struct {
	// Path is an optional YAML file. A missing file is not an error.
	Path string
	// EnvFile is loaded with godotenv before reading the environment. Empty means ".env".
	EnvFile string
	// RequireToken makes a missing bot token a config error.
	RequireToken bool
}

// Load loads the configuration from .env, an optional YAML file, the environment and defaults.
func Load(opts Options) (*model.Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.Info("Info: .env file not found, relying on environment variables", zap.String("path", envFile))
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err == nil {
			v.SetConfigFile(opts.Path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, model.ConfigError(fmt.Sprintf("failed to read config file %s", opts.Path), err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, model.ConfigError(fmt.Sprintf("failed to stat config file %s", opts.Path), err)
		}
	}

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, model.ConfigError("failed to decode configuration", err)
	}

	// The un-prefixed names are still honoured for existing deployments.
	if cfg.BotToken == "" {
		cfg.BotToken = os.Getenv("BOT_TOKEN")
	}
	if cfg.LogChannelID == "" {
		cfg.LogChannelID = os.Getenv("LOG_CHANNEL_ID")
	}

	if opts.RequireToken && cfg.BotToken == "" {
		return nil, model.ConfigError("BOT_TOKEN environment variable not set", nil)
	}
	if cfg.LogChannelID == "" {
		logger.Warn("Warning: LOG_CHANNEL_ID not set, moderation log channel will be disabled")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := model.DefaultModerationConfig()

	v.SetDefault("bot_token", "")
	v.SetDefault("database_path", "data/guardbot.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_channel_id", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("redis_url", "")

	v.SetDefault("moderation.max_warnings", d.MaxWarnings)
	v.SetDefault("moderation.warn_ban_duration", d.WarnBanDuration)
	v.SetDefault("moderation.flood_limit", d.FloodLimit)
	v.SetDefault("moderation.flood_window", d.FloodWindow)
	v.SetDefault("moderation.flood_mute_duration", d.FloodMuteDuration)
	v.SetDefault("moderation.flood_sweep_interval", d.FloodSweepInterval)
	v.SetDefault("moderation.filter_action", d.FilterAction)
	v.SetDefault("moderation.filter_mute_duration", d.FilterMuteDuration)
	v.SetDefault("moderation.banned_links", d.BannedLinks)
	v.SetDefault("moderation.night_mode_policy", d.NightModePolicy)
	v.SetDefault("moderation.ephemeral_notice_ttl", d.EphemeralNoticeTTL)
	v.SetDefault("moderation.event_dedupe_ttl", d.EventDedupeTTL)
	v.SetDefault("moderation.dedupe_size", d.DedupeSize)
	v.SetDefault("moderation.languages", d.Languages)

	v.SetDefault("stats.channel_id", "")
	v.SetDefault("stats.guild_id", "")
	v.SetDefault("stats.interval", "1h")
	v.SetDefault("stats.message_id", "")
}

// Validate rejects configurations the engine cannot run with.
func Validate(cfg *model.Config) error {
	m := &cfg.Moderation
	switch {
	case m.MaxWarnings < 1:
		return model.ConfigError("moderation.max_warnings must be at least 1", nil)
	case m.FloodLimit < 1:
		return model.ConfigError("moderation.flood_limit must be at least 1", nil)
	case m.FloodWindow <= 0:
		return model.ConfigError("moderation.flood_window must be positive", nil)
	case m.FloodMuteDuration <= 0:
		return model.ConfigError("moderation.flood_mute_duration must be positive", nil)
	case m.WarnBanDuration < 0:
		return model.ConfigError("moderation.warn_ban_duration must not be negative", nil)
	case m.DedupeSize < 1:
		return model.ConfigError("moderation.dedupe_size must be at least 1", nil)
	}

	switch m.FilterAction {
	case model.FilterActionWarn, model.FilterActionMute:
	default:
		return model.ConfigError(fmt.Sprintf("moderation.filter_action %q is not one of warn, mute", m.FilterAction), nil)
	}
	if m.FilterAction == model.FilterActionMute && m.FilterMuteDuration <= 0 {
		return model.ConfigError("moderation.filter_mute_duration must be positive when filter_action is mute", nil)
	}

	switch m.NightModePolicy {
	case model.NightModeNone, model.NightModeDeleteMedia, model.NightModeDeleteAll:
	default:
		return model.ConfigError(fmt.Sprintf("moderation.night_mode_policy %q is not one of none, delete_media, delete_all", m.NightModePolicy), nil)
	}

	if len(m.Languages) == 0 {
		return model.ConfigError("moderation.languages must not be empty", nil)
	}
	for _, code := range m.Languages {
		if _, err := language.Parse(code); err != nil {
			return model.ConfigError(fmt.Sprintf("moderation.languages contains invalid code %q", code), err)
		}
	}

	// Discord bans never expire on their own.
	if m.WarnBanDuration > 0 {
		logger.Warn("Warning: moderation.warn_ban_duration is set but Discord bans are permanent, the duration is ignored",
			zap.Duration("warn_ban_duration", m.WarnBanDuration))
	}

	for i, link := range m.BannedLinks {
		m.BannedLinks[i] = strings.ToLower(strings.TrimSpace(link))
	}
	return nil
}
