package model

import "time"

// ModerationConfig holds the thresholds shared by every group.
type ModerationConfig struct {
	MaxWarnings        int           `mapstructure:"max_warnings"`
	WarnBanDuration    time.Duration `mapstructure:"warn_ban_duration"` // 0 bans permanently
	FloodLimit         int           `mapstructure:"flood_limit"`
	FloodWindow        time.Duration `mapstructure:"flood_window"`
	FloodMuteDuration  time.Duration `mapstructure:"flood_mute_duration"`
	FloodSweepInterval time.Duration `mapstructure:"flood_sweep_interval"`
	FilterAction       string        `mapstructure:"filter_action"` // warn | mute
	FilterMuteDuration time.Duration `mapstructure:"filter_mute_duration"`
	BannedLinks        []string      `mapstructure:"banned_links"`
	NightModePolicy    string        `mapstructure:"night_mode_policy"` // none | delete_media | delete_all
	EphemeralNoticeTTL time.Duration `mapstructure:"ephemeral_notice_ttl"`
	EventDedupeTTL     time.Duration `mapstructure:"event_dedupe_ttl"`
	DedupeSize         int           `mapstructure:"dedupe_size"`
	Languages          []string      `mapstructure:"languages"`
}

// StatsConfig configures the periodic warning statistics report.
type StatsConfig struct {
	ChannelID string        `mapstructure:"channel_id"`
	GuildID   string        `mapstructure:"guild_id"`
	Interval  time.Duration `mapstructure:"interval"`
	MessageID string        `mapstructure:"message_id"`
}

// Config 存储应用程序的配置
type Config struct {
	BotToken     string           `mapstructure:"bot_token"`
	DatabasePath string           `mapstructure:"database_path"`
	LogLevel     string           `mapstructure:"log_level"`
	LogChannelID string           `mapstructure:"log_channel_id"`
	MetricsAddr  string           `mapstructure:"metrics_addr"`
	RedisURL     string           `mapstructure:"redis_url"`
	Moderation   ModerationConfig `mapstructure:"moderation"`
	Stats        StatsConfig      `mapstructure:"stats"`
}

// Filter actions.
const (
	FilterActionWarn = "warn"
	FilterActionMute = "mute"
)

// Night mode policies.
const (
	NightModeNone        = "none"
	NightModeDeleteMedia = "delete_media"
	NightModeDeleteAll   = "delete_all"
)

// DefaultModerationConfig returns the built-in thresholds.
func DefaultModerationConfig() ModerationConfig {
	return ModerationConfig{
		MaxWarnings:        3,
		FloodLimit:         5,
		FloodWindow:        10 * time.Second,
		FloodMuteDuration:  30 * time.Minute,
		FloodSweepInterval: time.Minute,
		FilterAction:       FilterActionWarn,
		FilterMuteDuration: 10 * time.Minute,
		BannedLinks:        []string{"spam.com", "malicious.site"},
		NightModePolicy:    NightModeDeleteMedia,
		EphemeralNoticeTTL: 5 * time.Second,
		EventDedupeTTL:     10 * time.Minute,
		DedupeSize:         10000,
		Languages:          []string{"en", "es", "ru", "fr"},
	}
}
