package main

import (
	"guardbot/config"
	"guardbot/model"
	"guardbot/utils/logger"

	"github.com/urfave/cli/v2"
)

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a YAML config file",
		Value:   "config.yaml",
		EnvVars: []string{"GUARDBOT_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "env-file",
		Usage: "dotenv file loaded before reading the environment",
		Value: ".env",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "overrides the configured log level (debug, info, warn, error)",
	},
}

// loadConfig 读取配置并按命令行参数初始化日志
func loadConfig(c *cli.Context, requireToken bool) (*model.Config, error) {
	cfg, err := config.Load(config.Options{
		Path:         c.String("config"),
		EnvFile:      c.String("env-file"),
		RequireToken: requireToken,
	})
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}
