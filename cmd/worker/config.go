package main

import (
	"asset-library-backend/pkg/container"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Config holds the worker settings derived from the application config
type Config struct {
	RedisOpt    asynq.RedisClientOpt
	Concurrency int
	HealthPort  string
	RefreshCron string
}

func loadConfig(c *container.Container) *Config {
	cfg := &Config{
		RedisOpt:    c.RedisOpt,
		Concurrency: c.Config.Worker.Concurrency,
		HealthPort:  c.Config.Worker.HealthPort,
		RefreshCron: c.Config.Worker.RefreshCron,
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	log.Info().
		Str("redis", cfg.RedisOpt.Addr).
		Int("concurrency", cfg.Concurrency).
		Str("refresh_cron", cfg.RefreshCron).
		Msg("[Config] worker configured")

	return cfg
}
