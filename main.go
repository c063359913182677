package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brotherowl/internal/bot"
	"brotherowl/internal/cache"
	"brotherowl/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}
	setupLogging(cfg.Logging)
	log.Info().Msg("Hello from inside Brother Owl")

	stores, err := bot.OpenStores(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open storage")
	}
	defer stores.Close()

	// Mirror lookups are cached in redis when available
	var mirrorCache cache.Cache = cache.NewInMemoryCache()
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, caching in memory")
		} else {
			defer redisCache.Close()
			mirrorCache = redisCache
		}
	}

	owl, err := bot.CreateBot(cfg, stores, mirrorCache)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create discord bot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := owl.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Bot stopped with an error")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}
}
