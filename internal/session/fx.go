package session

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/waitline/internal/config"
	"go.uber.org/fx"
)

func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("session",
	fx.Provide(
		NewRedisClient,
		NewRedisStore,
		NewManager,
	),
)
