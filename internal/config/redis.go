package config

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when no address is configured or the server does
// not answer a ping; callers then run without rate limiting.
func (c *Config) NewRedisClient() *redis.Client {
	if c.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("WARN [config] redis unavailable at %s: %v", c.RedisAddr, err)
		_ = client.Close()
		return nil
	}
	return client
}
