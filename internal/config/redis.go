package config

// This file defines a Redis client constructor for the application.  Redis is
// used for distributed rate limiting and the access token revocation list.  If
// the server cannot be reached during startup the constructor returns nil and
// callers degrade gracefully: rate limiting falls back to an in-process
// limiter and logout only revokes refresh tokens.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the REDIS_* variables.  Addr takes precedence over
// Host/Port when both are set.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	TLS      bool   `env:"TLS" envDefault:"false"`
	Disabled bool   `env:"DISABLED" envDefault:"false"`
}

func (c RedisConfig) address() string {
	switch {
	case c.Addr != "":
		return c.Addr
	case c.Host != "" && c.Port != "":
		return c.Host + ":" + c.Port
	}
	return "localhost:6379"
}

// NewRedisClient instantiates a Redis client and pings it with a short
// timeout.  The returned client is nil when Redis is disabled or unreachable.
func NewRedisClient(ctx context.Context, c RedisConfig) *redis.Client {
	if c.Disabled {
		return nil
	}
	var tlsConf *tls.Config
	if c.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      c.address(),
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: tlsConf,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
