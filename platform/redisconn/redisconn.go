// Package redisconn builds Redis connection options from configuration.
// This is part of the platform layer and contains no business logic.
package redisconn

import (
	"crypto/tls"
	"fmt"

	"leadcrm_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// Options parses a redis:// or rediss:// URL, optionally disabling certificate checks.
func Options(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		opt.TLSConfig = clone
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return opt, nil
}

// NewClient creates a go-redis client for the configured URL.
func NewClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	opt, err := Options(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}
