// Package retry runs platform calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts     = 4
	defaultInitialInterval = 2 * time.Second
	defaultMaxInterval     = 30 * time.Second
)

// Config bounds how often and how long a call is retried
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the configuration used when nothing else is set
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     defaultMaxAttempts,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaultMaxInterval
	}
	return c
}

func (c Config) backOff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful, every call gets a fresh one
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialInterval
	bo.MaxInterval = c.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, returns an error retryable rejects, the attempts
// are exhausted or ctx is done. The last error of op is returned.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, logger *logrus.Entry, op func() error) error {
	cfg = cfg.withDefaults()

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, cfg.backOff(ctx), func(err error, wait time.Duration) {
		if logger != nil {
			logger.WithError(err).Debugf("Attempt %d/%d failed, retrying in %s", attempt, cfg.MaxAttempts, wait)
		}
	})
}
