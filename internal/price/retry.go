package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"go.uber.org/zap"
)

// Retrying wraps a Source with a per-attempt timeout and exponential
// backoff. Errors that are not Retryable end the loop at once.
type Retrying struct {
	Source          Source
	Attempts        int
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *zap.Logger
}

// NewRetrying wraps source. Zero attempts or timeout use the defaults.
func NewRetrying(source Source, attempts int, timeout time.Duration, logger *zap.Logger) *Retrying {
	if attempts <= 0 {
		attempts = constants.DefaultPriceRetries
	}
	if timeout <= 0 {
		timeout = constants.DefaultPriceTimeoutSeconds * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{
		Source:          source,
		Attempts:        attempts,
		Timeout:         timeout,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Logger:          logger,
	}
}

// Spot implements Source.
func (r *Retrying) Spot(ctx context.Context, asset string) (Quote, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.MaxInterval = r.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.Attempts-1)), ctx)

	var (
		quote   Quote
		attempt int
	)
	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		defer cancel()

		q, err := r.Source.Spot(attemptCtx, asset)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && !fe.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		quote = q
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.Logger.Warn("price request failed, will retry",
			zap.String("op", "price.Retrying.Spot"),
			zap.String("asset", asset),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return Quote{}, fmt.Errorf("%w: %s after %d attempts: %w", ErrUnavailable, asset, attempt, err)
	}
	return quote, nil
}
