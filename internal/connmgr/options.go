package connmgr

import (
	"maps"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default reconnect settings.
const (
	// DefaultInitialDelay is the first backoff delay after a failed attempt.
	DefaultInitialDelay = 1000 * time.Millisecond

	// DefaultMaxDelay caps the exponential growth of the backoff delay.
	DefaultMaxDelay = 30000 * time.Millisecond

	// DefaultFailAfter of zero means the retry loop never gives up.
	DefaultFailAfter = 0

	// backoffMultiplier is the growth factor between consecutive delays.
	backoffMultiplier = 2.0
)

// Options is the user-supplied manager configuration.
//
// Every field is optional. Nil pointers and nil maps mean "not set" and are
// filled from the defaults by Resolve, so a caller supplying only
// Reconnect.FailAfter still inherits the default backoff strategy.
type Options struct {
	// Connection is passed through to the broker dialer untouched
	// (heartbeat, vhost, connection_name, ...). Merged key by key.
	Connection map[string]any

	// UseConfirmChannel requests a publisher-confirm channel instead of a
	// standard channel.
	UseConfirmChannel *bool

	// Reconnect controls the retry loop.
	Reconnect *ReconnectOptions
}

// ReconnectOptions is the user-supplied reconnect policy.
type ReconnectOptions struct {
	// FailAfter is the number of retries after the first failed attempt before
	// the loop gives up. Zero means unlimited.
	FailAfter *int

	// BackoffStrategy decides the delay between attempts. If nil, an
	// exponential strategy (1s initial, 30s max, randomised) is used.
	BackoffStrategy backoff.BackOff
}

// Configuration is the fully populated configuration of a Manager.
// It is created once by Resolve and never modified afterwards.
type Configuration struct {
	ConnectionOptions map[string]any
	UseConfirmChannel bool
	Reconnect         ReconnectConfig
}

// ReconnectConfig is the resolved reconnect policy. BackoffStrategy is never nil.
type ReconnectConfig struct {
	FailAfter       int
	BackoffStrategy backoff.BackOff
}

// Bool returns a pointer to b, for filling optional fields in Options.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n, for filling optional fields in Options.
func Int(n int) *int { return &n }

// NewExponentialStrategy builds the exponential backoff strategy used by default.
//
// Parameters:
//   - initial: First delay
//   - maxDelay: Upper bound for any single delay
//   - randomization: Jitter factor in [0, 1); 0.3 means ±30%
//
// Returns:
//   - backoff.BackOff: Strategy ready for use by a RetryPolicy
func NewExponentialStrategy(initial, maxDelay time.Duration, randomization float64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Multiplier = backoffMultiplier
	b.RandomizationFactor = randomization
	b.Reset()
	return b
}

// newDefaultStrategy builds the strategy used when none is supplied. Each call
// draws a fresh randomization factor.
var newDefaultStrategy = func() backoff.BackOff {
	return NewExponentialStrategy(DefaultInitialDelay, DefaultMaxDelay, rand.Float64())
}

// defaultConfiguration returns a new default Configuration on every call.
// Nothing here is shared between managers. The backoff strategy is left nil;
// Resolve builds the default one only when the options do not supply one.
func defaultConfiguration() Configuration {
	return Configuration{
		ConnectionOptions: map[string]any{},
		UseConfirmChannel: false,
		Reconnect: ReconnectConfig{
			FailAfter: DefaultFailAfter,
		},
	}
}

// Resolve merges user options over the defaults and returns a new Configuration.
//
// Merge policy is last-write-wins per key at each nesting level: top-level
// flags, the Connection map and the Reconnect group are each merged key by key
// rather than replaced wholesale. Resolve has no error conditions.
func Resolve(opts Options) Configuration {
	cfg := defaultConfiguration()

	maps.Copy(cfg.ConnectionOptions, opts.Connection)

	if opts.UseConfirmChannel != nil {
		cfg.UseConfirmChannel = *opts.UseConfirmChannel
	}

	if r := opts.Reconnect; r != nil {
		if r.FailAfter != nil {
			cfg.Reconnect.FailAfter = max(*r.FailAfter, 0)
		}
		if r.BackoffStrategy != nil {
			cfg.Reconnect.BackoffStrategy = r.BackoffStrategy
		}
	}
	if cfg.Reconnect.BackoffStrategy == nil {
		cfg.Reconnect.BackoffStrategy = newDefaultStrategy()
	}

	return cfg
}
