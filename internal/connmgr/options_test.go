package connmgr

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

func TestResolve_Defaults(t *testing.T) {
	cfg := Resolve(Options{})

	if cfg.UseConfirmChannel {
		t.Error("UseConfirmChannel = true, want false")
	}
	if cfg.Reconnect.FailAfter != 0 {
		t.Errorf("FailAfter = %d, want 0", cfg.Reconnect.FailAfter)
	}
	if cfg.Reconnect.BackoffStrategy == nil {
		t.Fatal("BackoffStrategy should never be nil")
	}
	if cfg.ConnectionOptions == nil || len(cfg.ConnectionOptions) != 0 {
		t.Errorf("ConnectionOptions = %v, want empty map", cfg.ConnectionOptions)
	}

	exp, ok := cfg.Reconnect.BackoffStrategy.(*backoff.ExponentialBackOff)
	if !ok {
		t.Fatalf("default strategy = %T, want *backoff.ExponentialBackOff", cfg.Reconnect.BackoffStrategy)
	}
	if exp.InitialInterval != DefaultInitialDelay {
		t.Errorf("InitialInterval = %v, want %v", exp.InitialInterval, DefaultInitialDelay)
	}
	if exp.MaxInterval != DefaultMaxDelay {
		t.Errorf("MaxInterval = %v, want %v", exp.MaxInterval, DefaultMaxDelay)
	}
	if exp.RandomizationFactor < 0 || exp.RandomizationFactor >= 1 {
		t.Errorf("RandomizationFactor = %v, want [0, 1)", exp.RandomizationFactor)
	}
}

func TestResolve_PartialReconnectKeepsDefaultStrategy(t *testing.T) {
	cfg := Resolve(Options{
		Reconnect: &ReconnectOptions{FailAfter: Int(3)},
	})

	if cfg.Reconnect.FailAfter != 3 {
		t.Errorf("FailAfter = %d, want 3", cfg.Reconnect.FailAfter)
	}
	if _, ok := cfg.Reconnect.BackoffStrategy.(*backoff.ExponentialBackOff); !ok {
		t.Errorf("BackoffStrategy = %T, want default exponential strategy", cfg.Reconnect.BackoffStrategy)
	}
}

func TestResolve_Overrides(t *testing.T) {
	strategy := backoff.NewConstantBackOff(time.Second)
	cfg := Resolve(Options{
		Connection:        map[string]any{"heartbeat": 10, "vhost": "/prod"},
		UseConfirmChannel: Bool(true),
		Reconnect: &ReconnectOptions{
			FailAfter:       Int(5),
			BackoffStrategy: strategy,
		},
	})

	if !cfg.UseConfirmChannel {
		t.Error("UseConfirmChannel = false, want true")
	}
	if cfg.Reconnect.FailAfter != 5 {
		t.Errorf("FailAfter = %d, want 5", cfg.Reconnect.FailAfter)
	}
	if cfg.Reconnect.BackoffStrategy != backoff.BackOff(strategy) {
		t.Error("BackoffStrategy was not taken from options")
	}
	if cfg.ConnectionOptions["heartbeat"] != 10 || cfg.ConnectionOptions["vhost"] != "/prod" {
		t.Errorf("ConnectionOptions = %v", cfg.ConnectionOptions)
	}
}

func TestResolve_ExplicitFalseAndNegativeFailAfter(t *testing.T) {
	cfg := Resolve(Options{
		UseConfirmChannel: Bool(false),
		Reconnect:         &ReconnectOptions{FailAfter: Int(-4)},
	})

	if cfg.UseConfirmChannel {
		t.Error("UseConfirmChannel = true, want false")
	}
	if cfg.Reconnect.FailAfter != 0 {
		t.Errorf("FailAfter = %d, want 0 (negative means unlimited)", cfg.Reconnect.FailAfter)
	}
}

func TestResolve_DefaultStrategyBuiltOnlyWhenMissing(t *testing.T) {
	orig := newDefaultStrategy
	t.Cleanup(func() { newDefaultStrategy = orig })

	built := 0
	newDefaultStrategy = func() backoff.BackOff {
		built++
		return orig()
	}

	tests := []struct {
		name string
		opts Options
		want int
	}{
		{"no options", Options{}, 1},
		{"fail after only", Options{Reconnect: &ReconnectOptions{FailAfter: Int(2)}}, 1},
		{"strategy supplied", Options{Reconnect: &ReconnectOptions{BackoffStrategy: &backoff.ZeroBackOff{}}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built = 0
			Resolve(tt.opts)
			if built != tt.want {
				t.Errorf("default strategies built = %d, want %d", built, tt.want)
			}
		})
	}
}

func TestResolve_DoesNotShareState(t *testing.T) {
	conn := map[string]any{"heartbeat": 5}
	a := Resolve(Options{Connection: conn})
	b := Resolve(Options{})

	a.ConnectionOptions["vhost"] = "mutated"
	if _, ok := b.ConnectionOptions["vhost"]; ok {
		t.Error("configurations share the connection options map")
	}
	if _, ok := conn["vhost"]; ok {
		t.Error("Resolve aliased the caller's map")
	}
	if a.Reconnect.BackoffStrategy == b.Reconnect.BackoffStrategy {
		t.Error("configurations share a backoff strategy instance")
	}
}

func TestNewExponentialStrategy(t *testing.T) {
	s := NewExponentialStrategy(100*time.Millisecond, 400*time.Millisecond, 0)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
	}
	for i, w := range want {
		if got := s.NextBackOff(); got != w {
			t.Errorf("NextBackOff() #%d = %v, want %v", i, got, w)
		}
	}

	s.Reset()
	if got := s.NextBackOff(); got != 100*time.Millisecond {
		t.Errorf("NextBackOff() after Reset = %v, want 100ms", got)
	}
}
