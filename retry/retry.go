package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Options configures Do
type Options struct {
	MaxRetries int
	BaseWait   time.Duration
	MaxWait    time.Duration
	Jitter     float64
}

// Option customizes Options
type Option func(*Options)

// WithMaxRetries sets the number of retries after the first attempt
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithBaseWait sets the wait before the first retry. Later waits double.
func WithBaseWait(d time.Duration) Option {
	return func(o *Options) { o.BaseWait = d }
}

// WithMaxWait caps the wait between two attempts
func WithMaxWait(d time.Duration) Option {
	return func(o *Options) { o.MaxWait = d }
}

// WithJitter randomizes each wait by up to the given fraction
func WithJitter(fraction float64) Option {
	return func(o *Options) { o.Jitter = fraction }
}

func defaultOptions() Options {
	return Options{
		MaxRetries: 3,
		BaseWait:   500 * time.Millisecond,
		MaxWait:    30 * time.Second,
	}
}

// Do calls fn until it succeeds, returns an error that is not recoverable,
// or the retries are used up. The last error is returned unchanged.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}

	var err error
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsRecoverable(err) || attempt == o.MaxRetries {
			return err
		}
		timer := time.NewTimer(backoff(o, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func backoff(o Options, attempt int) time.Duration {
	wait := float64(o.BaseWait) * math.Pow(2, float64(attempt))
	if o.MaxWait > 0 && wait > float64(o.MaxWait) {
		wait = float64(o.MaxWait)
	}
	if o.Jitter > 0 {
		wait += wait * o.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}
