package application

import (
	"time"

	"bankcards/internal/cards/domain"
)

// DataStore is what the services need from storage: direct reads plus atomic writes.
type DataStore interface {
	domain.AtomicExecutor
	domain.Repositories
}

// Option configures a service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
