package logging

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter forwards run failures to Sentry when a DSN is configured.
type Reporter struct {
	enabled bool
}

// NewReporter initializes Sentry. An empty dsn yields a disabled reporter.
func NewReporter(dsn, environment, release string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are sent anywhere.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// CaptureError sends err with key/value pairs attached as extras.
func (r *Reporter) CaptureError(err error, kv ...any) {
	if !r.Enabled() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				scope.SetExtra(key, kv[i+1])
			}
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events. Call before the process exits.
func (r *Reporter) Flush(timeout time.Duration) {
	if r.Enabled() {
		sentry.Flush(timeout)
	}
}
