package utils

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry initializes Sentry for error tracking. With an empty DSN it is a no-op
// and CaptureError silently drops events.
func InitSentry(dsn, environment, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		EnableTracing:    false,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureError reports err to Sentry with the given tags
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
