package sentry

import (
	"time"

	sentry "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tunefeed/config"
)

// Init configures the global client. Without a DSN the SDK stays a no-op.
func Init(cfg config.SentryConfig, release string) error {
	if !cfg.IsEnabled() {
		log.Debug("SENTRY_DSN not set, error reporting disabled")
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Release:          release,
		TracesSampleRate: 1.0,
	})
}

// GetSentryGin gives every request its own hub and transaction.
func GetSentryGin() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

func ReportError(err error) {
	sentry.CaptureException(err)
}

// Flush waits for buffered events before the process exits.
func Flush() {
	sentry.Flush(2 * time.Second)
}
