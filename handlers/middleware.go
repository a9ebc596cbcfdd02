package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tunefeed/sentryhelper"
	"tunefeed/session"
)

// RequestLogger logs one line per request through logrus.
func RequestLogger() gin.HandlerFunc {
	logger := log.WithFields(log.Fields{"module": "http"})
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"duration": time.Since(start).Round(time.Millisecond),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

// TagSession labels the request's Sentry scope with the visitor.
func TagSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s, err := session.FromContext(c.Request.Context()); err == nil {
			sentryhelper.SetUser(c.Request.Context(), s.UserID(), s.Token)
		}
		c.Next()
	}
}
