// Package sentryhelper provides utilities for Sentry transaction and scope management.
// It keeps breadcrumbs and context isolated per request or per CLI task.
package sentryhelper

import (
	"context"
	"fmt"

	sentry "github.com/getsentry/sentry-go"
)

type contextKey string

const hubContextKey contextKey = "sentry_hub"

// StartTaskTransaction starts a transaction on a cloned hub for work that
// does not come in through HTTP, such as CLI maintenance commands.
func StartTaskTransaction(ctx context.Context, taskName string) (context.Context, *sentry.Span) {
	hub := sentry.CurrentHub().Clone()
	ctx = context.WithValue(ctx, hubContextKey, hub)
	ctx = sentry.SetHubOnContext(ctx, hub)

	transaction := sentry.StartTransaction(ctx, fmt.Sprintf("task.%s", taskName),
		sentry.WithOpName("task"),
		sentry.WithTransactionSource(sentry.SourceTask),
	)
	transaction.SetTag("task", taskName)
	hub.Scope().SetSpan(transaction)

	return transaction.Context(), transaction
}

// HubFromContext returns the hub bound to ctx: one cloned by this package,
// then the per-request hub installed by the gin middleware, then CurrentHub.
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return sentry.CurrentHub()
	}
	if hub, ok := ctx.Value(hubContextKey).(*sentry.Hub); ok && hub != nil {
		return hub
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func AddBreadcrumb(ctx context.Context, breadcrumb *sentry.Breadcrumb) {
	HubFromContext(ctx).AddBreadcrumb(breadcrumb, nil)
}

func CaptureException(ctx context.Context, err error) *sentry.EventID {
	return HubFromContext(ctx).CaptureException(err)
}

// CaptureMessage is for warnings that aren't errors.
func CaptureMessage(ctx context.Context, message string) *sentry.EventID {
	return HubFromContext(ctx).CaptureMessage(message)
}

func ConfigureScope(ctx context.Context, f func(*sentry.Scope)) {
	HubFromContext(ctx).ConfigureScope(f)
}

// SetUser tags events from this request with the session's user. Anonymous
// visitors are tagged by session token only.
func SetUser(ctx context.Context, userID, sessionToken string) {
	ConfigureScope(ctx, func(scope *sentry.Scope) {
		if userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
		scope.SetTag("session", sessionToken)
	})
}
