package principal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// HeaderUserID is the request header an upstream gateway uses to pass the
// authenticated user identifier.
const HeaderUserID = "X-User-ID"

type userIDCtxKey struct{}

// WithUserID stores the user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the user ID stored in ctx, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDCtxKey{}).(string)
	return id, ok && id != ""
}

// Resolve returns explicit when it is non-blank, otherwise the user ID from ctx.
func Resolve(ctx context.Context, explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	if id, ok := UserIDFromContext(ctx); ok {
		return id, nil
	}
	return "", ErrUnauthenticated
}

// Middleware copies the HeaderUserID header into the request context.
// Requests without the header pass through unauthenticated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// LoggerExtractor exposes the user ID to slog based loggers.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := UserIDFromContext(ctx); ok {
			return slog.String("user_id", id), true
		}
		return slog.Attr{}, false
	}
}
