package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"perfreview/internal/domain/auth"
	"perfreview/internal/requestctx"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/shared"
)

type ctxKey string

const ctxKeyActor ctxKey = "actor"

// Auth resolves a bearer token into an Actor. Requests without a valid token pass through
// anonymous; RequireActor rejects them.
func Auth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := requestctx.Client{IP: shared.ClientIP(r), UserAgent: r.UserAgent()}
			ctx := r.Context()

			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if found && strings.EqualFold(scheme, "bearer") {
				claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
				if err != nil {
					logger.Debug("token rejected", zap.Error(err), zap.String("requestId", GetRequestID(ctx)))
				} else if actor, err := claims.Actor(); err != nil {
					logger.Debug("claims rejected", zap.Error(err), zap.String("requestId", GetRequestID(ctx)))
				} else {
					client.SessionID = actor.SessionID
					ctx = context.WithValue(ctx, ctxKeyActor, actor)
				}
			}

			ctx = requestctx.WithClient(ctx, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetActor(ctx context.Context) (auth.Actor, bool) {
	actor, ok := ctx.Value(ctxKeyActor).(auth.Actor)
	return actor, ok
}

// WithActor is used by tests and internal callers that already hold a verified actor.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetActor(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
