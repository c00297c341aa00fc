package presentation

import (
	"context"
	"net/http"
	"strings"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/identity"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
	"github.com/RaikyD/krusty-orders-service/internal/presentation/helpers"
)

type actorKey struct{}

func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// Authenticate resolves the bearer credential into an actor. Role checks
// happen further down in the services, not here.
func Authenticate(ids identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				helpers.HttpError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			actor, err := ids.Resolve(r.Context(), token)
			if err != nil {
				logger.Warn("authentication failed", "path", r.URL.Path, "err", err)
				helpers.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
