package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/licensegate/api/responses"
	pkgerrors "github.com/angelmondragon/licensegate/pkg/errors"
	"github.com/angelmondragon/licensegate/pkg/logger"
)

const (
	AdminSecretHeader = "X-Admin-Secret"
	// ActorHeader optionally names the admin on whose behalf the front end calls.
	ActorHeader = "X-Actor"

	defaultActor = "admin"
	maxActorLen  = 128
)

// AdminSecret rejects requests whose X-Admin-Secret header does not match secret.
// Rejected requests never reach the wrapped handler.
func AdminSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := []byte(r.Header.Get(AdminSecretHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(presented, expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin secret mismatch"))
				return
			}

			actor := strings.TrimSpace(r.Header.Get(ActorHeader))
			if actor == "" {
				actor = defaultActor
			}
			if len(actor) > maxActorLen {
				actor = actor[:maxActorLen]
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
