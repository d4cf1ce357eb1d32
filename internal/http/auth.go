package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"presupuesto/internal/log"
)

type userIDKeyType struct{}

var userIDKey userIDKeyType

// Authenticator verifies bearer tokens issued by the identity provider. The
// token subject is the user id that scopes every query.
type Authenticator struct {
	secret []byte
	logger *log.Logger
}

func NewAuthenticator(secret string, logger *log.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// Middleware authenticates requests under /api. A request carrying no
// credentials at all gets a silent 204, so a client that just logged out
// never flashes a spurious permission error. A present-but-bad token gets a
// generic 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respondError(w, http.StatusUnauthorized, "permission denied")
			return
		}

		userID, err := a.verify(strings.TrimSpace(token))
		if err != nil {
			a.logger.WarnContext(r.Context(), "Token rejected", log.FieldError, err)
			respondError(w, http.StatusUnauthorized, "permission denied")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", jwt.ErrTokenRequiredClaimMissing
	}
	return subject, nil
}

// authedUser returns the user id stored by the middleware.
func authedUser(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
