package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

type buyerIDKey struct{}

// BuyerID returns the authenticated buyer from the request context, or an
// empty string for unauthenticated requests.
func BuyerID(ctx context.Context) string {
	id, _ := ctx.Value(buyerIDKey{}).(string)
	return id
}

// Authenticator validates HS256 bearer tokens. The token subject is the
// buyer identifier.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator with the given signing secret.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// Require wraps next with bearer-token authentication and puts the buyer ID
// into the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := a.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), buyerIDKey{}, buyerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueToken signs a token for the given buyer. Used by seeding and tests.
func (a *Authenticator) IssueToken(buyerID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": buyerID,
	})
	return token.SignedString(a.secret)
}

func (a *Authenticator) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "parse token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}
