// Package auth guards the admin-only endpoints (populate, score refresh)
// with HS256 bearer tokens carrying a role claim.
package auth

import (
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type Verifier struct {
	Secret []byte
}

func (v Verifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireAdmin validates the bearer token and rejects non-admin roles.
// With an empty secret the middleware is a no-op so local runs stay open.
func RequireAdmin(secret string) func(next http.Handler) http.Handler {
	verifier := Verifier{Secret: []byte(secret)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(verifier.Secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			parts := strings.SplitN(authz, " ", 2)
			if authz == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if !strings.EqualFold(strings.TrimSpace(claims.Role), "admin") {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
