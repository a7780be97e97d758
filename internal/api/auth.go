package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the learner a bearer token was issued to.
type Claims struct {
	LearnerID string `json:"learnerId"`
	jwt.RegisteredClaims
}

type ctxKey int

const learnerIDKey ctxKey = iota

// IssueToken signs an HS256 token for learnerID valid for ttl.
func IssueToken(secret []byte, learnerID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	if learnerID == "" {
		return "", errors.New("learner id is empty")
	}
	now := time.Now()
	claims := Claims{
		LearnerID: learnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learnerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a token and returns its claims.
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token is required")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.LearnerID == "" {
		return nil, fmt.Errorf("token has no learner id")
	}
	return claims, nil
}

// Auth rejects requests without a valid bearer token and stores the
// learner id in the request context.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := ParseToken(secret, strings.TrimSpace(tokenString))
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), learnerIDKey, claims.LearnerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LearnerID returns the authenticated learner, or "" outside Auth.
func LearnerID(ctx context.Context) string {
	id, _ := ctx.Value(learnerIDKey).(string)
	return id
}
