package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"scrip/pkg/domain"
	"scrip/pkg/requestcontext"
)

// CallerVerifier proves a request controls the address it claims. The
// asset substrate owns real key management; this service only needs the
// verified address.
type CallerVerifier interface {
	VerifyToken(tokenString string) (domain.Address, error)
}

// JWTVerifier validates HMAC-signed bearer tokens whose subject is the
// caller address.
type JWTVerifier struct {
	key []byte
}

// NewJWTVerifier constructs a verifier from the shared signing key.
func NewJWTVerifier(signingKey string) *JWTVerifier {
	return &JWTVerifier{key: []byte(signingKey)}
}

func (v *JWTVerifier) VerifyToken(tokenString string) (domain.Address, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("token subject: %w", err)
	}
	return domain.ParseAddress(sub)
}

// RequireAuth rejects requests without a valid bearer token and injects
// the verified caller address into the request context.
func RequireAuth(verifier CallerVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			caller, err := verifier.VerifyToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}
