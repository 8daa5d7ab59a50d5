package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/recgen/recgen/internal/config"
)

type contextKey string

const SessionIDKey contextKey = "sessionID"

const (
	SessionCookieName = "recgen_session"
	sessionIssuer     = "recgen"
)

// SessionMiddleware ties each browser to a component instance through a signed
// cookie. The cookie holds an HS256 JWT whose subject is the session ID. A
// missing, expired or tampered cookie starts a new session.
func SessionMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	secret := []byte(cfg.SessionSecret)
	ttl := cfg.Component.SessionTTL

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, err := sessionFromCookie(r, secret)
			if err != nil {
				sessionID = uuid.NewString()
				token, err := NewSessionToken(secret, sessionID, ttl, time.Now())
				if err != nil {
					slog.ErrorContext(r.Context(), "Failed to sign session token", "error", err)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				cookie := &http.Cookie{
					Name:     SessionCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Env == "production",
					SameSite: http.SameSiteLaxMode,
				}
				if ttl > 0 {
					cookie.MaxAge = int(ttl.Seconds())
				}
				http.SetCookie(w, cookie)
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewSessionToken signs a session token for id. A zero ttl issues a token without expiry.
func NewSessionToken(secret []byte, id string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  id,
		Issuer:   sessionIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseSessionToken verifies a token and returns the session ID it carries.
func ParseSessionToken(secret []byte, tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid session token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	return claims.Subject, nil
}

func sessionFromCookie(r *http.Request, secret []byte) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return ParseSessionToken(secret, cookie.Value)
}

// GetSessionID extracts the session ID from request context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok && id != ""
}
