package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParseToken validates a JWT and extracts the auth context.
func ParseToken(tokenStr, secret string) (*Context, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	authCtx := &Context{
		UserID:      toString(claims["sub"]),
		DisplayName: toString(claims["name"]),
		AvatarURL:   toString(claims["picture"]),
		Email:       toString(claims["email"]),
		Roles:       toStringSlice(claims["roles"]),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		authCtx.ExpiresAt = exp.Time
	}
	return authCtx, nil
}

// Middleware attaches the parsed identity to the request context. Missing or
// invalid tokens demote the request to guest instead of failing it; write
// endpoints enforce authentication themselves.
func Middleware(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r.Header.Get("Authorization"))
		if tokenStr == "" {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), &Context{Roles: []string{"guest"}})))
			return
		}
		authCtx, err := ParseToken(tokenStr, secret)
		if err != nil || (!authCtx.ExpiresAt.IsZero() && authCtx.ExpiresAt.Before(time.Now())) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), &Context{Roles: []string{"guest"}})))
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), authCtx)))
	})
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toStringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
