package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"ticketmarket-settlement-backend/config"
	c "ticketmarket-settlement-backend/context"
	"ticketmarket-settlement-backend/response"

	"github.com/dgrijalva/jwt-go"
	"github.com/spf13/viper"
)

// Authenticate verifies the bearer token and stores its subject in the
// request context for the handlers.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized().Send(r.Context(), w)
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("authenticate: unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(viper.GetString(config.Secret)), nil
		})
		if err != nil || !token.Valid {
			response.Unauthorized().Send(r.Context(), w)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Unauthorized().Send(r.Context(), w)
			return
		}
		subject, _ := claims["sub"].(string)
		if subject == "" {
			response.Unauthorized().Send(r.Context(), w)
			return
		}

		ctx := c.SetContextWithValue(r.Context(), c.ContextKeySubject, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
