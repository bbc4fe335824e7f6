// internal/middleware/account.go
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/evn/fleet_tracker/internal/pkg/response"
	"github.com/evn/fleet_tracker/internal/services/auth"
)

type contextKey string

// AccountIDContextKey: ключ для account ID в контексте.
const AccountIDContextKey contextKey = "account_id"

// AccountIDFromContext возвращает account_id из контекста.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(AccountIDContextKey).(int64)
	return id, ok && id > 0
}

// WithAccountID stores id in ctx.
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, AccountIDContextKey, id)
}

// RequireAccount извлекает user_id из проверенного JWT и кладёт его в
// контекст. Запросы без валидного user_id получают 401.
func RequireAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || claims == nil {
				response.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			accountID, err := auth.AccountIDFromClaims(claims)
			if err != nil {
				response.RespondWithError(w, http.StatusUnauthorized, "Invalid claims")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}
