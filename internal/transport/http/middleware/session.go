package httpmw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type ctxKey string

const ctxKeySession ctxKey = "session"

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type SessionResolver interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
}

// SessionAuth требует Bearer-токен сессии, валидирует формат до похода в
// реестр и кладёт разрешённую сессию в контекст. Невалидный или неизвестный
// токен — 401, пользователю надо логиниться заново.
func SessionAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			token := strings.TrimSpace(auth[7:])
			if len(token) != domain.SessionIDLen {
				writeError(w, http.StatusUnauthorized, "invalid_session")
				return
			}

			sess, err := sessions.Get(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrInvalidSession) {
					writeError(w, http.StatusUnauthorized, "invalid_session")
					return
				}
				writeError(w, http.StatusInternalServerError, "internal")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromCtx(ctx context.Context) *domain.Session {
	if v := ctx.Value(ctxKeySession); v != nil {
		if s, ok := v.(*domain.Session); ok {
			return s
		}
	}
	return nil
}
