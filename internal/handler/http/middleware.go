package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/auth"
)

// RequestLogger attaches logger to each request and writes one access line
// per request with the chi request id.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		if status == 0 {
			status = http.StatusOK
		}
		l := hlog.FromRequest(r)
		evt := l.Info()
		if status >= http.StatusInternalServerError {
			evt = l.Error()
		}
		evt.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("duration", duration).
			Msg("http request")
	})
	withLogger := hlog.NewHandler(logger)

	return func(next http.Handler) http.Handler {
		return withLogger(access(next))
	}
}

// SessionMiddleware resolves the session cookie into an auth.Principal on the
// request context. Requests without a valid session continue anonymously.
func SessionMiddleware(sessions auth.SessionService, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := sessions.Resolve(r.Context(), cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !p.IsAdmin() {
			respondWithError(w, http.StatusForbidden, "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principal returns the caller. Routes that call it sit behind RequireAuth.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
