package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/core"
	"github.com/siahsang/conduit/internal/utils/collectionutils"
	"golang.org/x/time/rate"
)

// authenticate resolves the principal from the Authorization header, when
// present, and stores it in the request context. Requests without a header
// pass through anonymously; route policies decide whether that is enough.
func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorization := r.Header.Get("Authorization")
		if authorization != "" {
			authorizationParts := strings.Split(authorization, " ")
			if len(authorizationParts) != 2 || authorizationParts[0] != "Bearer" {
				app.invalidAuthenticationTokenResponse(w, r, xerrors.New("Authorization header must be in the format 'Bearer <token>'"))
				return
			}
			token := authorizationParts[1]
			claim, err := app.auth.Authenticate(token)
			if err != nil {
				app.invalidAuthenticationTokenResponse(w, r, err)
				return
			}

			user, err := app.core.GetUserByEmail(r.Context(), claim.Email)
			if err != nil {
				if errors.Is(err, core.ErrUserNotFound) {
					app.invalidAuthenticationTokenResponse(w, r, err)
					return
				}
				app.internalErrorResponse(w, r, err)
				return
			}
			r = app.auth.SetAuthenticatedUser(r, user)
		}

		next.ServeHTTP(w, r)
	})
}

func (app *application) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !app.auth.IsUserAuthenticated(r) {
			app.authenticationRequiredResponse(w, r, xerrors.New("authentication required"))
			return
		}
		next(w, r)
	}
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.internalErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a per-client-IP token bucket.
func (app *application) rateLimit(next http.Handler) http.Handler {
	limiters := collectionutils.New[string, *rate.Limiter]()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.config.RateLimit.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		limiter := limiters.GetOrStore(ip, func() *rate.Limiter {
			return rate.NewLimiter(rate.Limit(app.config.RateLimit.RPS), app.config.RateLimit.Burst)
		})

		if !limiter.Allow() {
			app.rateLimitExceededResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
