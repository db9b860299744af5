package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/SGK112/CRM-sub002/internal/observability"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

const (
	// HeaderWorkspaceID carries the tenant resolved by the upstream gateway.
	HeaderWorkspaceID = "X-Workspace-ID"
	// HeaderUserID carries the acting user resolved by the upstream gateway.
	HeaderUserID = "X-User-ID"

	globalRateLimit = 600
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the service middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(globalRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// IdentityMiddleware reads the caller identity forwarded by the trusted
// gateway. Requests without a valid workspace are rejected with 401.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID, err := headerID(r, HeaderWorkspaceID)
		if err != nil || workspaceID == 0 {
			httpx.RespondError(w, fmt.Errorf("%w: missing workspace identity", httpx.ErrUnauthorized))
			return
		}
		userID, err := headerID(r, HeaderUserID)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid user identity", httpx.ErrUnauthorized))
			return
		}
		ctx := shared.ContextWithIdentity(r.Context(), shared.Identity{WorkspaceID: workspaceID, UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func headerID(r *http.Request, name string) (int64, error) {
	raw := r.Header.Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s header", name)
	}
	return id, nil
}
