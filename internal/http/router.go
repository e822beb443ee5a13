// Package httpapi wires the agent's operational HTTP surface (Gin): health
// and Prometheus endpoints, the read-only inspection API, and the Telegram
// webhook receiver.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: request-scoped logger and access line
//  4. Recovery: panics become JSON 500 (after the logger so they carry the id)
//  5. Body size limiter
//  6. Metrics
//  7. gzip (except /metrics, which negotiates its own encoding)
//  8. CORS and security headers
//
// Admin auth and rate limiting apply to the inspection group only; the
// webhook authenticates with Telegram's secret token instead.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-chat-agent/internal/config"
	"github.com/tbourn/go-chat-agent/internal/http/handlers"
	"github.com/tbourn/go-chat-agent/internal/http/middleware"
)

// maxBodyBytes caps request bodies; Telegram updates are far smaller.
const maxBodyBytes = 1 << 20

// Deps are the application components exposed over HTTP. Webhook is nil when
// Telegram runs in polling mode, in which case the webhook route answers 404.
type Deps struct {
	Store   handlers.ConversationStore
	Queue   handlers.QueueReporter
	Webhook handlers.WebhookReceiver
}

// NewEngine returns a Gin engine in cfg.GinMode with all routes registered.
func NewEngine(deps Deps, cfg config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	RegisterRoutes(r, deps, cfg)
	return r
}

// NewServer wraps h in an *http.Server using the configured port and timeouts.
func NewServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// RegisterRoutes attaches middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(deps.Store, deps.Queue, deps.Webhook, cfg.Agent.ProfileFactsLimit)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.POST("/telegram/webhook", h.TelegramWebhook)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByPrincipalOrIP())
	inspect := api.Group("", middleware.AdminAuth(cfg.AdminToken), rl.Handler())
	{
		inspect.GET("/chats/:chat_id/turns", h.ListTurns)
		inspect.GET("/users/:user_id/facts", h.ListFacts)
		inspect.GET("/stats", h.Stats)
	}
}

// corsMiddleware allows any origin when none are configured, otherwise only
// the listed ones. Credentials are never allowed.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
		return cors.New(cc)
	}
	cc.AllowOrigins = c.AllowedOrigins
	inner := cors.New(cc)

	// gin-contrib/cors stays silent when Origin matches Host; echo listed
	// origins regardless.
	allowed := make(map[string]struct{}, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(ctx *gin.Context) {
		if origin := ctx.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := ctx.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		inner(ctx)
	}
}

// limitBody caps the request body at maxBytes; larger bodies fail on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
