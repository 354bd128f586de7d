// Package httpapi wires the admin HTTP surface (Gin) to the fleet, the
// rule tables and the item sync service. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging/redaction, panic
// recovery, metrics, compression, CORS, security headers, rate limiting and
// admin authentication.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Nothing under the API base path is reachable without the admin token
//     once one is configured
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/docs"
	"github.com/tbourn/xianyu-agent/internal/config"
	"github.com/tbourn/xianyu-agent/internal/http/handlers"
	"github.com/tbourn/xianyu-agent/internal/http/middleware"
)

// maxBodyBytes caps admin request bodies. Cookie blobs and card data are
// the largest payloads.
const maxBodyBytes = 1 << 20

// Deps are the collaborators behind the admin endpoints.
type Deps struct {
	Fleet handlers.Fleet
	DB    *gorm.DB
	Items handlers.ItemSyncer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the admin API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with cookie and token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. Gzip, CORS and security headers
//  9. AdminAuth on the API group only
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 8) Compression, CORS, security headers
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(deps.Fleet, deps.DB, deps.Items)

	// Liveness with per-account status
	r.GET("/health", h.Health)

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.AdminAuth(cfg.Security.AdminToken))
	{
		// Accounts
		api.GET("/credentials", h.ListCredentials)
		api.POST("/credentials", h.CreateCredential)
		api.PUT("/credentials/:id", h.UpdateCredential)
		api.DELETE("/credentials/:id", h.DeleteCredential)
		api.PUT("/credentials/:id/enabled", h.SetCredentialEnabled)
		api.GET("/credentials/:id/status", h.CredentialStatus)
		api.POST("/credentials/:id/items/refresh", h.RefreshItems)
		api.PATCH("/credentials/:id/items/:item_id", h.PatchItemFlags)

		// Replies
		api.GET("/credentials/:id/keywords", h.ListKeywords)
		api.POST("/credentials/:id/keywords", h.CreateKeyword)
		api.DELETE("/credentials/:id/keywords/:kid", h.DeleteKeyword)
		api.PUT("/credentials/:id/default-reply", h.PutDefaultReply)
		api.PUT("/credentials/:id/ai-settings", h.PutAISettings)

		// Delivery
		api.GET("/cards", h.ListCards)
		api.POST("/cards", h.CreateCard)
		api.GET("/delivery-rules", h.ListDeliveryRules)
		api.POST("/delivery-rules", h.CreateDeliveryRule)

		// Notifications
		api.POST("/notification-channels", h.CreateChannel)
		api.PUT("/credentials/:id/notification-bindings", h.PutBindings)

		// Settings
		api.GET("/system-settings/:key", h.GetSystemSetting)
		api.PUT("/system-settings/:key", h.PutSystemSetting)
		api.POST("/users", h.CreateUser)
		api.GET("/users/:uid/settings/:key", h.GetUserSetting)
		api.PUT("/users/:uid/settings/:key", h.PutUserSetting)
	}
}

// corsMiddleware allows every origin when none is configured and otherwise
// echoes allowlisted origins. Credentials are never allowed; the admin
// token travels in a header.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAdminToken},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		// Force ACAO: * even without an Origin header (health probes, curl).
		force := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{force, cors.New(conf)}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	echo := func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	}
	conf.AllowOrigins = origins
	return []gin.HandlerFunc{echo, cors.New(conf)}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
