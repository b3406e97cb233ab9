// Package api wires together all HTTP routes for the team roster service.
//
// Probe routes (/health, /ready, /version) are unauthenticated. Roster routes
// live under /api and, when auth.require_valid_token is set, reject requests
// whose bearer token fails validation before any directory call is made.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/team-roster/team-roster/internal/api/team"
	"github.com/team-roster/team-roster/internal/config"
	"github.com/team-roster/team-roster/internal/middleware"
)

// Version is the service version reported by /version. It is overridden at
// build time with -ldflags "-X".
var Version = "0.1.0"

// Pinger reports whether the directory can be reached with the application
// credential.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the router needs. Validator is only
// consulted when cfg.Auth.RequireValidToken is set and Limiter only when rate
// limiting is enabled.
type Dependencies struct {
	Roster    team.Roster
	Directory Pinger
	Validator middleware.TokenValidator
	Limiter   middleware.Limiter
}

// readyTimeout bounds the directory probe behind /ready.
const readyTimeout = 5 * time.Second

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler())
	router.GET("/ready", readinessHandler(deps.Directory))
	router.GET("/version", versionHandler())

	apiGroup := router.Group("/api")
	if cfg.Auth.RequireValidToken {
		apiGroup.Use(middleware.RequireValidToken(deps.Validator))
	}
	if cfg.Security.RateLimiting.Enabled && deps.Limiter != nil {
		apiGroup.Use(middleware.RateLimitMiddleware(deps.Limiter))
	}

	teamHandler := team.NewHandler(deps.Roster, cfg.Roster)
	for path, handler := range map[string]gin.HandlerFunc{
		"/GetMyTeamMembers": teamHandler.GetMyTeamMembers,
		"/GetTeamDetails":   teamHandler.GetTeamDetails,
		"/GetUsersPresence": teamHandler.GetUsersPresence,
	} {
		apiGroup.GET(path, handler)
		apiGroup.POST(path, handler)
	}

	return router
}

// healthCheckHandler returns the liveness status of the service
func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this mints an application token for
// the directory so a readiness gate fails when every roster call would.
func readinessHandler(directory Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		if err := directory.Ping(ctx); err != nil {
			slog.Warn("readiness probe failed", "error", err)
			checks["directory"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "directory not ready",
			})
			return
		}
		checks["directory"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": Version,
			"routes": []string{
				"/api/GetMyTeamMembers",
				"/api/GetTeamDetails",
				"/api/GetUsersPresence",
			},
		})
	}
}

// LoggerMiddleware writes one structured record per request. The output format
// follows the default slog handler installed by telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, OPTIONS"
	if m := cfg.Security.CORS.AllowedMethods; len(m) > 0 {
		methods = strings.Join(m, ", ")
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
