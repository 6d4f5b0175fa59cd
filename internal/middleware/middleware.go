// Package middleware holds the gin middleware chain main.go installs in
// front of every route: CORS, request-ID tagging, and structured
// request logging. Grounded on the teacher's sibling auth-service's
// internal/middleware/{cors,logging}.go — same CORSConfig shape and
// request-logging idiom, trimmed of the auth-service's
// SecurityLogging/isAuthEndpoint (there is no auth surface here) and
// adapted to this repo's pkg/logger.Logger instead of a per-service one.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/barberq/scheduling-core/pkg/logger"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows any origin, the permissive default the
// teacher's DefaultCORSConfig also ships for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"X-Request-ID",
			"X-Idempotency-Key",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// CORS returns a CORS middleware configured per config.
func CORS(config CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if len(config.AllowOrigins) > 0 {
			for _, allowed := range config.AllowOrigins {
				if allowed == "*" || allowed == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		if len(config.AllowMethods) > 0 {
			c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
		}
		if len(config.AllowHeaders) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
		}
		if config.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if config.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// DefaultCORS returns a CORS middleware with the default configuration.
func DefaultCORS() gin.HandlerFunc {
	return CORS(DefaultCORSConfig())
}

var skipLogPaths = map[string]bool{
	"/health":      true,
	"/health/live": true,
}

// RequestLogging assigns every request outside skipLogPaths a UUID
// (echoed on X-Request-ID), then logs its start and completion; requests
// to skipLogPaths get neither. Grounded on the teacher's
// RequestLogging — trimmed of body capture and user-ID enrichment,
// neither of which this domain has a concept of.
func RequestLogging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipLogPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		reqLog := log.With(
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
		)
		reqLog.Debug("request started")

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		respLog := reqLog.With("status_code", status, "duration_ms", duration.Milliseconds())
		switch {
		case status >= 500:
			respLog.Error("request completed with server error")
		case status >= 400:
			respLog.Warn("request completed with client error")
		default:
			respLog.Info("request completed")
		}
	}
}
