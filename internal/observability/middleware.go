package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UnmatchedRoute labels requests that hit no registered route. Raw paths
// carry target tokens and would give the HTTP metrics unbounded cardinality.
const UnmatchedRoute = "unmatched"

// routeLabel returns the registered route pattern, never the raw path.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return UnmatchedRoute
}

// RequestLogger logs one line per admin request. Target routes also carry
// the token and property name taken from the path.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("route", routeLabel(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if token := c.Param("token"); token != "" {
			event = event.Str("token", token)
		}
		if name := c.Param("name"); name != "" {
			event = event.Str("property", name)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			event = event.Str("errors", errs.String())
		}
		event.Msg("admin request")
	}
}

// RequestMetricsMiddleware records request counts and latency labelled by
// route pattern.
func RequestMetricsMiddleware(component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(component, c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}
