package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/voicecode/mentor/server/internal/errors"
)

// ClientIdentifier resolves the client identity for rate limiting. It prefers
// the first entry of the X-Forwarded-For header (set by the load balancer)
// and falls back to the direct peer address.
func ClientIdentifier(c echo.Context) string {
	if forwarded := c.Request().Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return c.Request().RemoteAddr
	}
	return host
}

// Middleware gates a route group with the sliding-window limiter. A denied
// request is answered with 429 and a machine-readable retry delay; the
// wrapped handler is never invoked.
func Middleware(limiter *Limiter, maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identifier := ClientIdentifier(c)
			allowed, retryAfter := limiter.Check(identifier, maxRequests, window)
			if !allowed {
				apiErr := apierrors.RateLimitExceeded(retryAfter)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":       "rate_limit_exceeded",
					"message":     apiErr.Message,
					"retry_after": retryAfter,
				})
			}
			return next(c)
		}
	}
}
