package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storefront/analytics/internal/infrastructure/config"
	"github.com/storefront/analytics/internal/infrastructure/logger"
)

// RequestIDKey is the gin context key for the request id
const RequestIDKey = "request_id"

// RequestIDHeader is the header the request id is read from and echoed to
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, honoring one supplied by the caller
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID retrieves the request id from the gin context
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// CORS applies the configured cross-origin policy. An empty origin list
// means no cross-origin requests are allowed.
func CORS(cfg config.HTTPConfig) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(cfg.CORSAllowOrigins))
	for _, origin := range cfg.CORSAllowOrigins {
		allowed[origin] = struct{}{}
	}
	methods := joinHeader(cfg.CORSAllowMethods)
	headers := joinHeader(cfg.CORSAllowHeaders)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", methods)
				c.Header("Access-Control-Allow-Headers", headers)
				c.Header("Vary", "Origin")
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func joinHeader(values []string) string {
	result := ""
	for i, v := range values {
		if i > 0 {
			result += ", "
		}
		result += v
	}
	return result
}
