package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/glefebvre/housou/internal/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	clientCookie    = "housou_client"
	clientCookieAge = 365 * 24 * 60 * 60

	requestIDKey = "request_id"
	clientIDKey  = "client_id"
	// newClientKey marks requests that arrived without a valid client cookie
	newClientKey = "new_client"
)

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// clientIDMiddleware identifies the browser through a long-lived cookie so that
// its selections and loaded items survive between page views
func clientIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(clientCookie)
		if err != nil || uuid.Validate(clientID) != nil {
			clientID = uuid.New().String()
			c.Set(newClientKey, true)
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(clientCookie, clientID, clientCookieAge, "/", "", false, true)

		c.Set(clientIDKey, clientID)
		c.Request = c.Request.WithContext(logger.ContextWithClientID(c.Request.Context(), clientID))
		c.Next()
	}
}

// loggingMiddleware logs one line per request
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		entry := log.WithFields(fields)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.WarnContext(c.Request.Context(), "Request failed")
			return
		}
		entry.DebugContext(c.Request.Context(), "Request served")
	}
}

// errorHandlerMiddleware handles panics and errors
func errorHandlerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.ErrorContext(c.Request.Context(), "Panic while serving request", fmt.Errorf("%v", err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "internal server error",
					Message: "an unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}

// corsMiddleware allows the configured origins to call the JSON endpoints
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
