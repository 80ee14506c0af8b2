package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ryawaa/twinkle/src/logger"
)

const (
	RequestIDHeaderKey  = "X-Request-ID"
	RequestIDContextKey = "request_id"
)

// -----------------------------------------------------------------------------

// apiError carries the status and body message a handler wants returned.
type apiError struct {
	Status  int
	Message string
	Err     error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *apiError) Unwrap() error { return e.Err }

func newAPIError(status int, message string, err error) *apiError {
	return &apiError{Status: status, Message: message, Err: err}
}

// -----------------------------------------------------------------------------

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeaderKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeaderKey, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func requestLoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output: log,
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s \"%s %s\" %d %s rid=%s\n",
				param.ClientIP,
				param.Method,
				param.Path,
				param.StatusCode,
				param.Latency,
				param.Keys[RequestIDContextKey],
			)
		},
		SkipPaths: []string{"/api/health"},
	})
}

// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------

// errorMiddleware renders the first error a handler attached with c.Error.
func errorMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		first := c.Errors[0]
		err := first.Err
		log.Debug("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)

		var ae *apiError
		if errors.As(err, &ae) {
			c.AbortWithStatusJSON(ae.Status, gin.H{"error": ae.Message})
			return
		}

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			message, ok := first.Meta.(string)
			if !ok {
				message = "Invalid request"
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
			return
		}

		if errors.Is(err, context.DeadlineExceeded) {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
