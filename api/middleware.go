package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
)

// allowedHeaders is the request header allow-list returned on every response.
var allowedHeaders = []string{
	"authorization",
	"x-client-info",
	"apikey",
	"content-type",
	"x-supabase-client-platform",
	"x-supabase-client-platform-version",
	"x-supabase-client-runtime",
	"x-supabase-client-runtime-version",
}

var allowedMethods = []string{http.MethodPost, http.MethodGet, http.MethodOptions}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     allowedMethods,
		AllowHeaders:     allowedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

// staticCORS fills in the CORS headers for requests the cors middleware
// leaves alone (no Origin header, same-origin) and answers any pre-flight
// that reached it.
func staticCORS() gin.HandlerFunc {
	allowHeaders := strings.Join(allowedHeaders, ", ")
	allowMethods := strings.Join(allowedMethods, ", ")
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if h.Get("Access-Control-Allow-Origin") == "" {
			h.Set("Access-Control-Allow-Origin", "*")
		}
		if h.Get("Access-Control-Allow-Headers") == "" {
			h.Set("Access-Control-Allow-Headers", allowHeaders)
		}
		if h.Get("Access-Control-Allow-Methods") == "" {
			h.Set("Access-Control-Allow-Methods", allowMethods)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// rateLimit rejects requests beyond a process-wide token bucket.
func rateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodOptions && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{Error: "Too many requests"})
			return
		}
		c.Next()
	}
}

// recovery turns a panic anywhere below it into a 500 with the panic message.
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if errors.Is(asError(p), http.ErrAbortHandler) {
				panic(p)
			}
			logger.Error("panic recovered",
				zap.Any("panic", p),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.Stack("stack"))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			serverError(c, panicMessage(p))
		}()
		c.Next()
	}
}

func asError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return nil
}

func panicMessage(p any) string {
	switch v := p.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func serverError(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Server error: " + msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: msg})
}
