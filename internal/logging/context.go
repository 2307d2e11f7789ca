package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Keys the request middleware stores on the gin context.
const (
	RequestIDKey = "request_id"
	StartTimeKey = "start_time"
)

// RequestID returns the id assigned by the request middleware, or "".
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(RequestIDKey)
}

func annotate(c *gin.Context, e *zerolog.Event) *zerolog.Event {
	if c == nil {
		return e
	}
	if id := RequestID(c); id != "" {
		e.Str("request_id", id)
	}
	if route := c.FullPath(); route != "" {
		e.Str("route", route)
	}
	if t, ok := c.Get(StartTimeKey); ok {
		if start, ok := t.(time.Time); ok {
			e.Dur("elapsed", time.Since(start))
		}
	}
	return e
}

func Info(c *gin.Context) *zerolog.Event  { return annotate(c, log.Info()) }
func Debug(c *gin.Context) *zerolog.Event { return annotate(c, log.Debug()) }
func Warn(c *gin.Context) *zerolog.Event  { return annotate(c, log.Warn()) }
func Error(c *gin.Context) *zerolog.Event { return annotate(c, log.Error()) }

// RequestLogger returns a child logger bound to the request, for handlers
// that log repeatedly over a long-lived response such as the MJPEG stream.
func RequestLogger(c *gin.Context) zerolog.Logger {
	ctx := log.Logger.With()
	if id := RequestID(c); id != "" {
		ctx = ctx.Str("request_id", id)
	}
	if c != nil && c.Request != nil {
		ctx = ctx.Str("client_ip", c.ClientIP())
	}
	return ctx.Logger()
}
