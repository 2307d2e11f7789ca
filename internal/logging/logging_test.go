package logging

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"spicam-server/internal/config"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestContextEventsCarryRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobal(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(RequestIDKey, "req-123")
	c.Set(StartTimeKey, time.Now())

	Info(c).Msg("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"elapsed"`)
}

func TestNilContextIsTolerated(t *testing.T) {
	buf := captureGlobal(t)
	Warn(nil).Msg("no context")
	assert.Contains(t, buf.String(), "no context")
}

func TestServiceLoggerFields(t *testing.T) {
	buf := captureGlobal(t)
	l := NewServiceLogger(&config.Config{DeviceID: "pi-7"}, "camera")
	owned := WithOwner(l, "stream")
	owned.Info().Msg("opened")

	out := buf.String()
	assert.Contains(t, out, `"device_id":"pi-7"`)
	assert.Contains(t, out, `"service":"camera"`)
	assert.Contains(t, out, `"owner":"stream"`)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobal(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/stream", nil)
	c.Set(RequestIDKey, "abc")
	l := RequestLogger(c)
	l.Info().Msg("tick")

	assert.Contains(t, buf.String(), `"request_id":"abc"`)
	assert.Contains(t, buf.String(), `"client_ip":"192.0.2.1"`)
}
