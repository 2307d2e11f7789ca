package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/notification"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	DeviceID   string
	startTime  time.Time
	arbiter    *camera.Arbiter
	dispatcher *notification.Dispatcher
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(deviceID string, arbiter *camera.Arbiter, dispatcher *notification.Dispatcher) *SystemHandler {
	return &SystemHandler{
		DeviceID:   deviceID,
		startTime:  time.Now(),
		arbiter:    arbiter,
		dispatcher: dispatcher,
	}
}

// @Summary Get system stats
// @Description Get process, camera and notification statistics
// @Tags system
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"device_id":      h.DeviceID,
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
			"memory_mb":      m.Alloc / 1024 / 1024,
			"cpu_cores":      runtime.NumCPU(),
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
		},
		"camera": gin.H{
			"available":     h.arbiter.Available(),
			"owner":         h.arbiter.Owner().String(),
			"stream_active": h.arbiter.StreamActive(),
			"recording":     h.arbiter.Recording().Snapshot(),
		},
		"notifications": h.dispatcher.Stats(),
		"timestamp":     time.Now().Unix(),
	})
}
