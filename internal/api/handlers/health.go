package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/motion"
)

type HealthHandler struct {
	DeviceID  string
	Version   string
	StartTime time.Time
	arbiter   *camera.Arbiter
	detector  *motion.Detector
}

func NewHealthHandler(deviceID, version string, arbiter *camera.Arbiter, detector *motion.Detector) *HealthHandler {
	return &HealthHandler{
		DeviceID:  deviceID,
		Version:   version,
		StartTime: time.Now(),
		arbiter:   arbiter,
		detector:  detector,
	}
}

type HealthResponse struct {
	Status        string   `json:"status" example:"ok"`
	Picamera      bool     `json:"picamera"`
	MotionEnabled bool     `json:"motion_enabled"`
	LastMotion    *float64 `json:"last_motion"`
}

type DeviceInfoResponse struct {
	DeviceID     string    `json:"device_id" example:"spicam-1"`
	Status       string    `json:"status" example:"running"`
	Version      string    `json:"version" example:"1.0.0"`
	StartTime    time.Time `json:"start_time"`
	Capabilities []string  `json:"capabilities"`
}

// @Summary Health check
// @Description Reports camera availability and motion state
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	st := h.detector.Status()
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Picamera:      h.arbiter.Available(),
		MotionEnabled: st.MotionEnabled,
		LastMotion:    st.LastMotion,
	})
}

// @Summary Device information
// @Description Basic device information and capabilities
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} DeviceInfoResponse
// @Router / [get]
func (h *HealthHandler) DeviceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, DeviceInfoResponse{
		DeviceID:  h.DeviceID,
		Status:    "running",
		Version:   h.Version,
		StartTime: h.StartTime,
		Capabilities: []string{
			"mjpeg_stream",
			"photo",
			"recording",
			"motion_detection",
			"push_notifications",
		},
	})
}
