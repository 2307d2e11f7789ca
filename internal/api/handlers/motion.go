package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"spicam-server/internal/logging"
	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/motion"
	"spicam-server/internal/services/notification"
)

type MotionHandler struct {
	detector *motion.Detector
	arbiter  *camera.Arbiter
	tokens   *notification.TokenStore
}

func NewMotionHandler(detector *motion.Detector, arbiter *camera.Arbiter, tokens *notification.TokenStore) *MotionHandler {
	return &MotionHandler{detector: detector, arbiter: arbiter, tokens: tokens}
}

type ArmResponse struct {
	MotionEnabled bool `json:"motion_enabled"`
	Armed         bool `json:"armed"`
}

type SettingsResponse struct {
	motion.Settings
	Updated   bool  `json:"updated,omitempty"`
	Persisted *bool `json:"persisted,omitempty"`
}

type DebugResponse struct {
	motion.Debug
	StreamActive            bool     `json:"stream_active"`
	LatestStreamFrameAgeSec *float64 `json:"latest_stream_frame_age_sec"`
	PushTokens              int      `json:"push_tokens"`
	Recording               bool     `json:"recording"`
}

// Arm godoc
// @Summary Arm motion detection
// @Description Enables detection and restarts the warmup window
// @Tags motion
// @Produce json
// @Success 200 {object} ArmResponse
// @Router /arm [post]
func (h *MotionHandler) Arm(c *gin.Context) {
	h.detector.Arm()
	logging.Info(c).Msg("Motion armed via API")
	c.JSON(http.StatusOK, ArmResponse{MotionEnabled: true, Armed: true})
}

// Disarm godoc
// @Summary Disarm motion detection
// @Tags motion
// @Produce json
// @Success 200 {object} ArmResponse
// @Router /disarm [post]
func (h *MotionHandler) Disarm(c *gin.Context) {
	h.detector.Disarm()
	logging.Info(c).Msg("Motion disarmed via API")
	c.JSON(http.StatusOK, ArmResponse{})
}

// Status godoc
// @Summary Motion status
// @Tags motion
// @Produce json
// @Success 200 {object} motion.Status
// @Router /status [get]
func (h *MotionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.detector.Status())
}

// GetSettings godoc
// @Summary Current motion settings
// @Tags motion
// @Produce json
// @Success 200 {object} motion.Settings
// @Router /motion/settings [get]
func (h *MotionHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.detector.Settings())
}

// UpdateSettings godoc
// @Summary Update motion settings
// @Description Partial update. Values are clamped to their allowed ranges, never rejected.
// @Tags motion
// @Accept json
// @Produce json
// @Param request body motion.SettingsUpdate true "Settings to change"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} map[string]string
// @Router /motion/settings [post]
func (h *MotionHandler) UpdateSettings(c *gin.Context) {
	var req motion.SettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.detector.UpdateSettings(req)
	persisted := err == nil
	if err != nil {
		logging.Warn(c).Err(err).Msg("Motion settings applied but not persisted")
	}
	c.JSON(http.StatusOK, SettingsResponse{Settings: s, Updated: true, Persisted: &persisted})
}

// Debug godoc
// @Summary Motion detector internals
// @Tags motion
// @Produce json
// @Success 200 {object} DebugResponse
// @Router /motion/debug [get]
func (h *MotionHandler) Debug(c *gin.Context) {
	resp := DebugResponse{
		Debug:        h.detector.Debug(),
		StreamActive: h.arbiter.StreamActive(),
		PushTokens:   h.tokens.Count(),
		Recording:    h.arbiter.Recording().Active(),
	}
	if age, ok := h.arbiter.LatestFrameAge(); ok {
		sec := math.Round(age.Seconds()*100) / 100
		resp.LatestStreamFrameAgeSec = &sec
	}
	c.JSON(http.StatusOK, resp)
}

// Metrics godoc
// @Summary Last motion sample
// @Tags motion
// @Produce json
// @Success 200 {object} motion.Metrics
// @Router /motion/metrics [get]
func (h *MotionHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.detector.Metrics())
}

// Test godoc
// @Summary Send a test motion notification
// @Description Pushes a test notification to all registered devices and starts the cooldown
// @Tags motion
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /motion/test [post]
func (h *MotionHandler) Test(c *gin.Context) {
	queued := h.detector.Test()
	logging.Info(c).Bool("queued", queued).Msg("Motion test notification")
	c.JSON(http.StatusOK, gin.H{
		"status":    "sent",
		"triggered": true,
		"queued":    queued,
		"tokens":    h.tokens.Count(),
	})
}
