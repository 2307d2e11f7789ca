package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"spicam-server/internal/logging"
	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/media"
	"spicam-server/internal/services/publisher/mjpeg"
)

type CameraHandler struct {
	arbiter *camera.Arbiter
	media   *media.Service
}

func NewCameraHandler(arbiter *camera.Arbiter, mediaSvc *media.Service) *CameraHandler {
	return &CameraHandler{arbiter: arbiter, media: mediaSvc}
}

type RecordRequest struct {
	Duration *int `json:"duration" example:"30"`
}

type RecordResponse struct {
	Status   string `json:"status" example:"recording"`
	Duration int    `json:"duration" example:"30"`
	Message  string `json:"message" example:"Recording for 30 seconds"`
}

type PhotoResponse struct {
	Path      string `json:"path"`
	Filename  string `json:"filename" example:"photo_1717243200.jpg"`
	Timestamp int64  `json:"timestamp" example:"1717243200"`
}

// Stream godoc
// @Summary Live MJPEG preview
// @Description Streams multipart JPEG frames. Serves a placeholder image while the camera is unavailable or recording.
// @Tags camera
// @Produce multipart/x-mixed-replace
// @Success 200
// @Router /stream [get]
func (h *CameraHandler) Stream(c *gin.Context) {
	logger := logging.RequestLogger(c)
	session := h.arbiter.AcquireForStreaming()
	defer session.Close()

	res, err := mjpeg.Serve(c.Request.Context(), c.Writer, session)
	if err != nil {
		logger.Error().Err(err).Msg("Stream failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Info().
		Int("frames", res.Frames).
		Int("placeholders", res.Placeholders).
		Str("end", res.End.String()).
		Msg("Stream closed")
}

// StopStream godoc
// @Summary Stop the live stream
// @Description Ends the active stream and releases the camera
// @Tags camera
// @Produce json
// @Success 200 {object} map[string]string
// @Router /stream/stop [post]
func (h *CameraHandler) StopStream(c *gin.Context) {
	h.arbiter.StopStreaming()
	logging.Info(c).Msg("Stream stop requested")
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// Photo godoc
// @Summary Capture a photo
// @Description Writes photo_<unix>.jpg to the media directory. Without a camera the placeholder is saved.
// @Tags camera
// @Produce json
// @Success 200 {object} PhotoResponse
// @Failure 500 {object} map[string]string
// @Router /photo [post]
func (h *CameraHandler) Photo(c *gin.Context) {
	photo, err := h.media.CapturePhoto(media.SourceAPI)
	if err != nil {
		logging.Error(c).Err(err).Msg("Photo capture failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to capture photo"})
		return
	}
	c.JSON(http.StatusOK, PhotoResponse{Path: photo.Path, Filename: photo.Filename, Timestamp: photo.Timestamp})
}

// StartRecording godoc
// @Summary Start a timed recording
// @Description Records for the requested duration (default 30s, clamped to 5-120s) in the background
// @Tags camera
// @Accept json
// @Produce json
// @Param request body RecordRequest false "Recording duration"
// @Success 200 {object} RecordResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /record/start [post]
func (h *CameraHandler) StartRecording(c *gin.Context) {
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requested := 0
	if req.Duration != nil {
		requested = *req.Duration
	}

	duration, err := h.media.StartRecording(requested, media.SourceAPI)
	switch {
	case errors.Is(err, media.ErrRecordingInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Recording already in progress"})
		return
	case errors.Is(err, media.ErrCameraUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Camera not available"})
		return
	case err != nil:
		logging.Error(c).Err(err).Msg("Failed to start recording")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logging.Info(c).Int("duration", duration).Msg("Recording started")
	c.JSON(http.StatusOK, RecordResponse{
		Status:   "recording",
		Duration: duration,
		Message:  fmt.Sprintf("Recording for %d seconds", duration),
	})
}

// RecordingStatus godoc
// @Summary Recording state
// @Tags camera
// @Produce json
// @Success 200 {object} camera.RecordingSnapshot
// @Router /record/status [get]
func (h *CameraHandler) RecordingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.arbiter.Recording().Snapshot())
}
