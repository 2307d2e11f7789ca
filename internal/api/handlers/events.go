package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spicam-server/internal/logging"
	"spicam-server/internal/services/media"
)

type EventsHandler struct {
	media *media.Service
}

func NewEventsHandler(mediaSvc *media.Service) *EventsHandler {
	return &EventsHandler{media: mediaSvc}
}

// Events godoc
// @Summary Media timeline
// @Description Recordings, motion clips and stills, and photos, newest first
// @Tags events
// @Produce json
// @Success 200 {array} media.Item
// @Failure 500 {object} map[string]string
// @Router /events [get]
func (h *EventsHandler) Events(c *gin.Context) {
	items, err := h.media.Events()
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// Recordings godoc
// @Summary Finished recordings
// @Description mp4 recordings plus raw recordings that were never transcoded
// @Tags events
// @Produce json
// @Success 200 {array} media.Item
// @Failure 500 {object} map[string]string
// @Router /recordings [get]
func (h *EventsHandler) Recordings(c *gin.Context) {
	items, err := h.media.Recordings()
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list recordings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list recordings"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// Media godoc
// @Summary Download a media file
// @Tags events
// @Param filename path string true "File name"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /media/{filename} [get]
func (h *EventsHandler) Media(c *gin.Context) {
	path, err := h.media.Resolve(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.File(path)
}
