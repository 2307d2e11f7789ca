package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spicam-server/internal/logging"
	"spicam-server/internal/services/notification"
)

type NotificationsHandler struct {
	feed   *notification.Feed
	tokens *notification.TokenStore
}

func NewNotificationsHandler(feed *notification.Feed, tokens *notification.TokenStore) *NotificationsHandler {
	return &NotificationsHandler{feed: feed, tokens: tokens}
}

type TokenRequest struct {
	Token string `json:"token" binding:"required" example:"ExponentPushToken[xxxx]"`
}

type TokenResponse struct {
	Status string `json:"status" example:"registered"`
	Token  string `json:"token"`
}

// List godoc
// @Summary Recent notifications
// @Description Newest first, at most 50
// @Tags notifications
// @Produce json
// @Success 200 {array} notification.FeedEntry
// @Router /notifications [get]
func (h *NotificationsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.List())
}

// Register godoc
// @Summary Register an Expo push token
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Push token"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /notifications/register [post]
func (h *NotificationsHandler) Register(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tokens.Register(req.Token); err != nil {
		logging.Error(c).Err(err).Msg("Failed to register push token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register token"})
		return
	}
	logging.Info(c).Int("tokens", h.tokens.Count()).Msg("Push token registered")
	c.JSON(http.StatusOK, TokenResponse{Status: "registered", Token: req.Token})
}

// Unregister godoc
// @Summary Remove an Expo push token
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Push token"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /notifications/unregister [post]
func (h *NotificationsHandler) Unregister(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tokens.Unregister(req.Token); err != nil {
		logging.Error(c).Err(err).Msg("Failed to unregister push token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unregister token"})
		return
	}
	logging.Info(c).Int("tokens", h.tokens.Count()).Msg("Push token unregistered")
	c.JSON(http.StatusOK, TokenResponse{Status: "unregistered", Token: req.Token})
}
