package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"spicam-server/internal/api/handlers"
	"spicam-server/internal/config"
	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/media"
	"spicam-server/internal/services/motion"
	"spicam-server/internal/services/notification"
)

// Deps are the services the HTTP surface wraps.
type Deps struct {
	Arbiter    *camera.Arbiter
	Detector   *motion.Detector
	Media      *media.Service
	Dispatcher *notification.Dispatcher
	Tokens     *notification.TokenStore
}

type Server struct {
	config *config.Config
	router   *gin.Engine
	server   *http.Server
	listener net.Listener

	healthHandler        *handlers.HealthHandler
	cameraHandler        *handlers.CameraHandler
	motionHandler        *handlers.MotionHandler
	eventsHandler        *handlers.EventsHandler
	notificationsHandler *handlers.NotificationsHandler
	systemHandler        *handlers.SystemHandler
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	if cfg.Environment == "test" {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	return &Server{
		config:               cfg,
		router:               router,
		healthHandler:        handlers.NewHealthHandler(cfg.DeviceID, cfg.Version, deps.Arbiter, deps.Detector),
		cameraHandler:        handlers.NewCameraHandler(deps.Arbiter, deps.Media),
		motionHandler:        handlers.NewMotionHandler(deps.Detector, deps.Arbiter, deps.Tokens),
		eventsHandler:        handlers.NewEventsHandler(deps.Media),
		notificationsHandler: handlers.NewNotificationsHandler(deps.Dispatcher.Feed(), deps.Tokens),
		systemHandler:        handlers.NewSystemHandler(cfg.DeviceID, deps.Arbiter, deps.Dispatcher),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

// Listen binds the HTTP port. Once it returns, connections queue until
// Start serves them.
func (s *Server) Listen() (net.Addr, error) {
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	s.listener = lis
	return lis.Addr(), nil
}

// Start serves on the bound listener, binding first if Listen was not called.
func (s *Server) Start() error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	log.Info().Str("addr", s.listener.Addr().String()).Msg("Starting sPiCam API")
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down. Open MJPEG responses end when their
// request contexts are cancelled.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping sPiCam API")
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}
