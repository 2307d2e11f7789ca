package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.DeviceInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	s.router.GET("/stream", s.cameraHandler.Stream)
	s.router.POST("/stream/stop", s.cameraHandler.StopStream)
	s.router.POST("/photo", s.cameraHandler.Photo)

	record := s.router.Group("/record")
	{
		record.POST("/start", s.cameraHandler.StartRecording)
		record.GET("/status", s.cameraHandler.RecordingStatus)
	}

	s.router.POST("/arm", s.motionHandler.Arm)
	s.router.POST("/disarm", s.motionHandler.Disarm)
	s.router.GET("/status", s.motionHandler.Status)

	motion := s.router.Group("/motion")
	{
		motion.GET("/settings", s.motionHandler.GetSettings)
		motion.POST("/settings", s.motionHandler.UpdateSettings)
		motion.GET("/debug", s.motionHandler.Debug)
		motion.GET("/metrics", s.motionHandler.Metrics)
		motion.POST("/test", s.motionHandler.Test)
	}

	s.router.GET("/events", s.eventsHandler.Events)
	s.router.GET("/recordings", s.eventsHandler.Recordings)
	s.router.GET("/media/:filename", s.eventsHandler.Media)

	notifications := s.router.Group("/notifications")
	{
		notifications.GET("", s.notificationsHandler.List)
		notifications.POST("/register", s.notificationsHandler.Register)
		notifications.POST("/unregister", s.notificationsHandler.Unregister)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
