package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	cache := s.echo.Group("/cache")
	cache.GET("/stats", s.cacheStats)
	cache.DELETE("/keys/:key", s.cacheDeleteKey)
	cache.DELETE("/namespaces/:namespace", s.cacheClearNamespace)
}
