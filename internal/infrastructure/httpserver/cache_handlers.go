package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// cacheStats reports best-effort cache usage, optionally scoped to a namespace.
func (s *Server) cacheStats(c echo.Context) error {
	stats := s.cache.Stats(c.Request().Context(), c.QueryParam("namespace"))
	return c.JSON(http.StatusOK, stats)
}

// cacheDeleteKey removes a single cache entry.
func (s *Server) cacheDeleteKey(c echo.Context) error {
	removed := s.cache.Delete(c.Request().Context(), c.Param("key"), c.QueryParam("namespace"))
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}

// cacheClearNamespace bulk-invalidates a namespace. The underlying
// enumerate-then-delete is not atomic; concurrent writes may survive.
func (s *Server) cacheClearNamespace(c echo.Context) error {
	removed := s.cache.Clear(c.Request().Context(), c.Param("namespace"))
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}
