package helpers

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/labstack/echo/v4"
)

// ClientIDHeader optionally identifies an API client beyond its address.
const ClientIDHeader = "X-Client-ID"

// LimiterKey derives a stable limiter key from the caller's address, client
// identity and route path. The raw identifying data never reaches the
// backend, only its hash.
func LimiterKey(ip, clientID, route string) string {
	h := sha256.New()
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(clientID))
	h.Write([]byte{0})
	h.Write([]byte(route))
	return hex.EncodeToString(h.Sum(nil))
}

// LimiterKeyFromContext derives the limiter key for an echo request.
func LimiterKeyFromContext(c echo.Context) string {
	route := c.Path()
	if route == "" {
		route = c.Request().URL.Path
	}
	return LimiterKey(c.RealIP(), c.Request().Header.Get(ClientIDHeader), route)
}
