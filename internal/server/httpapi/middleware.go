package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/filevault/internal/server/services"
)

// contextKeyIdentity is the echo context key holding the resolved caller.
const contextKeyIdentity = "identity"

// requireAuth is the authorization gate. It extracts the bearer token,
// verifies it against the session store, and attaches the resolved identity
// to the request context. Missing, malformed, expired, revoked, and unknown
// tokens all produce the same generic 401.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}

		token := strings.TrimPrefix(header, "Bearer ")

		identity, err := s.sessions.VerifyAccessToken(c.Request().Context(), token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}

		c.Set(contextKeyIdentity, identity)
		return next(c)
	}
}

// identityFromContext returns the caller attached by requireAuth, or nil.
func identityFromContext(c echo.Context) *services.Identity {
	identity, _ := c.Get(contextKeyIdentity).(*services.Identity)
	return identity
}
