package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/filevault/internal/common"
)

type credentialsRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// signupHandler handles POST /signup: create the account and immediately
// start its first session.
func (s *Server) signupHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.ID == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "id and password are required"})
	}

	user, err := s.users.Register(ctx, req.ID, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "user already exists"})
		}
		s.logger.Error(ctx, "signup error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "registration failed"})
	}

	pair, err := s.sessions.Create(ctx, user.ID, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		s.logger.Error(ctx, "session create error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "registration failed"})
	}

	s.logger.Info(ctx, "Registered", "user_id", user.ID)
	return c.JSON(http.StatusCreated, pair)
}

// signinHandler handles POST /signin.
func (s *Server) signinHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.ID == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "id and password are required"})
	}

	userID, err := s.users.Verify(ctx, req.ID, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		}
		s.logger.Error(ctx, "signin error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "authentication failed"})
	}

	pair, err := s.sessions.Create(ctx, userID, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		s.logger.Error(ctx, "session create error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "authentication failed"})
	}

	return c.JSON(http.StatusOK, pair)
}

// newTokenHandler handles POST /signin/new_token: rotate a refresh token
// into a fresh pair without re-authenticating credentials.
func (s *Server) newTokenHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "refreshToken is required"})
	}

	pair, err := s.sessions.Rotate(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid refresh token"})
		}
		s.logger.Error(ctx, "rotation error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "token refresh failed"})
	}

	return c.JSON(http.StatusOK, pair)
}

// infoHandler handles GET /info: return the authenticated user id.
func (s *Server) infoHandler(c echo.Context) error {
	identity := identityFromContext(c)
	return c.JSON(http.StatusOK, map[string]string{"id": identity.UserID})
}

// logoutHandler handles GET /logout: revoke the current session only.
// Other sessions of the same user stay active.
func (s *Server) logoutHandler(c echo.Context) error {
	ctx := c.Request().Context()
	identity := identityFromContext(c)

	if err := s.sessions.Revoke(ctx, identity.SessionID); err != nil {
		s.logger.Error(ctx, "logout error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "logout failed"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "ok"})
}
