package cvcweb

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginFailure struct {
	Error             string `json:"error"`
	RemainingAttempts int    `json:"remainingAttempts"`
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if a.Config.AdminPassword == "" {
		return respondError(c, http.StatusNotFound, "Admin login is not configured")
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.JSON(http.StatusTooManyRequests, loginFailure{
			Error: "Too many login attempts. Please try again later.",
		})
	}
	var req loginRequest
	if err := decodeJSON(c, &req); err != nil || req.Password == "" {
		return respondError(c, http.StatusBadRequest, "Password is required")
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		return c.JSON(http.StatusUnauthorized, loginFailure{
			Error:             "Invalid password",
			RemainingAttempts: a.loginLimiter.Remaining(ip),
		})
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c); err != nil {
		a.logError(c, "save admin session", err)
		return respondError(c, http.StatusInternalServerError, "Failed to start admin session")
	}
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Admin authentication successful"})
}

func (a *App) handleAdminLogout(c echo.Context) error {
	if a.Config.AdminPassword == "" {
		return respondError(c, http.StatusNotFound, "Admin login is not configured")
	}
	if err := clearAdminSession(c); err != nil {
		a.logError(c, "clear admin session", err)
		return respondError(c, http.StatusInternalServerError, "Failed to end admin session")
	}
	return respondOK(c)
}
