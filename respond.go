package cvcweb

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondOK(c echo.Context) error {
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func respondError(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorResponse{Error: msg})
}

// decodeJSON reads the request body as a single JSON value into v.
func decodeJSON(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// logError records a handler failure with the request id.
func (a *App) logError(c echo.Context, msg string, err error) {
	a.Logger.Error(msg,
		zap.Error(err),
		zap.String("uri", c.Request().RequestURI),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
}

// httpErrorHandler makes sure clients always get a JSON error body.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= 500 {
		a.logError(c, "server error", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = respondError(c, code, msg)
}
