package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/repository"
)

// fail writes the standard failure body {"success": false, "message": msg}.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// serverError logs err and writes a 500 that surfaces the underlying message
// for diagnostics.  The "error" detail is not a stable contract.
func serverError(c echo.Context, op string, err error) error {
	log.WithError(err).WithField("op", op).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"success": false,
		"message": "Server error",
		"error":   err.Error(),
	})
}

// storeError maps an error returned by the store onto an HTTP response.
func storeError(c echo.Context, op, notFoundMsg string, err error) error {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "Validation failed",
			"fields":  ve.Fields,
		})
	case repository.IsNotFound(err):
		return fail(c, http.StatusNotFound, notFoundMsg)
	}
	return serverError(c, op, err)
}

// ErrorHandler replaces echo's default error handler so framework errors
// (malformed JSON, unknown routes, panics caught by Recover) share the
// API's failure body.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "Server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Request().URL.Path).Error("unhandled error")
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = fail(c, status, msg)
	}
	if werr != nil {
		log.WithError(werr).Warn("write error response")
	}
}
