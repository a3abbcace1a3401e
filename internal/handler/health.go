package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Root answers GET / so a browser or uptime check can see the API is up.
func Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Server is running", "status": "success"})
}

// Health is a plain text liveness check for load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
