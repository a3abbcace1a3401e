package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request with the status, size and
// duration captured by httpsnoop.  Server errors are logged at error level.
func RequestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var err error
			res := c.Response()
			orig := res.Writer
			m := httpsnoop.CaptureMetricsFn(orig, func(w http.ResponseWriter) {
				res.Writer = w
				err = next(c)
				if err != nil {
					// Let echo write the error while the metrics writer is
					// still installed so status and size are recorded.
					c.Error(err)
				}
			})
			res.Writer = orig

			req := c.Request()
			entry := logger.WithFields(log.Fields{
				"method":   req.Method,
				"path":     req.URL.Path,
				"route":    c.Path(),
				"status":   m.Code,
				"bytes":    m.Written,
				"duration": m.Duration.String(),
				"ip":       c.RealIP(),
			})
			if id, ok := UserID(c); ok {
				entry = entry.WithField("user_id", id)
			}
			switch {
			case m.Code >= http.StatusInternalServerError:
				entry.Error("request")
			case m.Code >= http.StatusBadRequest:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		}
	}
}
