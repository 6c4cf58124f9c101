package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"huddle-admin/backend/internal/logging"
)

// RequestLogger logs one line per request through the application logger.
func RequestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.RequestID != "" {
				kv = append(kv, "request_id", v.RequestID)
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				logger.Error("request", append(kv, "error", v.Error)...)
			case v.Status >= http.StatusBadRequest:
				logger.Info("request", kv...)
			default:
				logger.Debug("request", kv...)
			}
			return nil
		},
	})
}
