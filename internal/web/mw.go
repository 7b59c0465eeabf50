package web

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NginxLogMiddleware logs one nginx style line per request.
func NginxLogMiddleware(logger *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Infof("%s - - \"%s %s %s\" %d %v",
				c.RealIP(),
				c.Request().Method,
				c.Request().RequestURI,
				c.Request().Proto,
				c.Response().Status,
				time.Since(start),
			)
			return nil
		}
	}
}
