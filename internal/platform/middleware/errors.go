package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
)

// ErrorHandler renders every error as {"detail": "..."}. Server errors are
// logged with their internal cause and sent to Sentry.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		he := apperr.HTTP(err)
		detail, ok := he.Message.(string)
		if !ok {
			detail = fmt.Sprint(he.Message)
		}

		if he.Code >= http.StatusInternalServerError {
			cause := err
			if he.Internal != nil {
				cause = he.Internal
			}
			rid, _ := c.Get(requestIDContextKey).(string)
			logger.Error().Err(cause).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", he.Code).
				Msg("request failed")
			sentry.CaptureException(cause)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, map[string]string{"detail": detail})
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
