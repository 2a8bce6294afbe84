package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/catalog"
	"github.com/Spok95/classroom-board/internal/ctxutil"
	"github.com/Spok95/classroom-board/internal/observability"
	"github.com/Spok95/classroom-board/internal/remotesync"
	"github.com/Spok95/classroom-board/internal/roster"
)

var errSyncDisabled = echo.NewHTTPError(http.StatusServiceUnavailable, "remote sync is not configured")

// statusOf подбирает HTTP-код для ошибок ядра; 0 означает неожиданную ошибку.
func statusOf(err error) int {
	switch {
	case errors.Is(err, roster.ErrClassNotFound),
		errors.Is(err, roster.ErrStudentNotFound),
		errors.Is(err, roster.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrClassExists),
		errors.Is(err, roster.ErrLastClass):
		return http.StatusConflict
	case errors.Is(err, roster.ErrInvalidName),
		errors.Is(err, roster.ErrButtonOutOfRange),
		errors.Is(err, roster.ErrInvalidScoreButtons),
		errors.Is(err, roster.ErrDeltaTooLarge),
		errors.Is(err, catalog.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, remotesync.ErrAuthExpired),
		errors.Is(err, remotesync.ErrNotSignedIn):
		return http.StatusUnauthorized
	}
	return 0
}

func httpErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var body any = echo.Map{"error": http.StatusText(code)}

		var he *echo.HTTPError
		var verr *catalog.ValidationError
		switch {
		case errors.As(err, &he):
			code = he.Code
			body = echo.Map{"error": fmt.Sprint(he.Message)}
		case errors.As(err, &verr):
			code = http.StatusBadRequest
			fields := make(map[string]string, len(verr.Fields))
			for _, f := range verr.Fields {
				fields[f.Field] = f.Tag
			}
			body = echo.Map{"error": catalog.ErrValidation.Error(), "fields": fields}
		case statusOf(err) != 0:
			code = statusOf(err)
			body = echo.Map{"error": err.Error()}
			if remotesync.IsAuthExpired(err) {
				body = echo.Map{"error": err.Error(), "authExpired": true}
			}
		default:
			log.Error("api error", zap.String("path", c.Path()), zap.Error(err))
			observability.CaptureErrCtx(ctxutil.WithOp(c.Request().Context(), c.Path()), err)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
