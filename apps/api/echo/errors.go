package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
)

const invalidRequestMsg = "invalid request"

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code int
			body Response
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			body.Message = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			body.Message = invalidRequestMsg
			body.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				body.Errors[vErr.Field()] = vErr.Translate(translator)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			body.Message = origErr.Error()
			if len(origErr.Fields) > 0 {
				body.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					body.Errors[fErr.Field] = fErr.Error
				}
			}
		case *core.AuthenticationError:
			code = http.StatusUnauthorized
			body.Message = origErr.Error()
		case *core.PermissionError:
			code = http.StatusForbidden
			body.Message = origErr.Error()
		case *core.NotFoundError:
			code = http.StatusNotFound
			body.Message = origErr.Error()
		case *core.ConflictError:
			code = http.StatusConflict
			body.Message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			body.Message = msg

			id, _ := getContextIdentity(ctx)
			logger.Error(msg, errors.Wrap(err, msg), id, map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Path(),
			})

			if ctx.Echo().Debug {
				body.Message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

