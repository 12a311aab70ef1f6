package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHTTPForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHTTPConflict  = echo.NewHTTPError(http.StatusConflict, "another checkout is in progress")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *payment.GatewayError:
			// the student gets the backend's own words for what is wrong with their purchase
			if origErr.IsClientError() {
				code = origErr.StatusCode
				message = origErr.Message
				break
			}
			code = http.StatusBadGateway
			message = http.StatusText(code)
			logError(ctx, logger, err, message.(string))
		default:
			if origErr == payment.ErrNotFound {
				code = http.StatusNotFound
				message = errHTTPNotFound.Message
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(code)
			logError(ctx, logger, err, message.(string))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func logError(ctx echo.Context, logger core.Logger, err error, msg string) {
	var student core.Person
	if claims, cErr := getContextClaims(ctx); cErr == nil {
		student = claims.Person()
	}
	logger.Error(msg, errors.Wrap(err, msg), student)
}
