package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/export"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/user"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errBadFormMode  = echo.NewHTTPError(http.StatusBadRequest, "mode must be create or edit")
	errMissingFile  = echo.NewHTTPError(http.StatusBadRequest, "no file uploaded")

	// requestErrors are the sentinel errors caused by what the client sent.
	requestErrors = []struct {
		err  error
		code int
	}{
		{core.ErrPermissionDenied, http.StatusForbidden},
		{core.ErrNotFound, http.StatusNotFound},
		{grid.ErrUnavailable, http.StatusBadRequest},
		{grid.ErrInvalidOption, http.StatusBadRequest},
		{grid.ErrUnknownEvent, http.StatusBadRequest},
		{grid.ErrUnknownRow, http.StatusNotFound},
		{hierarchy.ErrInvalidChain, http.StatusBadRequest},
		{export.ErrUnknownFormat, http.StatusBadRequest},
		{export.ErrUnsupportedFile, http.StatusBadRequest},
		{export.ErrNoColumns, http.StatusBadRequest},
	}
)

// requestError returns the status and message of errors caused by the client.
func requestError(err error) (int, string, bool) {
	cause := errors.Cause(err)
	for _, re := range requestErrors {
		if cause == re.err {
			return re.code, err.Error(), true
		}
	}
	switch cause.(type) {
	case *core.NotFoundError:
		return http.StatusNotFound, cause.Error(), true
	case *core.RuleError:
		return http.StatusConflict, cause.Error(), true
	}
	return 0, "", false
}

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
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
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
		default:
			if c, msg, ok := requestError(err); ok {
				code, message = c, msg
				break
			}
			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = claims.User()
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

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
