package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/screen"
	"github.com/trezcool/shule/core/user"
)

const contextScreenKey = "screen"

// userMiddleware puts the user of the token in the context.
func userMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextUser(ctx); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// screenMiddleware loads the screen named by the :screen path param and checks the user may open it.
func screenMiddleware(reg *screen.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			scr, err := reg.Get(ctx.Param("screen"))
			if err != nil {
				return err
			}
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !scr.CanView(usr) {
				return core.ErrPermissionDenied
			}
			ctx.Set(contextScreenKey, scr)
			return next(ctx)
		}
	}
}

// getContextScreen returns the screen and the user set by screenMiddleware.
func getContextScreen(ctx echo.Context) (*screen.Screen, user.User, error) {
	scr, ok := ctx.Get(contextScreenKey).(*screen.Screen)
	if !ok {
		return nil, user.User{}, screen.ErrScreenNotFound
	}
	usr, err := getContextUser(ctx)
	return scr, usr, err
}
