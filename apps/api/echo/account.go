package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
)

type accountApi struct {
	conf *core.Config
	svc  *account.Service
}

func registerAuthAPI(g *echo.Group, auth echo.MiddlewareFunc, conf *core.Config, svc *account.Service) {
	api := accountApi{conf: conf, svc: svc}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register/student", api.registerStudent)
	ag.POST("/register/lecturer", api.registerLecturer)
	ag.POST("/signin", api.signIn)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, auth)
}

func registerAccountAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *account.Service) {
	api := accountApi{svc: svc}

	ag := g.Group("/accounts", auth)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *accountApi) registerStudent(ctx echo.Context) error {
	var data account.NewStudent
	if err := bind(ctx, &data); err != nil {
		return err
	}

	std, err := api.svc.RegisterStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, Response{Data: std.Profile(), Message: "Student registered successfully"})
}

func (api *accountApi) registerLecturer(ctx echo.Context) error {
	var data account.NewLecturer
	if err := bind(ctx, &data); err != nil {
		return err
	}

	lec, err := api.svc.RegisterLecturer(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering lecturer")
	}
	return ctx.JSON(http.StatusCreated, Response{Data: lec.Profile(), Message: "Lecturer registered successfully"})
}

func (api *accountApi) signIn(ctx echo.Context) error {
	var data account.SignIn
	if err := bind(ctx, &data); err != nil {
		return err
	}

	profile, err := api.svc.SignIn(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing in")
	}
	token, err := GenerateToken(api.conf, NewClaims(api.conf, profile.Identity()))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, Response{Data: profile, Token: token, Message: "Signed in successfully"})
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, profile, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, Response{Data: profile, Token: token, Message: "Token refreshed successfully"})
}

func (api *accountApi) destroy(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.JSON(http.StatusOK, Response{Message: "Account deleted successfully"})
}
