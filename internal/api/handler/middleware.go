package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"missionlog/internal/models"
	"missionlog/internal/pkg"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
)

type ctxKey string

var ctxKeyAuthUser ctxKey = "AUTH_USER"

func Authn(verifier interface {
	Validate(token string) (*models.UserFromAuth, error)
},
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return next(c)
			}

			parts := strings.Split(header, "Bearer")
			if len(parts) != 2 {
				return next(c)
			}

			token := strings.TrimSpace(parts[1])
			if len(token) == 0 {
				return next(c)
			}

			user, err := verifier.Validate(token)
			if err != nil {
				// although it's a client error, we don't want to detailed information
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("invalid access token"), errorx.Authn), -1)
				return nil
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, ctxKeyAuthUser, user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func ResolveAuthUser(ctx context.Context) (*models.UserFromAuth, error) {
	user, ok := ctx.Value(ctxKeyAuthUser).(*models.UserFromAuth)
	if !ok {
		return nil, errorx.Wrap(errors.New("missing session"), errorx.Authn)
	}
	return user, nil
}

func paramMissionID(c echo.Context) (int64, error) {
	missionID, err := strconv.ParseInt(c.Param("mission"), 10, 64)
	if err != nil || missionID <= 0 {
		return 0, errorx.Wrap(errors.New("invalid mission id"), errorx.Validation)
	}
	return missionID, nil
}

func parseDate(value string, name string) (time.Time, error) {
	date, err := pkg.ParseDate(value)
	if err != nil {
		return time.Time{}, errorx.Wrap(errors.New("invalid "+name+", expected YYYY-MM-DD"), errorx.Validation)
	}
	return date, nil
}
