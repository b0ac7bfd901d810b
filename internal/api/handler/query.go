package handler

import (
	"errors"
	"strconv"
	"time"

	"missionlog/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupExecutionQuery struct {
	container *do.Injector
}

func (gr *groupExecutionQuery) service() (*services.ServiceExecutionQuery, error) {
	service, err := do.Invoke[*services.ServiceExecutionQuery](gr.container)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	return service, nil
}

func (gr *groupExecutionQuery) MonthlyCalendar(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveAuthUser(ctx)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if v := c.QueryParam("year"); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil {
			return httpx.RestAbort(c, nil, errorx.Wrap(errors.New("invalid year"), errorx.Validation))
		}
	}
	if v := c.QueryParam("month"); v != "" {
		month, err = strconv.Atoi(v)
		if err != nil {
			return httpx.RestAbort(c, nil, errorx.Wrap(errors.New("invalid month"), errorx.Validation))
		}
	}

	service, err := gr.service()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	calendar, err := service.MonthlyCalendar(ctx, user.ID, year, month)
	return httpx.RestAbort(c, calendar, err)
}

func (gr *groupExecutionQuery) Today(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveAuthUser(ctx)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	service, err := gr.service()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	view, err := service.Today(ctx, user.ID)
	return httpx.RestAbort(c, view, err)
}

func (gr *groupExecutionQuery) CompletionRate(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveAuthUser(ctx)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	missionID, err := paramMissionID(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	service, err := gr.service()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	rate, err := service.CompletionRate(ctx, missionID, user.ID)
	return httpx.RestAbort(c, rate, err)
}

// ListExecutions lists every record of the caller on the mission, or only
// those between from and to when both are given.
func (gr *groupExecutionQuery) ListExecutions(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveAuthUser(ctx)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	missionID, err := paramMissionID(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	service, err := gr.service()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	fromStr, toStr := c.QueryParam("from"), c.QueryParam("to")
	if fromStr == "" && toStr == "" {
		executions, err := service.ListByParticipant(ctx, missionID, user.ID)
		return httpx.RestAbort(c, executions, err)
	}

	from, err := parseDate(fromStr, "from")
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	to, err := parseDate(toStr, "to")
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	executions, err := service.ListInRange(ctx, missionID, user.ID, from, to)
	return httpx.RestAbort(c, executions, err)
}
