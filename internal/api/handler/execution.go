package handler

import (
	"context"
	"errors"
	"time"

	"missionlog/internal/models"
	"missionlog/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupExecution struct {
	container *do.Injector
}

type executionCall func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error)

// run resolves the caller, the path params and the mission's strategy before
// handing over to call.
func (gr *groupExecution) run(c echo.Context, call executionCall) error {
	ctx := c.Request().Context()

	user, err := ResolveAuthUser(ctx)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	missionID, err := paramMissionID(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	date, err := parseDate(c.Param("date"), "date")
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	resolver, err := do.Invoke[*services.ServiceStrategyResolver](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	strategy, err := resolver.Resolve(ctx, missionID, user.ID)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	data, err := call(ctx, strategy, missionID, user.ID, date)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}
	return httpx.RestAbort(c, data, nil)
}

func (gr *groupExecution) GetByDate(c echo.Context) error {
	return gr.run(c, func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error) {
		return strategy.GetExecutionByDate(ctx, missionID, userID, date)
	})
}

func (gr *groupExecution) Start(c echo.Context) error {
	return gr.run(c, func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error) {
		return strategy.StartExecution(ctx, missionID, userID, date)
	})
}

func (gr *groupExecution) Skip(c echo.Context) error {
	return gr.run(c, func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error) {
		return strategy.SkipExecution(ctx, missionID, userID, date)
	})
}

type completeExecutionRequest struct {
	Note        string `json:"note"`
	ShareToFeed bool   `json:"share_to_feed"`
}

func (gr *groupExecution) Complete(c echo.Context) error {
	var req completeExecutionRequest
	if err := c.Bind(&req); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(errors.New("invalid request body"), errorx.Validation))
	}

	return gr.run(c, func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error) {
		return strategy.CompleteExecution(ctx, missionID, userID, date, req.Note, req.ShareToFeed)
	})
}

func (gr *groupExecution) UploadImage(c echo.Context) error {
	header, err := c.FormFile("image")
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(services.ErrImageRequired, errorx.Validation))
	}

	file, err := header.Open()
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Validation))
	}
	defer file.Close()

	upload := &models.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get(echo.HeaderContentType),
		Size:        header.Size,
		Body:        file,
	}

	return gr.run(c, func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error) {
		return strategy.UploadExecutionImage(ctx, missionID, userID, date, upload)
	})
}

func (gr *groupExecution) DeleteImage(c echo.Context) error {
	return gr.run(c, func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error) {
		return strategy.DeleteExecutionImage(ctx, missionID, userID, date)
	})
}

func (gr *groupExecution) Share(c echo.Context) error {
	return gr.run(c, func(ctx context.Context, strategy services.ExecutionStrategy, missionID int64, userID int64, date time.Time) (any, error) {
		return strategy.ShareExecutionToFeed(ctx, missionID, userID, date)
	})
}
