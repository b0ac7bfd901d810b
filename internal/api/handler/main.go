package handler

import (
	"net/http"

	"missionlog/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == "debug" {
		r.Debug = true
		pprof.Register(r)
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "🤖")
	})

	registry, err := do.Invoke[*prometheus.Registry](cfg.Container)
	if err != nil {
		return nil, err
	}
	r.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	routesAPIv1 := r.Group("/api/v1")
	{
		authentication, err := do.Invoke[*services.Authentication](cfg.Container)
		if err != nil {
			return nil, err
		}
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Origins,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
			MaxAge:           60 * 60,
		})

		routesAPIv1.Use(cors)
		routesAPIv1.Use(Authn(authentication)) // Authn will NOT terminate unauthenticated request.
		routesAPIv1.GET("", Hello)

		routesAPIv1Execution := routesAPIv1.Group("/missions/:mission/executions")
		{
			e := groupExecution{cfg.Container}
			routesAPIv1Execution.GET("/:date", e.GetByDate)
			routesAPIv1Execution.POST("/:date/start", e.Start)
			routesAPIv1Execution.POST("/:date/skip", e.Skip)
			routesAPIv1Execution.POST("/:date/complete", e.Complete)
			routesAPIv1Execution.POST("/:date/image", e.UploadImage)
			routesAPIv1Execution.DELETE("/:date/image", e.DeleteImage)
			routesAPIv1Execution.POST("/:date/share", e.Share)
		}

		q := groupExecutionQuery{cfg.Container}
		routesAPIv1.GET("/missions/:mission/executions", q.ListExecutions)
		routesAPIv1.GET("/missions/:mission/completion-rate", q.CompletionRate)
		routesAPIv1.GET("/executions/calendar", q.MonthlyCalendar)
		routesAPIv1.GET("/executions/today", q.Today)
	}

	return r, nil
}

func Hello(c echo.Context) error {
	return httpx.RestAbort(c, "hello world", nil)
}
