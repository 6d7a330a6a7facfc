package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/stats"
)

type statisticsApi struct {
	engine stats.Engine
}

func registerStatisticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, engine stats.Engine) {
	api := statisticsApi{engine: engine}

	sg := g.Group("/statistics", jwt)
	sg.GET("", api.retrieve)
	sg.POST("/recalculate", api.recalculate)
}

func (api *statisticsApi) retrieve(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	key, err := bindCohortKey(ctx)
	if err != nil {
		return err
	}

	st, err := api.engine.Statistics(ctx.Request().Context(), p, key)
	if err != nil {
		return errors.Wrap(err, "getting statistics")
	}
	return ctx.JSON(http.StatusOK, st)
}

// recalculate reads the cohort from the JSON body, or from the query string when the body is empty.
func (api *statisticsApi) recalculate(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var key stats.CohortKey
	if err = ctx.Bind(&key); err != nil {
		return errors.Wrap(err, "binding to CohortKey")
	}
	if key == (stats.CohortKey{}) {
		if key, err = bindCohortKey(ctx); err != nil {
			return err
		}
	}

	rc, err := api.engine.Recompute(ctx.Request().Context(), p, key)
	if err != nil {
		return errors.Wrap(err, "recomputing cohort")
	}
	return ctx.JSON(http.StatusOK, rc)
}
