package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/result"
)

type resultApi struct {
	svc result.Service
}

func registerResultAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc result.Service) {
	api := resultApi{svc: svc}

	rg := g.Group("/results", jwt)
	rg.POST("", api.create)
	rg.PUT("/bulk", api.bulkUpdate)
	rg.GET("/class", api.queryCohort)

	// detail endpoints
	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id", api.update)
	rg.PATCH("/:id", api.update)
	rg.DELETE("/:id", api.destroy)
	rg.GET("/:id/history", api.history)

	tg := g.Group("/teachers/:id", jwt)
	tg.GET("/results", api.queryByTeacher)
	tg.GET("/assignments", api.queryAssignments)

	sg := g.Group("/students/:id", jwt)
	sg.GET("/results", api.queryByStudent)
}

// Handlers

func (api *resultApi) create(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data result.NewResult
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResult")
	}

	res, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating result")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resultApi) retrieve(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Get(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting result")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resultApi) update(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data result.UpdateResult
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResult")
	}

	res, err := api.svc.Update(ctx.Request().Context(), p, ctx.Param("id"), data, changeMeta(ctx))
	if err != nil {
		return errors.Wrap(err, "updating result")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resultApi) bulkUpdate(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data result.BulkUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkUpdate")
	}

	results, err := api.svc.BulkUpdate(ctx.Request().Context(), p, data, changeMeta(ctx))
	if err != nil {
		return errors.Wrap(err, "bulk updating results")
	}
	return ctx.JSON(http.StatusOK, BulkUpdateResponse{Count: len(results), Results: results})
}

func (api *resultApi) destroy(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Delete(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting result")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resultApi) history(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.History(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting result history")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *resultApi) queryCohort(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	key, err := bindCohortKey(ctx)
	if err != nil {
		return err
	}
	filter, err := bindQueryFilter(ctx)
	if err != nil {
		return err
	}

	results, err := api.svc.ListCohort(ctx.Request().Context(), p, key, filter)
	if err != nil {
		return errors.Wrap(err, "querying cohort results")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *resultApi) queryByTeacher(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	filter, err := bindQueryFilter(ctx)
	if err != nil {
		return err
	}

	results, err := api.svc.ListByTeacher(ctx.Request().Context(), p, ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "querying teacher results")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *resultApi) queryAssignments(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.svc.ListAssignments(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying teacher assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *resultApi) queryByStudent(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	filter, err := bindQueryFilter(ctx)
	if err != nil {
		return err
	}

	results, err := api.svc.ListByStudent(ctx.Request().Context(), p, ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "querying student results")
	}
	return ctx.JSON(http.StatusOK, results)
}
