package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/response"
)

type complaintApi struct {
	svc     *complaint.Service
	respSvc *response.Service
	binder  echo.DefaultBinder
}

func registerComplaintAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *complaint.Service, respSvc *response.Service) {
	api := complaintApi{svc: svc, respSvc: respSvc}

	cg := g.Group("/complaints", auth)
	cg.GET("", api.query)
	cg.POST("", api.create)

	// detail endpoints
	cg.GET("/:id", api.retrieve)
	cg.PATCH("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
	cg.POST("/:id/resolve", api.resolve)
	cg.POST("/:id/pending", api.markAsPending)

	// responses
	cg.GET("/:id/responses", api.queryResponses)
	cg.POST("/:id/responses", api.addResponse)
}

// Handlers

func (api *complaintApi) create(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data complaint.NewComplaint
	if err = bind(ctx, &data); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "creating complaint")
	}
	return ctx.JSON(http.StatusCreated, Response{Data: c, Message: "Complaint lodged successfully"})
}

func (api *complaintApi) query(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var filter complaint.QueryFilter
	if err = api.binder.BindQueryParams(ctx, &filter); err != nil {
		return core.NewValidationError(errors.New(invalidRequestMsg))
	}
	filter.Status = complaint.Status(strings.ToUpper(core.CleanString(string(filter.Status))))
	filter.CourseID = core.CleanString(filter.CourseID)

	ordering := new(Ordering)
	ordering.Bind(ctx, complaint.OrderingFields)

	complaints, err := api.svc.Query(ctx.Request().Context(), id, filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying complaints")
	}
	return ctx.JSON(http.StatusOK, Response{Data: complaints, Message: "Complaints fetched successfully"})
}

func (api *complaintApi) retrieve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	c, err := api.svc.Get(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting complaint")
	}
	return ctx.JSON(http.StatusOK, Response{Data: c, Message: "Complaint fetched successfully"})
}

func (api *complaintApi) update(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data complaint.UpdateComplaint
	if err = bind(ctx, &data); err != nil {
		return err
	}

	c, err := api.svc.Edit(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "editing complaint")
	}
	return ctx.JSON(http.StatusOK, Response{Data: c, Message: "Complaint edited successfully"})
}

func (api *complaintApi) resolve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	c, err := api.svc.Resolve(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "resolving complaint")
	}
	return ctx.JSON(http.StatusOK, Response{Data: c, Message: "Complaint resolved successfully"})
}

func (api *complaintApi) markAsPending(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	c, err := api.svc.MarkAsPending(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking complaint as pending")
	}
	return ctx.JSON(http.StatusOK, Response{Data: c, Message: "Complaint marked as pending"})
}

func (api *complaintApi) destroy(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.Delete(ctx.Request().Context(), id, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting complaint")
	}
	return ctx.JSON(http.StatusOK, Response{Message: "Complaint deleted successfully"})
}

func (api *complaintApi) addResponse(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data response.NewResponse
	if err = bind(ctx, &data); err != nil {
		return err
	}

	resp, err := api.respSvc.Add(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding response")
	}
	return ctx.JSON(http.StatusCreated, Response{Data: resp, Message: "Response added successfully"})
}

func (api *complaintApi) queryResponses(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	resps, err := api.respSvc.List(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing responses")
	}
	return ctx.JSON(http.StatusOK, Response{Data: resps, Message: "Responses fetched successfully"})
}
