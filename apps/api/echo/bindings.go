package echoapi

import (
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/result"
	"github.com/trezcool/gradebook/core/stats"
	"github.com/trezcool/gradebook/core/user"
)

type LoginRequest struct {
	School   string `json:"school" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.School = core.CleanString(lr.School, true /* lower */)
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

type BulkUpdateResponse struct {
	Count   int             `json:"count"`
	Results []result.Result `json:"results"`
}

var queryBinder = new(echo.DefaultBinder)

// bindQueryFilter reads the list filters and pagination from the query string.
func bindQueryFilter(ctx echo.Context) (result.QueryFilter, error) {
	var filter result.QueryFilter
	if err := queryBinder.BindQueryParams(ctx, &filter); err != nil {
		return result.QueryFilter{}, core.NewValidationError(errors.New("invalid query parameters"))
	}
	return filter, nil
}

// bindCohortKey reads the subject, class, session and term of a cohort from the query string.
func bindCohortKey(ctx echo.Context) (stats.CohortKey, error) {
	var key stats.CohortKey
	if err := queryBinder.BindQueryParams(ctx, &key); err != nil {
		return stats.CohortKey{}, core.NewValidationError(errors.New("invalid query parameters"))
	}
	return key, nil
}

// changeMeta describes the client that sent the request, for the result history.
// An address that does not parse as an IP is left out.
func changeMeta(ctx echo.Context) result.ChangeMeta {
	meta := result.ChangeMeta{UserAgent: ctx.Request().UserAgent()}
	if ip := net.ParseIP(ctx.RealIP()); ip != nil {
		meta.IPAddress = ip.String()
	}
	return meta
}
