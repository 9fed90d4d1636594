package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
)

var orderingParam = "ordering"

// Response is the envelope of every API response.
type Response struct {
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message"`
	Token   string            `json:"token,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=-created_at,title`, keeping only the allowed fields.
func (ord *Ordering) Bind(ctx echo.Context, allowed []string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !contains(allowed, field) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// bind binds the request body to dest; malformed bodies are validation errors.
func bind(ctx echo.Context, dest interface{}) error {
	if err := ctx.Bind(dest); err != nil {
		var herr *echo.HTTPError
		if errors.As(err, &herr) && herr.Code < 500 {
			return core.NewValidationError(errors.New(invalidRequestMsg))
		}
		return errors.Wrap(err, "binding request")
	}
	return nil
}
