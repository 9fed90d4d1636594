package response

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
)

// Response is a comment on a complaint thread, written by exactly one student or lecturer.
// Both author ids are null once the author account is deleted.
type Response struct {
	ID          string      `json:"id" db:"id"`
	ComplaintID string      `json:"complaint_id" db:"complaint_id"`
	Comment     string      `json:"comment" db:"comment"`
	StudentID   null.String `json:"student_id" db:"student_id"`
	LecturerID  null.String `json:"lecturer_id" db:"lecturer_id"`
	Author      *Author     `json:"author" db:"-"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
}

// Author is the public profile of the writer of a Response.
type Author struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Role  account.Role `json:"role"`
}

type NewResponse struct {
	Comment string `json:"comment" validate:"required,notblank"`
}

func (nr *NewResponse) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}
