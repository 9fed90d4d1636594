package complaint

import (
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/course"
)

// Status is the lifecycle state of a Complaint.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusPending   Status = "PENDING"
	StatusResolved  Status = "RESOLVED"
)

var Statuses = []Status{StatusSubmitted, StatusPending, StatusResolved}

func (s Status) IsValid() bool { return slices.Contains(Statuses, s) }

type Complaint struct {
	ID        string         `json:"id" db:"id"`
	Title     string         `json:"title" db:"title"`
	Details   string         `json:"details" db:"details"`
	Type      string         `json:"type" db:"type"`
	Status    Status         `json:"status" db:"status"`
	StudentID string         `json:"student_id" db:"student_id"`
	CourseID  string         `json:"course_id" db:"course_id"`
	Course    *course.Course `json:"course,omitempty" db:"-"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"` // UTC
}

func (c Complaint) IsResolved() bool { return c.Status == StatusResolved }

// NewComplaint contains information needed to file a new Complaint.
type NewComplaint struct {
	Title    string `json:"title" validate:"required,notblank,max=200"`
	CourseID string `json:"course_id" validate:"required,notblank"`
	Type     string `json:"type" validate:"required,notblank,max=100"`
	Details  string `json:"details" validate:"required,notblank"`
}

func (nc *NewComplaint) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.CourseID = core.CleanString(nc.CourseID)
	nc.Type = core.CleanString(nc.Type)
	nc.Details = core.CleanString(nc.Details)
	return validate.Struct(nc)
}

// UpdateComplaint defines what information may be provided to modify an existing Complaint.
// Blank fields are left unchanged.
type UpdateComplaint struct {
	Title   string `json:"title" validate:"omitempty,max=200"`
	Type    string `json:"type" validate:"omitempty,max=100"`
	Details string `json:"details"`
}

var errEmptyUpdate = core.NewValidationError(
	errors.New("one of title, details or type is required"),
	core.FieldError{Field: "title", Error: "one of title, details or type is required"},
	core.FieldError{Field: "details", Error: "one of title, details or type is required"},
	core.FieldError{Field: "type", Error: "one of title, details or type is required"},
)

func (uc *UpdateComplaint) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Type = core.CleanString(uc.Type)
	uc.Details = core.CleanString(uc.Details)
	if uc.Title == "" && uc.Type == "" && uc.Details == "" {
		return errEmptyUpdate
	}
	return validate.Struct(uc)
}

// apply copies the non-blank fields of uc onto c.
func (uc UpdateComplaint) apply(c *Complaint) {
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.Type != "" {
		c.Type = uc.Type
	}
	if uc.Details != "" {
		c.Details = uc.Details
	}
}

type QueryFilter struct {
	Status   Status `query:"status"`
	CourseID string `query:"course_id"`

	// visibility, set from the acting principal
	StudentID  string `query:"-"` // complaints filed by
	LecturerID string `query:"-"` // complaints on courses taught by
}

func (f QueryFilter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return core.NewValidationError(
			errors.New("invalid status"),
			core.FieldError{Field: "status", Error: "status must be one of SUBMITTED, PENDING or RESOLVED"},
		)
	}
	return nil
}

// orderable fields
var OrderingFields = []string{"created_at", "updated_at", "title", "status"}
