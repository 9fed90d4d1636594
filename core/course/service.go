package course

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("course not found")
	ErrNameExists = core.NewValidationError(
		errors.New("a course with this name already exists"),
		core.FieldError{Field: "name", Error: "a course with this name already exists"},
	)
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		CourseNameExists(ctx context.Context, name string) (bool, error)
		QueryCourses(ctx context.Context) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		ListCoursesByIDs(ctx context.Context, ids []string) ([]Course, error)

		// membership
		LecturersTeaching(ctx context.Context, courseID string) ([]Member, error)
		IsTeaching(ctx context.Context, lecturerID, courseID string) (bool, error)
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	exists, err := svc.repo.CourseNameExists(ctx, nc.Name)
	if err != nil {
		return Course{}, errors.Wrap(err, "checking course name")
	}
	if exists {
		return Course{}, ErrNameExists
	}
	return svc.repo.CreateCourse(ctx, Course{ID: uuid.NewString(), Name: nc.Name, CreatedAt: core.NowFunc().UTC()})
}

func (svc *Service) Query(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryCourses(ctx)
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}
