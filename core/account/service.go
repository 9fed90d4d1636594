package account

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/course"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("account not found")
	ErrInvalidCredentials = core.NewAuthenticationError("invalid credentials")
	ErrEmailExists        = core.NewValidationError(
		errors.New("an account with this email already exists"),
		core.FieldError{Field: "email", Error: "an account with this email already exists"},
	)
	ErrInvalidCourses = core.NewValidationError(
		errors.New("invalid courses"),
		core.FieldError{Field: "course_ids", Error: "one or more courses do not exist"},
	)
	ErrMatricExists = core.NewConflictError("matriculation number already taken, please retry")
)

const maxMatricAttempts = 3

type (
	Repository interface {
		EmailExists(ctx context.Context, role Role, email string) (bool, error)
		// LastMatric returns the highest matriculation number starting with prefix, or "" if there is none.
		LastMatric(ctx context.Context, prefix string) (string, error)

		// CreateStudent persists the student together with its course enrollments.
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByEmail(ctx context.Context, email string) (Student, error)
		UpdateStudentPassword(ctx context.Context, id string, hash []byte) error
		DeleteStudent(ctx context.Context, id string) error

		// CreateLecturer persists the lecturer together with the courses it teaches.
		CreateLecturer(ctx context.Context, l Lecturer) (Lecturer, error)
		GetLecturerByID(ctx context.Context, id string) (Lecturer, error)
		GetLecturerByEmail(ctx context.Context, email string) (Lecturer, error)
		UpdateLecturerPassword(ctx context.Context, id string, hash []byte) error
		DeleteLecturer(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		courses  course.Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, courses course.Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, courses: courses, validate: validate}
}

func (svc *Service) checkEmail(ctx context.Context, role Role, email string) error {
	exists, err := svc.repo.EmailExists(ctx, role, email)
	if err != nil {
		return errors.Wrap(err, "checking email")
	}
	if exists {
		return ErrEmailExists
	}
	return nil
}

func (svc *Service) checkCourses(ctx context.Context, ids []string) error {
	found, err := svc.courses.ListCoursesByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if len(found) != len(ids) {
		return ErrInvalidCourses
	}
	return nil
}

// nextMatric follows the highest matriculation number of the current year, eg: 2026-000042.
func (svc *Service) nextMatric(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("%d-", core.NowFunc().UTC().Year())
	last, err := svc.repo.LastMatric(ctx, prefix)
	if err != nil {
		return "", errors.Wrap(err, "getting last matric")
	}

	var seq int
	if last != "" {
		if seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix)); err != nil {
			return "", errors.Wrapf(err, "parsing matric %q", last)
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq+1), nil
}

func (svc *Service) RegisterStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	if err := svc.checkEmail(ctx, RoleStudent, ns.Email); err != nil {
		return Student{}, err
	}
	if err := svc.checkCourses(ctx, ns.CourseIDs); err != nil {
		return Student{}, err
	}

	now := core.NowFunc().UTC()
	std := Student{
		ID:        uuid.NewString(),
		Name:      ns.Name,
		Email:     ns.Email,
		CourseIDs: ns.CourseIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := std.SetPassword(ns.Password); err != nil {
		return Student{}, errors.Wrap(err, "hashing password")
	}

	// concurrent registrations may race for the same matric
	for attempt := 1; ; attempt++ {
		matric, err := svc.nextMatric(ctx)
		if err != nil {
			return Student{}, err
		}
		std.Matric = matric

		created, err := svc.repo.CreateStudent(ctx, std)
		if err != ErrMatricExists || attempt == maxMatricAttempts {
			return created, err
		}
	}
}

func (svc *Service) RegisterLecturer(ctx context.Context, nl NewLecturer) (Lecturer, error) {
	if err := nl.Validate(svc.validate); err != nil {
		return Lecturer{}, err
	}
	if err := svc.checkEmail(ctx, RoleLecturer, nl.Email); err != nil {
		return Lecturer{}, err
	}
	if err := svc.checkCourses(ctx, nl.CourseIDs); err != nil {
		return Lecturer{}, err
	}

	now := core.NowFunc().UTC()
	lec := Lecturer{
		ID:        uuid.NewString(),
		Name:      nl.Name,
		Email:     nl.Email,
		CourseIDs: nl.CourseIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := lec.SetPassword(nl.Password); err != nil {
		return Lecturer{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateLecturer(ctx, lec)
}

// SignIn checks the credentials of the account with the given email and role.
// Unknown accounts and wrong passwords both fail with ErrInvalidCredentials.
func (svc *Service) SignIn(ctx context.Context, si SignIn) (Profile, error) {
	if err := si.Validate(svc.validate); err != nil {
		return Profile{}, err
	}
	role, err := ParseRole(si.Role)
	if err != nil {
		return Profile{}, err
	}

	switch role {
	case RoleStudent:
		std, err := svc.repo.GetStudentByEmail(ctx, si.Email)
		if err != nil {
			return Profile{}, credentialsErr(err)
		}
		if err := std.CheckPassword(si.Password); err != nil {
			return Profile{}, ErrInvalidCredentials
		}
		return std.Profile(), nil
	case RoleLecturer:
		lec, err := svc.repo.GetLecturerByEmail(ctx, si.Email)
		if err != nil {
			return Profile{}, credentialsErr(err)
		}
		if err := lec.CheckPassword(si.Password); err != nil {
			return Profile{}, ErrInvalidCredentials
		}
		return lec.Profile(), nil
	}
	return Profile{}, ErrInvalidRole
}

func credentialsErr(err error) error {
	if core.IsNotFound(err) {
		return ErrInvalidCredentials
	}
	return errors.Wrap(err, "finding account")
}

// GetProfile returns the profile of the given principal.
func (svc *Service) GetProfile(ctx context.Context, id Identity) (Profile, error) {
	switch id.Role {
	case RoleStudent:
		std, err := svc.repo.GetStudentByID(ctx, id.ID)
		if err != nil {
			return Profile{}, err
		}
		return std.Profile(), nil
	case RoleLecturer:
		lec, err := svc.repo.GetLecturerByID(ctx, id.ID)
		if err != nil {
			return Profile{}, err
		}
		return lec.Profile(), nil
	}
	return Profile{}, ErrInvalidRole
}

// Delete removes the actor's own account.
func (svc *Service) Delete(ctx context.Context, actor Identity, id string) error {
	if actor.ID != id {
		return core.NewPermissionError("you can only delete your own account")
	}

	switch actor.Role {
	case RoleStudent:
		return svc.repo.DeleteStudent(ctx, id)
	case RoleLecturer:
		return svc.repo.DeleteLecturer(ctx, id)
	}
	return ErrInvalidRole
}

// ResetPassword sets a new password on the account with the given email and role.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) error {
	if err := rp.Validate(svc.validate); err != nil {
		return err
	}

	pwdErr := func(name, email string) error {
		if tag := checkPassword(rp.Password, name, email); tag != "" {
			return core.NewValidationError(
				errors.New(pwdTexts[tag]),
				core.FieldError{Field: "password", Error: pwdTexts[tag]},
			)
		}
		return nil
	}

	switch rp.Role {
	case RoleStudent:
		std, err := svc.repo.GetStudentByEmail(ctx, rp.Email)
		if err != nil {
			return err
		}
		if err := pwdErr(std.Name, std.Email); err != nil {
			return err
		}
		if err := std.SetPassword(rp.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		return svc.repo.UpdateStudentPassword(ctx, std.ID, std.PasswordHash)
	case RoleLecturer:
		lec, err := svc.repo.GetLecturerByEmail(ctx, rp.Email)
		if err != nil {
			return err
		}
		if err := pwdErr(lec.Name, lec.Email); err != nil {
			return err
		}
		if err := lec.SetPassword(rp.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		return svc.repo.UpdateLecturerPassword(ctx, lec.ID, lec.PasswordHash)
	}
	return ErrInvalidRole
}
