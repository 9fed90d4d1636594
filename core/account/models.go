package account

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/course"
)

// Role is the kind of principal acting on the system.
type Role string

// Roles
const (
	RoleStudent  Role = "STUDENT"
	RoleLecturer Role = "LECTURER"
)

var ErrInvalidRole = core.NewValidationError(
	errors.New("invalid role"),
	core.FieldError{Field: "role", Error: "role must be one of STUDENT or LECTURER"},
)

// ParseRole maps user input to a Role, ignoring case.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleLecturer:
		return RoleLecturer, nil
	}
	return "", ErrInvalidRole
}

func (r Role) String() string { return string(r) }

// Identity is an authenticated principal.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (id Identity) IsStudent() bool  { return id.Role == RoleStudent }
func (id Identity) IsLecturer() bool { return id.Role == RoleLecturer }

type Student struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Matric       string    `json:"matric" db:"matric"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CourseIDs    []string  `json:"course_ids" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := hashPassword(pwd)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s Student) Identity() Identity { return Identity{ID: s.ID, Role: RoleStudent} }

func (s Student) Member() course.Member {
	return course.Member{ID: s.ID, Name: s.Name, Email: s.Email}
}

func (s Student) Profile() Profile {
	return Profile{
		ID:        s.ID,
		Name:      s.Name,
		Email:     s.Email,
		Role:      RoleStudent,
		Matric:    s.Matric,
		CourseIDs: s.CourseIDs,
		CreatedAt: s.CreatedAt,
	}
}

type Lecturer struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CourseIDs    []string  `json:"course_ids" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (l *Lecturer) SetPassword(pwd string) error {
	hash, err := hashPassword(pwd)
	if err != nil {
		return err
	}
	l.PasswordHash = hash
	return nil
}

func (l *Lecturer) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(l.PasswordHash, []byte(pwd))
}

func (l Lecturer) Identity() Identity { return Identity{ID: l.ID, Role: RoleLecturer} }

func (l Lecturer) Member() course.Member {
	return course.Member{ID: l.ID, Name: l.Name, Email: l.Email}
}

func (l Lecturer) Profile() Profile {
	return Profile{
		ID:        l.ID,
		Name:      l.Name,
		Email:     l.Email,
		Role:      RoleLecturer,
		CourseIDs: l.CourseIDs,
		CreatedAt: l.CreatedAt,
	}
}

func hashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
}

// Profile is the public view of a Student or a Lecturer.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Matric    string    `json:"matric,omitempty"`
	CourseIDs []string  `json:"course_ids"`
	CreatedAt time.Time `json:"created_at"`
}

func (p Profile) Identity() Identity { return Identity{ID: p.ID, Role: p.Role} }

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	Name            string   `json:"name" validate:"required,notblank"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	CourseIDs       []string `json:"course_ids" validate:"required,min=3,max=7,unique,dive,required"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// NewLecturer contains information needed to register a new Lecturer.
type NewLecturer struct {
	Name            string   `json:"name" validate:"required,notblank"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	CourseIDs       []string `json:"course_ids" validate:"required,min=1,max=3,unique,dive,required"`
}

func (nl *NewLecturer) Validate(validate *validator.Validate) error {
	nl.Name = core.CleanString(nl.Name)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	return validate.Struct(nl)
}

type SignIn struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

func (si *SignIn) Validate(validate *validator.Validate) error {
	si.Email = core.CleanString(si.Email, true /* lower */)
	return validate.Struct(si)
}

type ResetPassword struct {
	Email           string `json:"email" validate:"required,email"`
	Role            Role   `json:"role" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	return validate.Struct(rp)
}
