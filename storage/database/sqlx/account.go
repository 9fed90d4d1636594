package sqlxrepos

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
)

const (
	studentSelect = `
		SELECT s.id, s.name, s.email, s.matric, s.password_hash, s.created_at, s.updated_at,
			COALESCE(array_agg(sc.course_id ORDER BY sc.course_id) FILTER (WHERE sc.course_id IS NOT NULL), '{}') AS course_ids
		FROM student s
		LEFT JOIN student_course sc ON sc.student_id = s.id`
	studentGroupBy = " GROUP BY s.id"

	lecturerSelect = `
		SELECT l.id, l.name, l.email, l.password_hash, l.created_at, l.updated_at,
			COALESCE(array_agg(lc.course_id ORDER BY lc.course_id) FILTER (WHERE lc.course_id IS NOT NULL), '{}') AS course_ids
		FROM lecturer l
		LEFT JOIN lecturer_course lc ON lc.lecturer_id = l.id`
	lecturerGroupBy = " GROUP BY l.id"
)

type (
	studentRow struct {
		account.Student
		CourseIDs pq.StringArray `db:"course_ids"`
	}

	lecturerRow struct {
		account.Lecturer
		CourseIDs pq.StringArray `db:"course_ids"`
	}
)

func (row studentRow) toStudent() account.Student {
	std := row.Student
	std.CourseIDs = []string(row.CourseIDs)
	return std
}

func (row lecturerRow) toLecturer() account.Lecturer {
	lec := row.Lecturer
	lec.CourseIDs = []string(row.CourseIDs)
	return lec
}

type accountRepository struct {
	db core.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db core.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo accountRepository) EmailExists(ctx context.Context, role account.Role, email string) (bool, error) {
	var query string
	switch role {
	case account.RoleStudent:
		query = "SELECT EXISTS (SELECT 1 FROM student WHERE email = $1)"
	case account.RoleLecturer:
		query = "SELECT EXISTS (SELECT 1 FROM lecturer WHERE email = $1)"
	default:
		return false, account.ErrInvalidRole
	}
	ok, err := exists(ctx, repo.db, query, email)
	return ok, errors.Wrap(err, "checking email")
}

func (repo accountRepository) LastMatric(ctx context.Context, prefix string) (string, error) {
	var matric string
	err := repo.db.GetContext(ctx, &matric, "SELECT COALESCE(MAX(matric), '') FROM student WHERE matric LIKE $1 || '%'", prefix)
	return matric, errors.Wrap(err, "getting last matric")
}

func (repo accountRepository) CreateStudent(ctx context.Context, s account.Student) (account.Student, error) {
	err := withTx(ctx, repo.db, func(exec core.DBExecutor) error {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO student (id, name, email, matric, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, s.Name, s.Email, s.Matric, s.PasswordHash, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
		)
		if err != nil {
			switch {
			case isUniqueViolationOn(err, "student_matric_key"):
				return account.ErrMatricExists
			case isUniqueViolation(err):
				return account.ErrEmailExists
			}
			return errors.Wrap(err, "inserting student")
		}

		_, err = exec.ExecContext(ctx,
			"INSERT INTO student_course (student_id, course_id) SELECT $1, unnest($2::text[])",
			s.ID, pq.Array(s.CourseIDs),
		)
		return errors.Wrap(err, "enrolling student")
	})
	if err != nil {
		return account.Student{}, err
	}
	return s, nil
}

func (repo accountRepository) getStudent(ctx context.Context, where string, arg interface{}) (account.Student, error) {
	var row studentRow
	if err := repo.db.GetContext(ctx, &row, studentSelect+" WHERE "+where+studentGroupBy, arg); err != nil {
		return account.Student{}, trapNoRowsErr(err, account.ErrNotFound, "selecting student")
	}
	return row.toStudent(), nil
}

func (repo accountRepository) GetStudentByID(ctx context.Context, id string) (account.Student, error) {
	return repo.getStudent(ctx, "s.id = $1", id)
}

func (repo accountRepository) GetStudentByEmail(ctx context.Context, email string) (account.Student, error) {
	return repo.getStudent(ctx, "s.email = $1", email)
}

func (repo accountRepository) UpdateStudentPassword(ctx context.Context, id string, hash []byte) error {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE student SET password_hash = $1, updated_at = $2 WHERE id = $3",
		hash, core.NowFunc().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "updating student password")
	}
	return checkAffected(res, account.ErrNotFound)
}

func (repo accountRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM student WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return checkAffected(res, account.ErrNotFound)
}

func (repo accountRepository) CreateLecturer(ctx context.Context, l account.Lecturer) (account.Lecturer, error) {
	err := withTx(ctx, repo.db, func(exec core.DBExecutor) error {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO lecturer (id, name, email, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, l.Name, l.Email, l.PasswordHash, l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return account.ErrEmailExists
			}
			return errors.Wrap(err, "inserting lecturer")
		}

		_, err = exec.ExecContext(ctx,
			"INSERT INTO lecturer_course (lecturer_id, course_id) SELECT $1, unnest($2::text[])",
			l.ID, pq.Array(l.CourseIDs),
		)
		return errors.Wrap(err, "assigning lecturer courses")
	})
	if err != nil {
		return account.Lecturer{}, err
	}
	return l, nil
}

func (repo accountRepository) getLecturer(ctx context.Context, where string, arg interface{}) (account.Lecturer, error) {
	var row lecturerRow
	if err := repo.db.GetContext(ctx, &row, lecturerSelect+" WHERE "+where+lecturerGroupBy, arg); err != nil {
		return account.Lecturer{}, trapNoRowsErr(err, account.ErrNotFound, "selecting lecturer")
	}
	return row.toLecturer(), nil
}

func (repo accountRepository) GetLecturerByID(ctx context.Context, id string) (account.Lecturer, error) {
	return repo.getLecturer(ctx, "l.id = $1", id)
}

func (repo accountRepository) GetLecturerByEmail(ctx context.Context, email string) (account.Lecturer, error) {
	return repo.getLecturer(ctx, "l.email = $1", email)
}

func (repo accountRepository) UpdateLecturerPassword(ctx context.Context, id string, hash []byte) error {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE lecturer SET password_hash = $1, updated_at = $2 WHERE id = $3",
		hash, core.NowFunc().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "updating lecturer password")
	}
	return checkAffected(res, account.ErrNotFound)
}

func (repo accountRepository) DeleteLecturer(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM lecturer WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting lecturer")
	}
	return checkAffected(res, account.ErrNotFound)
}
