package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/course"
)

const courseColumns = "id, name, created_at"

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO course (id, name, created_at) VALUES ($1, $2, $3)",
		c.ID, c.Name, c.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return course.Course{}, course.ErrNameExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) CourseNameExists(ctx context.Context, name string) (bool, error) {
	ok, err := exists(ctx, repo.db, "SELECT EXISTS (SELECT 1 FROM course WHERE lower(name) = lower($1))", name)
	return ok, errors.Wrap(err, "checking course name")
}

func (repo courseRepository) QueryCourses(ctx context.Context) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	if err := repo.db.SelectContext(ctx, &courses, "SELECT "+courseColumns+" FROM course ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var c course.Course
	if err := repo.db.GetContext(ctx, &c, "SELECT "+courseColumns+" FROM course WHERE id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "selecting course")
	}
	return c, nil
}

func (repo courseRepository) ListCoursesByIDs(ctx context.Context, ids []string) ([]course.Course, error) {
	courses := make([]course.Course, 0, len(ids))
	if len(ids) == 0 {
		return courses, nil
	}

	query, args, err := psql.Select(courseColumns).From("course").Where(sq.Eq{"id": ids}).OrderBy("name").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building courses query")
	}
	if err = repo.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return courses, nil
}

func (repo courseRepository) LecturersTeaching(ctx context.Context, courseID string) ([]course.Member, error) {
	members := make([]course.Member, 0)
	err := repo.db.SelectContext(ctx, &members, `
		SELECT l.id, l.name, l.email
		FROM lecturer l
		JOIN lecturer_course lc ON lc.lecturer_id = l.id
		WHERE lc.course_id = $1
		ORDER BY l.name`,
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting course lecturers")
	}
	return members, nil
}

func (repo courseRepository) IsTeaching(ctx context.Context, lecturerID, courseID string) (bool, error) {
	ok, err := exists(ctx, repo.db,
		"SELECT EXISTS (SELECT 1 FROM lecturer_course WHERE lecturer_id = $1 AND course_id = $2)",
		lecturerID, courseID,
	)
	return ok, errors.Wrap(err, "checking lecturer course")
}

func (repo courseRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	ok, err := exists(ctx, repo.db,
		"SELECT EXISTS (SELECT 1 FROM student_course WHERE student_id = $1 AND course_id = $2)",
		studentID, courseID,
	)
	return ok, errors.Wrap(err, "checking student course")
}
