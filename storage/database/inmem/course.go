package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/malalamiko/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, crs := range repo.db.courses {
		if strings.EqualFold(crs.Name, c.Name) {
			return course.Course{}, course.ErrNameExists
		}
	}
	repo.db.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) CourseNameExists(_ context.Context, name string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, crs := range repo.db.courses {
		if strings.EqualFold(crs.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) ListCoursesByIDs(_ context.Context, ids []string) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if crs, ok := repo.db.courses[id]; ok {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) LecturersTeaching(_ context.Context, courseID string) ([]course.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]course.Member, 0)
	for _, lec := range repo.db.lecturers {
		if contains(lec.CourseIDs, courseID) {
			members = append(members, lec.Member())
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (repo *courseRepository) IsTeaching(_ context.Context, lecturerID, courseID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lec, ok := repo.db.lecturers[lecturerID]
	return ok && contains(lec.CourseIDs, courseID), nil
}

func (repo *courseRepository) IsEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	std, ok := repo.db.students[studentID]
	return ok && contains(std.CourseIDs, courseID), nil
}
