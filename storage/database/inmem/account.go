package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/malalamiko/core/account"
)

type accountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) EmailExists(_ context.Context, role account.Role, email string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch role {
	case account.RoleStudent:
		for _, std := range repo.db.students {
			if std.Email == email {
				return true, nil
			}
		}
	case account.RoleLecturer:
		for _, lec := range repo.db.lecturers {
			if lec.Email == email {
				return true, nil
			}
		}
	}
	return false, nil
}

func (repo *accountRepository) LastMatric(_ context.Context, prefix string) (string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var last string
	for _, std := range repo.db.students {
		if strings.HasPrefix(std.Matric, prefix) && std.Matric > last {
			last = std.Matric
		}
	}
	return last, nil
}

func (repo *accountRepository) CreateStudent(_ context.Context, s account.Student) (account.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, std := range repo.db.students {
		switch {
		case std.Email == s.Email:
			return account.Student{}, account.ErrEmailExists
		case std.Matric == s.Matric:
			return account.Student{}, account.ErrMatricExists
		}
	}
	s.CourseIDs = copyIDs(s.CourseIDs)
	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *accountRepository) GetStudentByID(_ context.Context, id string) (account.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if std, ok := repo.db.students[id]; ok {
		std.CourseIDs = copyIDs(std.CourseIDs)
		return std, nil
	}
	return account.Student{}, account.ErrNotFound
}

func (repo *accountRepository) GetStudentByEmail(_ context.Context, email string) (account.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, std := range repo.db.students {
		if std.Email == email {
			std.CourseIDs = copyIDs(std.CourseIDs)
			return std, nil
		}
	}
	return account.Student{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateStudentPassword(_ context.Context, id string, hash []byte) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	std, ok := repo.db.students[id]
	if !ok {
		return account.ErrNotFound
	}
	std.PasswordHash = hash
	repo.db.students[id] = std
	return nil
}

func (repo *accountRepository) DeleteStudent(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return account.ErrNotFound
	}
	delete(repo.db.students, id)

	for cid, c := range repo.db.complaints {
		if c.StudentID == id {
			repo.db.deleteComplaint(cid)
		}
	}
	for rid, row := range repo.db.responses {
		if row.resp.StudentID.Valid && row.resp.StudentID.String == id {
			row.resp.StudentID.Valid = false
			row.resp.StudentID.String = ""
			repo.db.responses[rid] = row
		}
	}
	return nil
}

func (repo *accountRepository) CreateLecturer(_ context.Context, l account.Lecturer) (account.Lecturer, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, lec := range repo.db.lecturers {
		if lec.Email == l.Email {
			return account.Lecturer{}, account.ErrEmailExists
		}
	}
	l.CourseIDs = copyIDs(l.CourseIDs)
	repo.db.lecturers[l.ID] = l
	return l, nil
}

func (repo *accountRepository) GetLecturerByID(_ context.Context, id string) (account.Lecturer, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if lec, ok := repo.db.lecturers[id]; ok {
		lec.CourseIDs = copyIDs(lec.CourseIDs)
		return lec, nil
	}
	return account.Lecturer{}, account.ErrNotFound
}

func (repo *accountRepository) GetLecturerByEmail(_ context.Context, email string) (account.Lecturer, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, lec := range repo.db.lecturers {
		if lec.Email == email {
			lec.CourseIDs = copyIDs(lec.CourseIDs)
			return lec, nil
		}
	}
	return account.Lecturer{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateLecturerPassword(_ context.Context, id string, hash []byte) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	lec, ok := repo.db.lecturers[id]
	if !ok {
		return account.ErrNotFound
	}
	lec.PasswordHash = hash
	repo.db.lecturers[id] = lec
	return nil
}

func (repo *accountRepository) DeleteLecturer(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lecturers[id]; !ok {
		return account.ErrNotFound
	}
	delete(repo.db.lecturers, id)

	for rid, row := range repo.db.responses {
		if row.resp.LecturerID.Valid && row.resp.LecturerID.String == id {
			row.resp.LecturerID.Valid = false
			row.resp.LecturerID.String = ""
			repo.db.responses[rid] = row
		}
	}
	return nil
}

// SetLecturerCourses replaces the courses taught by a lecturer.
func (db *DB) SetLecturerCourses(lecturerID string, courseIDs ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if lec, ok := db.lecturers[lecturerID]; ok {
		lec.CourseIDs = copyIDs(courseIDs)
		db.lecturers[lecturerID] = lec
	}
}
