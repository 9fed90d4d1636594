package inmemdb

import (
	"sync"

	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/core/response"
)

type responseRow struct {
	seq  int
	resp response.Response
}

// DB is an in-memory database shared by the repositories of this package.
// Cascading deletes mirror the SQL schema.
type DB struct {
	mu sync.RWMutex

	courses    map[string]course.Course
	students   map[string]account.Student
	lecturers  map[string]account.Lecturer
	complaints map[string]complaint.Complaint
	responses  map[string]responseRow

	seq int
}

func NewDB() *DB {
	return &DB{
		courses:    make(map[string]course.Course),
		students:   make(map[string]account.Student),
		lecturers:  make(map[string]account.Lecturer),
		complaints: make(map[string]complaint.Complaint),
		responses:  make(map[string]responseRow),
	}
}

// Reset empties all the tables.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.courses = make(map[string]course.Course)
	db.students = make(map[string]account.Student)
	db.lecturers = make(map[string]account.Lecturer)
	db.complaints = make(map[string]complaint.Complaint)
	db.responses = make(map[string]responseRow)
}

// must be called with db.mu held
func (db *DB) deleteComplaint(id string) {
	delete(db.complaints, id)
	for rid, row := range db.responses {
		if row.resp.ComplaintID == id {
			delete(db.responses, rid)
		}
	}
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func copyIDs(ids []string) []string {
	return append([]string(nil), ids...)
}
