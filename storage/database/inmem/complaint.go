package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/complaint"
)

type complaintRepository struct {
	db *DB
}

func NewComplaintRepository(db *DB) complaint.Repository {
	return &complaintRepository{db: db}
}

func (repo *complaintRepository) CreateComplaint(_ context.Context, c complaint.Complaint) (complaint.Complaint, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.Course = nil
	repo.db.complaints[c.ID] = c
	return c, nil
}

func (repo *complaintRepository) GetComplaint(_ context.Context, id string) (complaint.Complaint, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.complaints[id]; ok {
		return c, nil
	}
	return complaint.Complaint{}, complaint.ErrNotFound
}

func (repo *complaintRepository) UpdateComplaint(
	_ context.Context,
	c complaint.Complaint,
	expected complaint.Status,
) (complaint.Complaint, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.complaints[c.ID]
	if !ok {
		return complaint.Complaint{}, complaint.ErrNotFound
	}
	if orig.Status != expected {
		return complaint.Complaint{}, complaint.ErrStaleStatus
	}

	// only mutable fields
	orig.Title = c.Title
	orig.Details = c.Details
	orig.Type = c.Type
	orig.Status = c.Status
	orig.UpdatedAt = c.UpdatedAt
	repo.db.complaints[c.ID] = orig
	return orig, nil
}

func (repo *complaintRepository) DeleteComplaint(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.complaints[id]; !ok {
		return complaint.ErrNotFound
	}
	repo.db.deleteComplaint(id)
	return nil
}

func (repo *complaintRepository) QueryComplaints(
	_ context.Context,
	filter complaint.QueryFilter,
	ordering ...core.DBOrdering,
) ([]complaint.Complaint, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var taught []string
	if filter.LecturerID != "" {
		taught = repo.db.lecturers[filter.LecturerID].CourseIDs
	}

	complaints := make([]complaint.Complaint, 0)
	for _, c := range repo.db.complaints {
		if filter.StudentID != "" && c.StudentID != filter.StudentID {
			continue
		}
		if filter.LecturerID != "" && !contains(taught, c.CourseID) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.CourseID != "" && c.CourseID != filter.CourseID {
			continue
		}
		complaints = append(complaints, c)
	}

	sort.SliceStable(complaints, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareComplaints(complaints[i], complaints[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return complaints[i].ID < complaints[j].ID
	})
	return complaints, nil
}

func compareComplaints(a, b complaint.Complaint, field string) int {
	switch field {
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	}
	return 0
}
