package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/response"
)

type responseRepository struct {
	db *DB
}

func NewResponseRepository(db *DB) response.Repository {
	return &responseRepository{db: db}
}

func (repo *responseRepository) CreateResponse(_ context.Context, r response.Response) (response.Response, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.complaints[r.ComplaintID]
	if !ok {
		return response.Response{}, complaint.ErrNotFound
	}
	if c.IsResolved() {
		return response.Response{}, response.ErrComplaintResolved
	}

	r.Author = nil
	repo.db.seq++
	repo.db.responses[r.ID] = responseRow{seq: repo.db.seq, resp: r}
	return r, nil
}

func (repo *responseRepository) ListResponses(_ context.Context, complaintID string) ([]response.Response, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]responseRow, 0)
	for _, row := range repo.db.responses {
		if row.resp.ComplaintID == complaintID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if cmp := rows[i].resp.CreatedAt.Compare(rows[j].resp.CreatedAt); cmp != 0 {
			return cmp < 0
		}
		return rows[i].seq < rows[j].seq
	})

	resps := make([]response.Response, 0, len(rows))
	for _, row := range rows {
		resp := row.resp
		resp.Author = repo.author(resp)
		resps = append(resps, resp)
	}
	return resps, nil
}

// must be called with db.mu held
func (repo *responseRepository) author(r response.Response) *response.Author {
	if r.StudentID.Valid {
		if std, ok := repo.db.students[r.StudentID.String]; ok {
			return &response.Author{ID: std.ID, Name: std.Name, Email: std.Email, Role: account.RoleStudent}
		}
	}
	if r.LecturerID.Valid {
		if lec, ok := repo.db.lecturers[r.LecturerID.String]; ok {
			return &response.Author{ID: lec.ID, Name: lec.Name, Email: lec.Email, Role: account.RoleLecturer}
		}
	}
	return nil
}
