package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/response"
)

type responseRow struct {
	response.Response
	StudentName   null.String `db:"student_name"`
	StudentEmail  null.String `db:"student_email"`
	LecturerName  null.String `db:"lecturer_name"`
	LecturerEmail null.String `db:"lecturer_email"`
}

func (row responseRow) toResponse() response.Response {
	resp := row.Response
	switch {
	case row.StudentID.Valid && row.StudentName.Valid:
		resp.Author = &response.Author{
			ID:    row.StudentID.String,
			Name:  row.StudentName.String,
			Email: row.StudentEmail.String,
			Role:  account.RoleStudent,
		}
	case row.LecturerID.Valid && row.LecturerName.Valid:
		resp.Author = &response.Author{
			ID:    row.LecturerID.String,
			Name:  row.LecturerName.String,
			Email: row.LecturerEmail.String,
			Role:  account.RoleLecturer,
		}
	}
	return resp
}

type responseRepository struct {
	db core.DB
}

var _ response.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db core.DB) *responseRepository {
	return &responseRepository{db: db}
}

func (repo responseRepository) CreateResponse(ctx context.Context, r response.Response) (response.Response, error) {
	// inserted only while the complaint is not resolved
	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO response (id, complaint_id, comment, student_id, lecturer_id, created_at)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::timestamptz
		WHERE EXISTS (SELECT 1 FROM complaint WHERE id = $2::text AND status <> 'RESOLVED')`,
		r.ID, r.ComplaintID, r.Comment, r.StudentID, r.LecturerID, r.CreatedAt.UTC(),
	)
	if err != nil {
		return response.Response{}, errors.Wrap(err, "inserting response")
	}
	if err = checkAffected(res, response.ErrComplaintResolved); err == nil {
		r.Author = nil
		return r, nil
	} else if err != response.ErrComplaintResolved {
		return response.Response{}, err
	}

	found, err := exists(ctx, repo.db, "SELECT EXISTS (SELECT 1 FROM complaint WHERE id = $1)", r.ComplaintID)
	if err != nil {
		return response.Response{}, errors.Wrap(err, "checking complaint")
	}
	if !found {
		return response.Response{}, complaint.ErrNotFound
	}
	return response.Response{}, response.ErrComplaintResolved
}

func (repo responseRepository) ListResponses(ctx context.Context, complaintID string) ([]response.Response, error) {
	rows := make([]responseRow, 0)
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT r.id, r.complaint_id, r.comment, r.student_id, r.lecturer_id, r.created_at,
			s.name AS student_name, s.email AS student_email,
			l.name AS lecturer_name, l.email AS lecturer_email
		FROM response r
		LEFT JOIN student s ON s.id = r.student_id
		LEFT JOIN lecturer l ON l.id = r.lecturer_id
		WHERE r.complaint_id = $1
		ORDER BY r.created_at ASC, r.id ASC`,
		complaintID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting responses")
	}

	resps := make([]response.Response, 0, len(rows))
	for _, row := range rows {
		resps = append(resps, row.toResponse())
	}
	return resps, nil
}
