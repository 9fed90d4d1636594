package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/complaint"
)

const complaintColumns = "id, title, details, type, status, student_id, course_id, created_at, updated_at"

var complaintOrderingFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"status":     true,
}

type complaintRepository struct {
	db core.DB
}

var _ complaint.Repository = (*complaintRepository)(nil) // interface compliance check

func NewComplaintRepository(db core.DB) *complaintRepository {
	return &complaintRepository{db: db}
}

func (repo complaintRepository) CreateComplaint(ctx context.Context, c complaint.Complaint) (complaint.Complaint, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO complaint (id, title, details, type, status, student_id, course_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Title, c.Details, c.Type, c.Status, c.StudentID, c.CourseID, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return complaint.Complaint{}, errors.Wrap(err, "inserting complaint")
	}
	c.Course = nil
	return c, nil
}

func (repo complaintRepository) GetComplaint(ctx context.Context, id string) (complaint.Complaint, error) {
	var c complaint.Complaint
	if err := repo.db.GetContext(ctx, &c, "SELECT "+complaintColumns+" FROM complaint WHERE id = $1", id); err != nil {
		return complaint.Complaint{}, trapNoRowsErr(err, complaint.ErrNotFound, "selecting complaint")
	}
	return c, nil
}

func (repo complaintRepository) UpdateComplaint(
	ctx context.Context,
	c complaint.Complaint,
	expected complaint.Status,
) (complaint.Complaint, error) {
	var updated complaint.Complaint
	err := repo.db.GetContext(ctx, &updated, `
		UPDATE complaint
		SET title = $1, details = $2, type = $3, status = $4, updated_at = $5
		WHERE id = $6 AND status = $7
		RETURNING `+complaintColumns,
		c.Title, c.Details, c.Type, c.Status, c.UpdatedAt.UTC(), c.ID, expected,
	)
	if err == nil {
		return updated, nil
	}
	if err = trapNoRowsErr(err, complaint.ErrStaleStatus, "updating complaint"); err != complaint.ErrStaleStatus {
		return complaint.Complaint{}, err
	}

	// nothing updated: either gone or moved to another status
	found, err := exists(ctx, repo.db, "SELECT EXISTS (SELECT 1 FROM complaint WHERE id = $1)", c.ID)
	if err != nil {
		return complaint.Complaint{}, errors.Wrap(err, "checking complaint")
	}
	if !found {
		return complaint.Complaint{}, complaint.ErrNotFound
	}
	return complaint.Complaint{}, complaint.ErrStaleStatus
}

func (repo complaintRepository) DeleteComplaint(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM complaint WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting complaint")
	}
	return checkAffected(res, complaint.ErrNotFound)
}

func (repo complaintRepository) QueryComplaints(
	ctx context.Context,
	filter complaint.QueryFilter,
	ordering ...core.DBOrdering,
) ([]complaint.Complaint, error) {
	q := psql.Select(complaintColumns).From("complaint")

	if filter.StudentID != "" {
		q = q.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.LecturerID != "" {
		q = q.Where("course_id IN (SELECT course_id FROM lecturer_course WHERE lecturer_id = ?)", filter.LecturerID)
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.CourseID != "" {
		q = q.Where(sq.Eq{"course_id": filter.CourseID})
	}

	for _, ord := range ordering {
		if complaintOrderingFields[ord.Field] {
			q = q.OrderBy(ord.String())
		}
	}
	q = q.OrderBy("id ASC")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building complaints query")
	}

	complaints := make([]complaint.Complaint, 0)
	if err = repo.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting complaints")
	}
	return complaints, nil
}
