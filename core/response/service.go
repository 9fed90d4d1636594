package response

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/notify"
)

var (
	// errors
	ErrComplaintResolved = core.NewConflictError("complaint resolved")
)

type (
	Repository interface {
		// CreateResponse saves r only if its complaint exists and is not resolved,
		// otherwise it returns complaint.ErrNotFound or ErrComplaintResolved.
		CreateResponse(ctx context.Context, r Response) (Response, error)
		// ListResponses returns the responses of a complaint, oldest first, with their authors.
		ListResponses(ctx context.Context, complaintID string) ([]Response, error)
	}

	Notifier interface {
		NotifyTransition(ctx context.Context, tr notify.Transition, c complaint.Complaint, actor account.Identity, comment string)
	}

	Service struct {
		repo       Repository
		complaints complaint.Repository
		accounts   account.Repository
		notifier   Notifier
		validate   *validator.Validate
	}
)

func NewService(
	repo Repository,
	complaints complaint.Repository,
	accounts account.Repository,
	notifier Notifier,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:       repo,
		complaints: complaints,
		accounts:   accounts,
		notifier:   notifier,
		validate:   validate,
	}
}

func (svc *Service) getComplaint(ctx context.Context, id string) (complaint.Complaint, error) {
	c, err := svc.complaints.GetComplaint(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return complaint.Complaint{}, complaint.ErrNotFound
		}
		return complaint.Complaint{}, errors.Wrap(err, "finding complaint")
	}
	return c, nil
}

func (svc *Service) author(ctx context.Context, actor account.Identity) (Author, error) {
	switch actor.Role {
	case account.RoleStudent:
		std, err := svc.accounts.GetStudentByID(ctx, actor.ID)
		if err != nil {
			return Author{}, err
		}
		return Author{ID: std.ID, Name: std.Name, Email: std.Email, Role: account.RoleStudent}, nil
	case account.RoleLecturer:
		lec, err := svc.accounts.GetLecturerByID(ctx, actor.ID)
		if err != nil {
			return Author{}, err
		}
		return Author{ID: lec.ID, Name: lec.Name, Email: lec.Email, Role: account.RoleLecturer}, nil
	}
	return Author{}, account.ErrInvalidRole
}

// Add appends a comment to the thread of an unresolved complaint.
func (svc *Service) Add(ctx context.Context, actor account.Identity, complaintID string, nr NewResponse) (Response, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Response{}, err
	}

	c, err := svc.getComplaint(ctx, complaintID)
	if err != nil {
		return Response{}, err
	}
	if c.IsResolved() {
		return Response{}, ErrComplaintResolved
	}

	author, err := svc.author(ctx, actor)
	if err != nil {
		return Response{}, errors.Wrap(err, "finding author")
	}

	resp := Response{
		ID:          uuid.NewString(),
		ComplaintID: c.ID,
		Comment:     nr.Comment,
		CreatedAt:   core.NowFunc().UTC(),
	}
	switch actor.Role {
	case account.RoleStudent:
		resp.StudentID = null.StringFrom(actor.ID)
	case account.RoleLecturer:
		resp.LecturerID = null.StringFrom(actor.ID)
	}

	resp, err = svc.repo.CreateResponse(ctx, resp)
	if err != nil {
		switch {
		case core.IsConflict(err):
			return Response{}, ErrComplaintResolved
		case core.IsNotFound(err):
			return Response{}, complaint.ErrNotFound
		}
		return Response{}, errors.Wrap(err, "creating response")
	}
	resp.Author = &author

	svc.notifier.NotifyTransition(ctx, notify.ResponseAdded, c, actor, resp.Comment)
	return resp, nil
}

// List returns the thread of a complaint, oldest first.
func (svc *Service) List(ctx context.Context, actor account.Identity, complaintID string) ([]Response, error) {
	if _, err := svc.getComplaint(ctx, complaintID); err != nil {
		return nil, err
	}
	resps, err := svc.repo.ListResponses(ctx, complaintID)
	if err != nil {
		return nil, errors.Wrap(err, "listing responses")
	}
	return resps, nil
}
