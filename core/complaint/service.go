package complaint

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/core/notify"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("complaint not found")
	ErrStaleStatus    = core.NewConflictError("complaint was modified concurrently, retry")
	ErrResolved       = core.NewConflictError("complaint is resolved and can no longer be edited")
	ErrAlreadyPending = core.NewValidationError(
		errors.New("complaint is already pending"),
		core.FieldError{Field: "status", Error: "complaint is already pending"},
	)
	ErrUnknownCourse = core.NewValidationError(
		errors.New("course does not exist"),
		core.FieldError{Field: "course_id", Error: "course does not exist"},
	)

	errStudentsOnly  = core.NewPermissionError("only students can perform this action")
	errLecturersOnly = core.NewPermissionError("only lecturers can perform this action")
	errNotOwner      = core.NewPermissionError("you do not own this complaint")
	errNotTeaching   = core.NewPermissionError("you do not teach this course")
	errNotEnrolled   = core.NewPermissionError("you are not enrolled in this course")
)

type (
	Repository interface {
		CreateComplaint(ctx context.Context, c Complaint) (Complaint, error)
		GetComplaint(ctx context.Context, id string) (Complaint, error)
		// UpdateComplaint saves c only if the stored status still equals expected,
		// otherwise it returns ErrStaleStatus.
		UpdateComplaint(ctx context.Context, c Complaint, expected Status) (Complaint, error)
		// DeleteComplaint deletes the complaint and its responses.
		DeleteComplaint(ctx context.Context, id string) error
		// QueryComplaints applies AND operation on the set QueryFilter fields.
		QueryComplaints(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Complaint, error)
	}

	Notifier interface {
		Notify(ev notify.Event)
	}

	Service struct {
		repo     Repository
		courses  course.Repository
		accounts account.Repository
		notifier Notifier
		logger   core.Logger
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	courses course.Repository,
	accounts account.Repository,
	notifier Notifier,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:     repo,
		courses:  courses,
		accounts: accounts,
		notifier: notifier,
		logger:   logger,
		validate: validate,
	}
}

func requireStudent(actor account.Identity) error {
	switch {
	case actor.IsStudent():
		return nil
	case actor.IsLecturer():
		return errStudentsOnly
	}
	return account.ErrInvalidRole
}

func requireLecturer(actor account.Identity) error {
	switch {
	case actor.IsLecturer():
		return nil
	case actor.IsStudent():
		return errLecturersOnly
	}
	return account.ErrInvalidRole
}

func (svc *Service) get(ctx context.Context, id string) (Complaint, error) {
	c, err := svc.repo.GetComplaint(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Complaint{}, ErrNotFound
		}
		return Complaint{}, errors.Wrap(err, "finding complaint")
	}
	return c, nil
}

func (svc *Service) checkTeaching(ctx context.Context, actor account.Identity, courseID string) error {
	teaching, err := svc.courses.IsTeaching(ctx, actor.ID, courseID)
	if err != nil {
		return errors.Wrap(err, "checking course membership")
	}
	if !teaching {
		return errNotTeaching
	}
	return nil
}

func (svc *Service) withCourse(ctx context.Context, c Complaint) Complaint {
	if crs, err := svc.courses.GetCourse(ctx, c.CourseID); err == nil {
		c.Course = &crs
	}
	return c
}

// Create files a new complaint on behalf of the acting student, who must be enrolled in its course.
func (svc *Service) Create(ctx context.Context, actor account.Identity, nc NewComplaint) (Complaint, error) {
	if err := requireStudent(actor); err != nil {
		return Complaint{}, err
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Complaint{}, err
	}

	crs, err := svc.courses.GetCourse(ctx, nc.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Complaint{}, ErrUnknownCourse
		}
		return Complaint{}, errors.Wrap(err, "finding course")
	}
	enrolled, err := svc.courses.IsEnrolled(ctx, actor.ID, crs.ID)
	if err != nil {
		return Complaint{}, errors.Wrap(err, "checking course membership")
	}
	if !enrolled {
		return Complaint{}, errNotEnrolled
	}

	now := core.NowFunc().UTC()
	c, err := svc.repo.CreateComplaint(ctx, Complaint{
		ID:        uuid.NewString(),
		Title:     nc.Title,
		Details:   nc.Details,
		Type:      nc.Type,
		Status:    StatusSubmitted,
		StudentID: actor.ID,
		CourseID:  crs.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Complaint{}, errors.Wrap(err, "creating complaint")
	}
	c.Course = &crs

	svc.NotifyTransition(ctx, notify.Created, c, actor, "")
	return c, nil
}

// Edit updates the non-blank fields of an unresolved complaint owned by the acting student.
func (svc *Service) Edit(ctx context.Context, actor account.Identity, id string, uc UpdateComplaint) (Complaint, error) {
	if err := requireStudent(actor); err != nil {
		return Complaint{}, err
	}

	c, err := svc.get(ctx, id)
	if err != nil {
		return Complaint{}, err
	}
	if c.StudentID != actor.ID {
		return Complaint{}, errNotOwner
	}
	if c.IsResolved() {
		return Complaint{}, ErrResolved
	}
	if err := uc.Validate(svc.validate); err != nil {
		return Complaint{}, err
	}

	expected := c.Status
	uc.apply(&c)
	c.UpdatedAt = core.NowFunc().UTC()
	return svc.update(ctx, c, expected)
}

// Resolve moves a complaint to RESOLVED. The acting lecturer must currently teach its course.
func (svc *Service) Resolve(ctx context.Context, actor account.Identity, id string) (Complaint, error) {
	return svc.transition(ctx, actor, id, StatusResolved, notify.Resolved)
}

// MarkAsPending moves a SUBMITTED or RESOLVED complaint to PENDING.
// The acting lecturer must currently teach its course.
func (svc *Service) MarkAsPending(ctx context.Context, actor account.Identity, id string) (Complaint, error) {
	return svc.transition(ctx, actor, id, StatusPending, notify.MarkedPending)
}

func (svc *Service) transition(
	ctx context.Context,
	actor account.Identity,
	id string,
	to Status,
	tr notify.Transition,
) (Complaint, error) {
	if err := requireLecturer(actor); err != nil {
		return Complaint{}, err
	}

	c, err := svc.get(ctx, id)
	if err != nil {
		return Complaint{}, err
	}
	if to == StatusPending && c.Status == StatusPending {
		return Complaint{}, ErrAlreadyPending
	}
	if err := svc.checkTeaching(ctx, actor, c.CourseID); err != nil {
		return Complaint{}, err
	}

	expected := c.Status
	c.Status = to
	c.UpdatedAt = core.NowFunc().UTC()
	c, err = svc.update(ctx, c, expected)
	if err != nil {
		return Complaint{}, err
	}
	c = svc.withCourse(ctx, c)

	svc.NotifyTransition(ctx, tr, c, actor, "")
	return c, nil
}

func (svc *Service) update(ctx context.Context, c Complaint, expected Status) (Complaint, error) {
	updated, err := svc.repo.UpdateComplaint(ctx, c, expected)
	if err != nil {
		switch {
		case core.IsConflict(err):
			return Complaint{}, ErrStaleStatus
		case core.IsNotFound(err):
			return Complaint{}, ErrNotFound
		}
		return Complaint{}, errors.Wrap(err, "updating complaint")
	}
	return updated, nil
}

// Delete removes a complaint owned by the acting student, along with its responses.
func (svc *Service) Delete(ctx context.Context, actor account.Identity, id string) error {
	if err := requireStudent(actor); err != nil {
		return err
	}
	if _, err := svc.accounts.GetStudentByID(ctx, actor.ID); err != nil {
		if core.IsNotFound(err) {
			return account.ErrNotFound
		}
		return errors.Wrap(err, "finding student")
	}

	c, err := svc.get(ctx, id)
	if err != nil {
		return err
	}
	if c.StudentID != actor.ID {
		return errNotOwner
	}

	if err := svc.repo.DeleteComplaint(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting complaint")
	}
	return nil
}

// Get returns a complaint visible to the actor: its owner or a lecturer teaching its course.
// Complaints the actor cannot see are reported as not found.
func (svc *Service) Get(ctx context.Context, actor account.Identity, id string) (Complaint, error) {
	c, err := svc.get(ctx, id)
	if err != nil {
		return Complaint{}, err
	}

	switch actor.Role {
	case account.RoleStudent:
		if c.StudentID != actor.ID {
			return Complaint{}, ErrNotFound
		}
	case account.RoleLecturer:
		if err := svc.checkTeaching(ctx, actor, c.CourseID); err != nil {
			if core.IsPermissionError(err) {
				return Complaint{}, ErrNotFound
			}
			return Complaint{}, err
		}
	default:
		return Complaint{}, account.ErrInvalidRole
	}
	return svc.withCourse(ctx, c), nil
}

// Query lists the complaints visible to the actor that match filter.
func (svc *Service) Query(
	ctx context.Context,
	actor account.Identity,
	filter QueryFilter,
	ordering ...core.DBOrdering,
) ([]Complaint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	filter.StudentID, filter.LecturerID = "", ""
	switch actor.Role {
	case account.RoleStudent:
		filter.StudentID = actor.ID
	case account.RoleLecturer:
		filter.LecturerID = actor.ID
	default:
		return nil, account.ErrInvalidRole
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	complaints, err := svc.repo.QueryComplaints(ctx, filter, ordering...)
	if err != nil {
		return nil, errors.Wrap(err, "querying complaints")
	}
	return complaints, nil
}

// NotifyTransition hands the event for c to the notifier.
// Failing to gather the event data is logged and otherwise ignored.
func (svc *Service) NotifyTransition(
	ctx context.Context,
	tr notify.Transition,
	c Complaint,
	actor account.Identity,
	comment string,
) {
	ev, err := svc.buildEvent(ctx, tr, c, actor, comment)
	if err != nil {
		svc.logger.Error("complaint: building notification event", err, actor, map[string]interface{}{
			"transition":   tr,
			"complaint_id": c.ID,
		})
		return
	}
	svc.notifier.Notify(ev)
}

func (svc *Service) buildEvent(
	ctx context.Context,
	tr notify.Transition,
	c Complaint,
	actor account.Identity,
	comment string,
) (notify.Event, error) {
	var crs course.Course
	if c.Course != nil {
		crs = *c.Course
	} else {
		var err error
		if crs, err = svc.courses.GetCourse(ctx, c.CourseID); err != nil {
			return notify.Event{}, errors.Wrap(err, "finding course")
		}
	}

	lecturers, err := svc.courses.LecturersTeaching(ctx, c.CourseID)
	if err != nil {
		return notify.Event{}, errors.Wrap(err, "listing course lecturers")
	}
	std, err := svc.accounts.GetStudentByID(ctx, c.StudentID)
	if err != nil {
		return notify.Event{}, errors.Wrap(err, "finding complaint owner")
	}

	var actorName string
	switch actor.Role {
	case account.RoleStudent:
		if actor.ID == std.ID {
			actorName = std.Name
		} else if s, err := svc.accounts.GetStudentByID(ctx, actor.ID); err == nil {
			actorName = s.Name
		}
	case account.RoleLecturer:
		for _, lec := range lecturers {
			if lec.ID == actor.ID {
				actorName = lec.Name
				break
			}
		}
		if actorName == "" {
			if l, err := svc.accounts.GetLecturerByID(ctx, actor.ID); err == nil {
				actorName = l.Name
			}
		}
	}

	return notify.Event{
		Transition: tr,
		Complaint:  notify.Complaint{ID: c.ID, Title: c.Title, Type: c.Type},
		Course:     crs,
		Student:    std.Member(),
		Lecturers:  lecturers,
		Actor:      actor,
		ActorName:  actorName,
		Comment:    comment,
	}, nil
}
