package complaint_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/core/response"
	"github.com/trezcool/malalamiko/testutil"
)

type fixture struct {
	env      *testutil.Env
	cs101    course.Course
	math     course.Course
	studentA account.Student
	studentB account.Student
	lecturer account.Lecturer // teaches CS101
	outsider account.Lecturer // teaches Math
}

func setup(t *testing.T, sender ...core.EmailService) fixture {
	env := testutil.NewEnv(t, sender...)
	f := fixture{env: env}
	f.cs101 = testutil.CreateCourse(t, env.Courses, "CS101")
	f.math = testutil.CreateCourse(t, env.Courses, "Math")
	f.studentA = testutil.CreateStudent(t, env.Accounts, "Student A", "a@test.cd", f.cs101.ID, f.math.ID)
	f.studentB = testutil.CreateStudent(t, env.Accounts, "Student B", "b@test.cd", f.cs101.ID)
	f.lecturer = testutil.CreateLecturer(t, env.Accounts, "Lecturer L", "l@test.cd", f.cs101.ID)
	f.outsider = testutil.CreateLecturer(t, env.Accounts, "Lecturer M", "m@test.cd", f.math.ID)
	return f
}

func (f fixture) complaint(t *testing.T, status ...complaint.Status) complaint.Complaint {
	return testutil.CreateComplaint(t, f.env.Complaints, f.studentA.ID, f.cs101.ID, "Projector broken", status...)
}

func (f fixture) status(t *testing.T, id string) complaint.Status {
	c, err := f.env.Complaints.GetComplaint(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

func recipients(msgs []core.EmailMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		for _, to := range m.To {
			out = append(out, to.Address)
		}
	}
	return out
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	nc := complaint.NewComplaint{Title: " Projector broken ", CourseID: f.cs101.ID, Type: "facility", Details: "It flickers."}

	t.Run("lecturer", func(t *testing.T) {
		_, err := f.env.ComplaintSvc.Create(ctx, f.lecturer.Identity(), nc)
		assert.True(t, core.IsPermissionError(err))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.env.ComplaintSvc.Create(ctx, f.studentA.Identity(), complaint.NewComplaint{Title: "x", CourseID: f.cs101.ID})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("unknown course", func(t *testing.T) {
		bad := nc
		bad.CourseID = "CS999"
		_, err := f.env.ComplaintSvc.Create(ctx, f.studentA.Identity(), bad)
		assert.Equal(t, complaint.ErrUnknownCourse, err)
	})

	t.Run("not enrolled", func(t *testing.T) {
		onMath := nc
		onMath.CourseID = f.math.ID
		_, err := f.env.ComplaintSvc.Create(ctx, f.studentB.Identity(), onMath)
		assert.True(t, core.IsPermissionError(err), "unexpected error: %v", err)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := f.env.ComplaintSvc.Create(ctx, account.Identity{ID: f.studentA.ID, Role: "admin"}, nc)
		assert.Equal(t, account.ErrInvalidRole, err)
	})

	assert.Empty(t, f.env.Sent())
}

func TestService_Edit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		status  complaint.Status
		actor   func() account.Identity
		in      complaint.UpdateComplaint
		wantErr func(error) bool
	}{
		{name: "lecturer", status: complaint.StatusSubmitted, actor: f.lecturer.Identity, in: complaint.UpdateComplaint{Title: "x"}, wantErr: core.IsPermissionError},
		{name: "other student", status: complaint.StatusSubmitted, actor: f.studentB.Identity, in: complaint.UpdateComplaint{Title: "x"}, wantErr: core.IsPermissionError},
		{name: "nothing to update", status: complaint.StatusSubmitted, actor: f.studentA.Identity, in: complaint.UpdateComplaint{Title: "  "}, wantErr: core.IsValidationError},
		{name: "resolved", status: complaint.StatusResolved, actor: f.studentA.Identity, in: complaint.UpdateComplaint{Title: "x"}, wantErr: core.IsConflict},
		{name: "resolved, other student", status: complaint.StatusResolved, actor: f.studentB.Identity, in: complaint.UpdateComplaint{Title: "x"}, wantErr: core.IsPermissionError},
		{name: "nothing to update, other student", status: complaint.StatusSubmitted, actor: f.studentB.Identity, in: complaint.UpdateComplaint{}, wantErr: core.IsPermissionError},
		{name: "nothing to update, resolved", status: complaint.StatusResolved, actor: f.studentA.Identity, in: complaint.UpdateComplaint{}, wantErr: core.IsConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.complaint(t, tt.status)
			_, err := f.env.ComplaintSvc.Edit(ctx, tt.actor(), c.ID, tt.in)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)

			got, err := f.env.Complaints.GetComplaint(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, c, got, "no state change")
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := f.env.ComplaintSvc.Edit(ctx, f.studentA.Identity(), "nope", complaint.UpdateComplaint{Title: "x"})
		assert.Equal(t, complaint.ErrNotFound, err)
	})

	for _, st := range []complaint.Status{complaint.StatusSubmitted, complaint.StatusPending} {
		t.Run("partial update of "+string(st), func(t *testing.T) {
			c := f.complaint(t, st)
			got, err := f.env.ComplaintSvc.Edit(ctx, f.studentA.Identity(), c.ID, complaint.UpdateComplaint{Details: " Still broken. "})
			require.NoError(t, err)
			assert.Equal(t, c.Title, got.Title)
			assert.Equal(t, c.Type, got.Type)
			assert.Equal(t, "Still broken.", got.Details)
			assert.Equal(t, st, got.Status)
		})
	}

	assert.Empty(t, f.env.Sent(), "edits are not notified")
}

func TestService_transitions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.env.ComplaintSvc

	type op func(ctx context.Context, actor account.Identity, id string) (complaint.Complaint, error)
	tests := []struct {
		name    string
		op      op
		from    complaint.Status
		want    complaint.Status
		wantErr func(error) bool
	}{
		{name: "resolve submitted", op: svc.Resolve, from: complaint.StatusSubmitted, want: complaint.StatusResolved},
		{name: "resolve pending", op: svc.Resolve, from: complaint.StatusPending, want: complaint.StatusResolved},
		{name: "resolve resolved", op: svc.Resolve, from: complaint.StatusResolved, want: complaint.StatusResolved},
		{name: "pending from submitted", op: svc.MarkAsPending, from: complaint.StatusSubmitted, want: complaint.StatusPending},
		{name: "pending from resolved", op: svc.MarkAsPending, from: complaint.StatusResolved, want: complaint.StatusPending},
		{name: "pending from pending", op: svc.MarkAsPending, from: complaint.StatusPending, want: complaint.StatusPending, wantErr: core.IsValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.complaint(t, tt.from)
			got, err := tt.op(ctx, f.lecturer.Identity(), c.ID)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got.Status)
				require.NotNil(t, got.Course)
				assert.Equal(t, f.cs101.Name, got.Course.Name)
			}
			assert.Equal(t, tt.want, f.status(t, c.ID))
			assert.True(t, f.status(t, c.ID).IsValid())
		})
	}

	for name, op := range map[string]op{"resolve": svc.Resolve, "pending": svc.MarkAsPending} {
		t.Run(name+": student", func(t *testing.T) {
			c := f.complaint(t)
			_, err := op(ctx, f.studentA.Identity(), c.ID)
			assert.True(t, core.IsPermissionError(err))
			assert.Equal(t, complaint.StatusSubmitted, f.status(t, c.ID))
		})
		t.Run(name+": not teaching", func(t *testing.T) {
			c := f.complaint(t)
			_, err := op(ctx, f.outsider.Identity(), c.ID)
			assert.True(t, core.IsPermissionError(err))
			assert.Equal(t, complaint.StatusSubmitted, f.status(t, c.ID))
		})
		t.Run(name+": missing", func(t *testing.T) {
			_, err := op(ctx, f.lecturer.Identity(), "nope")
			assert.Equal(t, complaint.ErrNotFound, err)
		})
		t.Run(name+": missing, not teaching", func(t *testing.T) {
			_, err := op(ctx, f.outsider.Identity(), "nope")
			assert.Equal(t, complaint.ErrNotFound, err)
		})
	}

	t.Run("pending from pending, not teaching", func(t *testing.T) {
		c := f.complaint(t, complaint.StatusPending)
		_, err := svc.MarkAsPending(ctx, f.outsider.Identity(), c.ID)
		assert.Equal(t, complaint.ErrAlreadyPending, err)
	})
}

func TestService_liveMembership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.complaint(t)

	_, err := f.env.ComplaintSvc.MarkAsPending(ctx, f.lecturer.Identity(), c.ID)
	require.NoError(t, err)

	f.env.DB.SetLecturerCourses(f.lecturer.ID, f.math.ID)
	_, err = f.env.ComplaintSvc.Resolve(ctx, f.lecturer.Identity(), c.ID)
	assert.True(t, core.IsPermissionError(err))
	assert.Equal(t, complaint.StatusPending, f.status(t, c.ID))

	f.env.DB.SetLecturerCourses(f.lecturer.ID, f.cs101.ID)
	_, err = f.env.ComplaintSvc.Resolve(ctx, f.lecturer.Identity(), c.ID)
	assert.NoError(t, err)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c := f.complaint(t)
	_, err := f.env.Responses.CreateResponse(ctx, response.Response{ID: "r1", ComplaintID: c.ID, Comment: "hi", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	err = f.env.ComplaintSvc.Delete(ctx, f.lecturer.Identity(), c.ID)
	assert.True(t, core.IsPermissionError(err))

	err = f.env.ComplaintSvc.Delete(ctx, f.studentB.Identity(), c.ID)
	assert.True(t, core.IsPermissionError(err))

	err = f.env.ComplaintSvc.Delete(ctx, account.Identity{ID: "ghost", Role: account.RoleStudent}, c.ID)
	assert.Equal(t, account.ErrNotFound, err)

	err = f.env.ComplaintSvc.Delete(ctx, f.studentA.Identity(), "nope")
	assert.Equal(t, complaint.ErrNotFound, err)

	require.NoError(t, f.env.ComplaintSvc.Delete(ctx, f.studentA.Identity(), c.ID))
	_, err = f.env.Complaints.GetComplaint(ctx, c.ID)
	assert.Equal(t, complaint.ErrNotFound, err)

	resps, err := f.env.Responses.ListResponses(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, resps, "responses are deleted with their complaint")
}

func TestService_Get(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.complaint(t)

	for name, actor := range map[string]account.Identity{"owner": f.studentA.Identity(), "teaching lecturer": f.lecturer.Identity()} {
		t.Run(name, func(t *testing.T) {
			got, err := f.env.ComplaintSvc.Get(ctx, actor, c.ID)
			require.NoError(t, err)
			assert.Equal(t, c.ID, got.ID)
			require.NotNil(t, got.Course)
			assert.Equal(t, f.cs101, *got.Course)
		})
	}
	for name, actor := range map[string]account.Identity{"other student": f.studentB.Identity(), "other lecturer": f.outsider.Identity()} {
		t.Run(name, func(t *testing.T) {
			_, err := f.env.ComplaintSvc.Get(ctx, actor, c.ID)
			assert.Equal(t, complaint.ErrNotFound, err)
		})
	}
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c1 := f.complaint(t)
	c2 := f.complaint(t, complaint.StatusResolved)
	c3 := testutil.CreateComplaint(t, f.env.Complaints, f.studentA.ID, f.math.ID, "Exam clash")
	c4 := testutil.CreateComplaint(t, f.env.Complaints, f.studentB.ID, f.cs101.ID, "Late marks")

	ids := func(cs []complaint.Complaint) []string {
		out := make([]string, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		actor    account.Identity
		filter   complaint.QueryFilter
		ordering []core.DBOrdering
		want     []string
		wantErr  bool
	}{
		{name: "student sees own", actor: f.studentA.Identity(), want: []string{c1.ID, c2.ID, c3.ID}},
		{name: "student filter ignored", actor: f.studentB.Identity(), filter: complaint.QueryFilter{StudentID: f.studentA.ID}, want: []string{c4.ID}},
		{name: "lecturer sees taught courses", actor: f.lecturer.Identity(), want: []string{c1.ID, c2.ID, c4.ID}},
		{name: "lecturer by status", actor: f.lecturer.Identity(), filter: complaint.QueryFilter{Status: complaint.StatusResolved}, want: []string{c2.ID}},
		{name: "by course", actor: f.studentA.Identity(), filter: complaint.QueryFilter{CourseID: f.math.ID}, want: []string{c3.ID}},
		{
			name: "ordered by title", actor: f.lecturer.Identity(),
			ordering: []core.DBOrdering{{Field: "title", Ascending: true}},
			want:     []string{c4.ID, c1.ID, c2.ID},
		},
		{name: "invalid status", actor: f.lecturer.Identity(), filter: complaint.QueryFilter{Status: "OPEN"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.env.ComplaintSvc.Query(ctx, tt.actor, tt.filter, tt.ordering...)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			if len(tt.ordering) > 0 {
				// c1 and c2 share a title, ties fall back to the id
				assert.Equal(t, tt.want[0], ids(got)[0])
				assert.ElementsMatch(t, tt.want, ids(got))
			} else {
				assert.ElementsMatch(t, tt.want, ids(got))
			}
		})
	}
}

func TestService_notifications(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	colleague := testutil.CreateLecturer(t, f.env.Accounts, "Lecturer K", "k@test.cd", f.cs101.ID)

	c, err := f.env.ComplaintSvc.Create(ctx, f.studentA.Identity(), complaint.NewComplaint{
		Title: "Projector broken", CourseID: f.cs101.ID, Type: "facility", Details: "...",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.lecturer.Email, colleague.Email}, recipients(f.env.Sent()))

	f.env.ResetOutbox()
	_, err = f.env.ComplaintSvc.MarkAsPending(ctx, f.lecturer.Identity(), c.ID)
	require.NoError(t, err)
	sent := f.env.Sent()
	assert.ElementsMatch(t, []string{colleague.Email, f.studentA.Email}, recipients(sent), "the actor is not notified")
	for _, msg := range sent {
		assert.Contains(t, msg.TextContent, f.lecturer.Name)
	}

	f.env.ResetOutbox()
	_, err = f.env.ComplaintSvc.Resolve(ctx, colleague.Identity(), c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.lecturer.Email, f.studentA.Email}, recipients(f.env.Sent()))
}

func TestService_failingSender(t *testing.T) {
	sender := &testutil.FailingEmailService{}
	f := setup(t, sender)
	ctx := context.Background()
	svc := f.env.ComplaintSvc

	c, err := svc.Create(ctx, f.studentA.Identity(), complaint.NewComplaint{
		Title: "Projector broken", CourseID: f.cs101.ID, Type: "facility", Details: "...",
	})
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusSubmitted, c.Status)

	c, err = svc.MarkAsPending(ctx, f.lecturer.Identity(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusPending, c.Status)

	c, err = svc.Resolve(ctx, f.lecturer.Identity(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolved, c.Status)
	assert.Equal(t, complaint.StatusResolved, f.status(t, c.ID))

	f.env.Dispatcher.Wait()
	assert.Equal(t, 3, sender.Calls(), "one attempt per recipient")
}

// racingRepo changes the stored status right after it is read, as a concurrent request would.
type racingRepo struct {
	complaint.Repository
}

func (repo racingRepo) GetComplaint(ctx context.Context, id string) (complaint.Complaint, error) {
	c, err := repo.Repository.GetComplaint(ctx, id)
	if err != nil {
		return c, err
	}
	changed := c
	changed.Status = complaint.StatusPending
	if c.Status == complaint.StatusPending {
		changed.Status = complaint.StatusSubmitted
	}
	if _, err := repo.Repository.UpdateComplaint(ctx, changed, c.Status); err != nil {
		return complaint.Complaint{}, err
	}
	return c, nil
}

func TestService_staleStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.complaint(t)

	repo := racingRepo{Repository: f.env.Complaints}
	svc := complaint.NewService(repo, f.env.Courses, f.env.Accounts, f.env.Dispatcher, f.env.Logger, f.env.Validate)

	_, err := svc.Resolve(ctx, f.lecturer.Identity(), c.ID)
	assert.Equal(t, complaint.ErrStaleStatus, err)
	assert.True(t, core.IsConflict(err))
	assert.Equal(t, complaint.StatusPending, f.status(t, c.ID), "the concurrent write is kept")

	_, err = svc.Edit(ctx, f.studentA.Identity(), c.ID, complaint.UpdateComplaint{Title: "new"})
	assert.Equal(t, complaint.ErrStaleStatus, err)
	got, err := f.env.Complaints.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)
}

func TestService_concurrentMarkAsPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.complaint(t)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.ComplaintSvc.MarkAsPending(ctx, f.lecturer.Identity(), c.ID)
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case err == complaint.ErrAlreadyPending, err == complaint.ErrStaleStatus:
			default:
				t.Errorf("MarkAsPending() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, complaint.StatusPending, f.status(t, c.ID))
}

func TestScenarios(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Student A files C on CS101
	c, err := f.env.ComplaintSvc.Create(ctx, f.studentA.Identity(), complaint.NewComplaint{
		Title: "Projector broken", CourseID: f.cs101.ID, Type: "facility", Details: "The projector in room 4 is dead.",
	})
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusSubmitted, c.Status)
	assert.Equal(t, f.studentA.ID, c.StudentID)
	assert.Equal(t, []string{f.lecturer.Email}, recipients(f.env.Sent()))

	// Lecturer L resolves it
	f.env.ResetOutbox()
	c, err = f.env.ComplaintSvc.Resolve(ctx, f.lecturer.Identity(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolved, c.Status)
	assert.Equal(t, []string{f.studentA.Email}, recipients(f.env.Sent()))

	// Student B cannot edit it
	before, err := f.env.Complaints.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	_, err = f.env.ComplaintSvc.Edit(ctx, f.studentB.Identity(), c.ID, complaint.UpdateComplaint{Title: "x"})
	assert.True(t, core.IsPermissionError(err))
	after, err := f.env.Complaints.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Student A cannot respond anymore
	_, err = f.env.ResponseSvc.Add(ctx, f.studentA.Identity(), c.ID, response.NewResponse{Comment: "thanks"})
	assert.True(t, core.IsConflict(err))
	resps, err := f.env.ResponseSvc.List(ctx, f.studentA.Identity(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, resps)
}
