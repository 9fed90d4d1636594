// Package testutil holds fixtures shared by the service, HTTP API and admin CLI tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/core/notify"
	"github.com/trezcool/malalamiko/core/response"
	emailsvc "github.com/trezcool/malalamiko/services/email"
	logsvc "github.com/trezcool/malalamiko/services/logger"
	inmemdb "github.com/trezcool/malalamiko/storage/database/inmem"
)

// DefaultPassword satisfies the password policy for every fixture account.
const DefaultPassword = "Zx9!kq7Lw2"

// NewValidator returns a validator with every app validator and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate, translator
}

// NewLogger returns a logger that neither prints nor reports to rollbar.
func NewLogger(conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// FailingEmailService fails every delivery and counts the attempts.
type FailingEmailService struct {
	calls int32
}

var _ core.EmailService = (*FailingEmailService)(nil)

func (svc *FailingEmailService) Send(_ context.Context, _ *core.EmailMessage) error {
	atomic.AddInt32(&svc.calls, 1)
	return errors.New("smtp: connection refused")
}

func (svc *FailingEmailService) Calls() int { return int(atomic.LoadInt32(&svc.calls)) }

// Env wires the services on top of a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     *logsvc.RollbarLogger

	Courses    course.Repository
	Accounts   account.Repository
	Complaints complaint.Repository
	Responses  response.Repository

	Outbox     *emailsvc.ConsoleService // nil when a custom sender is given
	Dispatcher *notify.Dispatcher

	CourseSvc    *course.Service
	AccountSvc   *account.Service
	ComplaintSvc *complaint.Service
	ResponseSvc  *response.Service
}

// NewEnv builds an Env. The silent console service records the sent messages unless sender is given.
func NewEnv(t *testing.T, sender ...core.EmailService) *Env {
	t.Helper()

	env := &Env{Conf: core.NewTestConfig(), DB: inmemdb.NewDB()}
	env.Validate, env.Translator = NewValidator()
	env.Logger = NewLogger(env.Conf)

	env.Courses = inmemdb.NewCourseRepository(env.DB)
	env.Accounts = inmemdb.NewAccountRepository(env.DB)
	env.Complaints = inmemdb.NewComplaintRepository(env.DB)
	env.Responses = inmemdb.NewResponseRepository(env.DB)

	var mailer core.EmailService
	if len(sender) > 0 {
		mailer = sender[0]
	} else {
		env.Outbox = emailsvc.NewSilentConsoleService(env.Conf)
		mailer = env.Outbox
	}
	env.Dispatcher = notify.NewDispatcher(env.Conf, mailer, env.Logger)

	env.CourseSvc = course.NewService(env.Courses, env.Validate)
	env.AccountSvc = account.NewService(env.Accounts, env.Courses, env.Validate)
	env.ComplaintSvc = complaint.NewService(env.Complaints, env.Courses, env.Accounts, env.Dispatcher, env.Logger, env.Validate)
	env.ResponseSvc = response.NewService(env.Responses, env.Complaints, env.Accounts, env.ComplaintSvc, env.Validate)

	t.Cleanup(env.Dispatcher.Wait)
	return env
}

// Sent waits for the in-flight notifications and returns the recorded messages.
func (env *Env) Sent() []core.EmailMessage {
	env.Dispatcher.Wait()
	if env.Outbox == nil {
		return nil
	}
	return env.Outbox.Outbox()
}

// ResetOutbox drops the recorded messages once the in-flight notifications are done.
func (env *Env) ResetOutbox() {
	env.Dispatcher.Wait()
	if env.Outbox != nil {
		env.Outbox.Reset()
	}
}

func CreateCourse(t *testing.T, repo course.Repository, name string, createdAt ...time.Time) course.Course {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs, err := repo.CreateCourse(context.Background(), course.Course{ID: uuid.NewString(), Name: name, CreatedAt: tstamp})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateStudent(t *testing.T, repo account.Repository, name, email string, courseIDs ...string) account.Student {
	t.Helper()

	now := time.Now().UTC()
	prefix := now.Format("2006") + "-"
	last, err := repo.LastMatric(context.Background(), prefix)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	var seq int
	if last != "" {
		seq, _ = strconv.Atoi(strings.TrimPrefix(last, prefix))
	}

	std := account.Student{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Matric:    fmt.Sprintf("%s%06d", prefix, seq+1),
		CourseIDs: courseIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := std.SetPassword(DefaultPassword); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	std, err = repo.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func CreateLecturer(t *testing.T, repo account.Repository, name, email string, courseIDs ...string) account.Lecturer {
	t.Helper()

	now := time.Now().UTC()
	lec := account.Lecturer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CourseIDs: courseIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := lec.SetPassword(DefaultPassword); err != nil {
		t.Fatalf("CreateLecturer() failed: %v", err)
	}
	lec, err := repo.CreateLecturer(context.Background(), lec)
	if err != nil {
		t.Fatalf("CreateLecturer() failed: %v", err)
	}
	return lec
}

func CreateComplaint(t *testing.T, repo complaint.Repository, studentID, courseID, title string, status ...complaint.Status) complaint.Complaint {
	t.Helper()

	st := complaint.StatusSubmitted
	if len(status) > 0 {
		st = status[0]
	}
	now := time.Now().UTC()
	c, err := repo.CreateComplaint(context.Background(), complaint.Complaint{
		ID:        uuid.NewString(),
		Title:     title,
		Details:   "details of " + title,
		Type:      "academic",
		Status:    st,
		StudentID: studentID,
		CourseID:  courseID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateComplaint() failed: %v", err)
	}
	return c
}
