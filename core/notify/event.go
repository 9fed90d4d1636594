package notify

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/course"
)

// Transition is a complaint event that triggers notifications.
// Its value is the name of the email template used for it.
type Transition string

const (
	Created       Transition = "complaint_created"
	Resolved      Transition = "complaint_resolved"
	MarkedPending Transition = "complaint_pending"
	ResponseAdded Transition = "response_added"
)

var subjects = map[Transition]string{
	Created:       "New complaint on %s",
	Resolved:      "Complaint resolved on %s",
	MarkedPending: "Complaint marked as pending on %s",
	ResponseAdded: "New response on your complaint on %s",
}

// Complaint summarizes the complaint an Event is about.
type Complaint struct {
	ID    string
	Title string
	Type  string
}

type Event struct {
	Transition Transition
	Complaint  Complaint
	Course     course.Course
	Student    course.Member   // owner of the complaint
	Lecturers  []course.Member // lecturers currently teaching Course
	Actor      account.Identity
	ActorName  string
	Comment    string // ResponseAdded only
}

// TemplateData is the data available to the email templates, under `.Data`.
type TemplateData struct {
	RecipientName  string
	ComplaintID    string
	ComplaintTitle string
	ComplaintType  string
	CourseName     string
	ActorName      string
	Comment        string
}

type candidate struct {
	role   account.Role
	member course.Member
}

// Recipients returns the addresses to notify for ev.
// The acting principal is never notified and each address appears once.
func Recipients(ev Event) []mail.Address {
	var cands []candidate
	lecturers := func() {
		for _, lec := range ev.Lecturers {
			cands = append(cands, candidate{account.RoleLecturer, lec})
		}
	}
	student := func() {
		cands = append(cands, candidate{account.RoleStudent, ev.Student})
	}

	switch ev.Transition {
	case Created:
		lecturers()
	case Resolved, MarkedPending:
		lecturers()
		student()
	case ResponseAdded:
		student()
		lecturers()
	}

	seen := make(map[string]bool, len(cands))
	addrs := make([]mail.Address, 0, len(cands))
	for _, c := range cands {
		if c.role == ev.Actor.Role && c.member.ID == ev.Actor.ID {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(c.member.Email))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		addrs = append(addrs, mail.Address{Name: c.member.Name, Address: c.member.Email})
	}
	return addrs
}

// Compose builds one unrendered message per recipient of ev.
func Compose(ev Event, frontendBaseURL string) []*core.EmailMessage {
	format, ok := subjects[ev.Transition]
	if !ok {
		return nil
	}
	subject := fmt.Sprintf(format, ev.Course.Name)

	rcpts := Recipients(ev)
	msgs := make([]*core.EmailMessage, 0, len(rcpts))
	for _, rcpt := range rcpts {
		msgs = append(msgs, &core.EmailMessage{
			To:              []mail.Address{rcpt},
			Subject:         subject,
			TemplateName:    string(ev.Transition),
			FrontendBaseURL: frontendBaseURL,
			TemplateData: TemplateData{
				RecipientName:  rcpt.Name,
				ComplaintID:    ev.Complaint.ID,
				ComplaintTitle: ev.Complaint.Title,
				ComplaintType:  ev.Complaint.Type,
				CourseName:     ev.Course.Name,
				ActorName:      ev.ActorName,
				Comment:        ev.Comment,
			},
		})
	}
	return msgs
}
