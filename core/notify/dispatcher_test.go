package notify_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/core/notify"
	emailsvc "github.com/trezcool/malalamiko/services/email"
	"github.com/trezcool/malalamiko/testutil"
)

func event(lecturers int) notify.Event {
	ev := notify.Event{
		Transition: notify.Created,
		Complaint:  notify.Complaint{ID: "c1", Title: "Noisy lab", Type: "facility"},
		Course:     course.Course{ID: "crs1", Name: "Physics"},
		Student:    course.Member{ID: "s1", Name: "Amani", Email: "amani@test.cd"},
		Actor:      account.Identity{ID: "s1", Role: account.RoleStudent},
		ActorName:  "Amani",
	}
	for i := 0; i < lecturers; i++ {
		id := string(rune('a' + i))
		ev.Lecturers = append(ev.Lecturers, course.Member{ID: id, Name: "Lecturer " + id, Email: id + "@test.cd"})
	}
	return ev
}

// blockingSender holds every delivery until ctx is done or release is closed.
type blockingSender struct {
	release  chan struct{}
	inFlight int32
	maxSeen  int32
	sent     int32
}

func (s *blockingSender) Send(ctx context.Context, _ *core.EmailMessage) error {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		m := atomic.LoadInt32(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxSeen, m, n) {
			break
		}
	}
	select {
	case <-s.release:
		atomic.AddInt32(&s.sent, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatcher_Notify(t *testing.T) {
	conf := core.NewTestConfig()
	outbox := emailsvc.NewSilentConsoleService(conf)
	d := notify.NewDispatcher(conf, outbox, testutil.NewLogger(conf))

	d.Notify(event(3))
	d.Wait()

	sent := outbox.Outbox()
	require.Len(t, sent, 3)
	for _, msg := range sent {
		assert.Equal(t, "New complaint on Physics", msg.Subject)
		assert.Contains(t, msg.TextContent, "Noisy lab")
	}
}

func TestDispatcher_failingSender(t *testing.T) {
	conf := core.NewTestConfig()
	sender := &testutil.FailingEmailService{}
	d := notify.NewDispatcher(conf, sender, testutil.NewLogger(conf))

	d.Notify(event(2))
	d.Wait()
	assert.Equal(t, 2, sender.Calls())
}

func TestDispatcher_doesNotBlock(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Notification.SendTimeout = time.Minute
	sender := &blockingSender{release: make(chan struct{})}
	d := notify.NewDispatcher(conf, sender, testutil.NewLogger(conf))

	done := make(chan struct{})
	go func() {
		d.Notify(event(2))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify() blocked on delivery")
	}

	close(sender.release)
	d.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&sender.sent))
}

func TestDispatcher_concurrencyLimit(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Notification.MaxConcurrency = 2
	conf.Notification.SendTimeout = time.Minute
	sender := &blockingSender{release: make(chan struct{})}
	d := notify.NewDispatcher(conf, sender, testutil.NewLogger(conf))

	d.Notify(event(6))

	time.AfterFunc(100*time.Millisecond, func() { close(sender.release) })
	d.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&sender.maxSeen), int32(2))
	assert.Equal(t, int32(6), atomic.LoadInt32(&sender.sent))
}

func TestDispatcher_sendTimeout(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Notification.SendTimeout = 20 * time.Millisecond
	sender := &blockingSender{release: make(chan struct{})} // never released
	d := notify.NewDispatcher(conf, sender, testutil.NewLogger(conf))

	start := time.Now()
	d.Notify(event(1))
	d.Wait()

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, atomic.LoadInt32(&sender.sent))
}

func TestDispatcher_noRecipients(t *testing.T) {
	conf := core.NewTestConfig()
	sender := &testutil.FailingEmailService{}
	d := notify.NewDispatcher(conf, sender, testutil.NewLogger(conf))

	d.Notify(event(0))
	d.Wait()
	assert.Zero(t, sender.Calls())
}
