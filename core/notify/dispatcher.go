package notify

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/malalamiko/core"
)

// Dispatcher delivers event notifications in the background.
// Delivery failures are logged and never reach the caller.
type Dispatcher struct {
	cfg    *core.Config
	sender core.EmailService
	logger core.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(cfg *core.Config, sender core.EmailService, logger core.Logger) *Dispatcher {
	return &Dispatcher{cfg: cfg, sender: sender, logger: logger}
}

// Notify composes the messages for ev and sends them without blocking.
func (d *Dispatcher) Notify(ev Event) {
	msgs := Compose(ev, d.cfg.FrontendBaseURL)
	if len(msgs) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("notify: dispatch panicked", r, map[string]interface{}{"transition": ev.Transition})
			}
		}()

		var g errgroup.Group
		if n := d.cfg.Notification.MaxConcurrency; n > 0 {
			g.SetLimit(n)
		}
		for _, msg := range msgs {
			msg := msg
			g.Go(func() error { return d.send(msg) })
		}
		if err := g.Wait(); err != nil {
			d.logger.Warn("notify: some notifications were not delivered", err, map[string]interface{}{
				"transition":   ev.Transition,
				"complaint_id": ev.Complaint.ID,
			})
		}
	}()
}

func (d *Dispatcher) send(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		d.logger.Error("notify: rendering message", err)
		return err
	}

	ctx := context.Background()
	if timeout := d.cfg.Notification.SendTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		err = errors.Wrapf(err, "sending %q to %s", msg.Subject, msg.To[0].Address)
		d.logger.Error("notify: sending message", err)
		return err
	}
	return nil
}

// Wait blocks until every in-flight dispatch is done.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
