package logsvc

import (
	"context"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
)

// RollbarLogger reports to its own rollbar.Client and echoes everything to a std logger.
// The acting principal travels in a per-item person context, so it is safe for concurrent use.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, conf.WorkDir)
	client.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, client: client}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled)
}

// Close flushes the pending items.
func (l *RollbarLogger) Close() error {
	return l.client.Close()
}

// item is what is reported for one log call.
type item struct {
	ctx    context.Context // carries the person, if any
	err    error           // first error arg
	extras map[string]interface{}
}

// newItem maps args to an item: the first error is reported as such, maps are merged into
// the extras along with msg and any other arg, and the first account.Identity is the person.
func newItem(msg string, args []interface{}) item {
	it := item{ctx: context.Background(), extras: map[string]interface{}{"message": msg}}

	var personSet bool
	for _, arg := range args {
		switch v := arg.(type) {
		case account.Identity:
			if !personSet && v.ID != "" {
				it.ctx = rollbar.NewPersonContext(it.ctx, &rollbar.Person{Id: v.ID, Username: v.Role.String()})
				personSet = true
			}
		case error:
			if it.err == nil {
				it.err = v
			} else {
				it.extras["error"] = v.Error()
			}
		case map[string]interface{}:
			for k, val := range v {
				it.extras[k] = val
			}
		default:
			it.extras["detail"] = v
		}
	}
	return it
}

func (l *RollbarLogger) log(level, msg string, args []interface{}) {
	it := newItem(msg, args)
	if it.err != nil {
		l.client.ErrorWithExtrasAndContext(it.ctx, level, it.err, it.extras)
	} else {
		l.client.MessageWithExtrasAndContext(it.ctx, level, msg, it.extras)
	}

	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("\t%+v", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	l.client.Wait()
	l.std.Fatal(msg)
}
