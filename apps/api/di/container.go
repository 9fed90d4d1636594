package di

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/malalamiko/apps/api/echo"
	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/core/notify"
	"github.com/trezcool/malalamiko/core/response"
	emailsvc "github.com/trezcool/malalamiko/services/email"
	logsvc "github.com/trezcool/malalamiko/services/logger"
	"github.com/trezcool/malalamiko/storage/database"
	sqlxrepos "github.com/trezcool/malalamiko/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	Translator   ut.Translator
	AccountSvc   *account.Service
	CourseSvc    *course.Service
	ComplaintSvc *complaint.Service
	ResponseSvc  *response.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, *sql.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db.DB, db
}

// newEmailService builds the notification sender once, at boot.
func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Logger, p.Translator, &echoapi.Deps{
		AccountSvc:   p.AccountSvc,
		CourseSvc:    p.CourseSvc,
		ComplaintSvc: p.ComplaintSvc,
		ResponseSvc:  p.ResponseSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewCourseRepository, dig.As(new(course.Repository))))
	must(c.Provide(sqlxrepos.NewAccountRepository, dig.As(new(account.Repository))))
	must(c.Provide(sqlxrepos.NewComplaintRepository, dig.As(new(complaint.Repository))))
	must(c.Provide(sqlxrepos.NewResponseRepository, dig.As(new(response.Repository))))

	// services
	must(c.Provide(notify.NewDispatcher))
	must(c.Provide(func(d *notify.Dispatcher) complaint.Notifier { return d }))
	must(c.Provide(course.NewService))
	must(c.Provide(account.NewService))
	must(c.Provide(complaint.NewService))
	must(c.Provide(func(svc *complaint.Service) response.Notifier { return svc }))
	must(c.Provide(response.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
