package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/complaint"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/core/response"
)

type (
	Deps struct {
		AccountSvc   *account.Service
		CourseSvc    *course.Service
		ComplaintSvc *complaint.Service
		ResponseSvc  *response.Service
	}

	Options struct {
		DisableReqLogs bool
	}

	Server struct {
		conf       *core.Config
		logger     core.Logger
		translator ut.Translator
		deps       *Deps
		opts       Options
		app        *echo.Echo
		errors     chan error
		shutdown   chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(
	conf *core.Config,
	logger core.Logger,
	translator ut.Translator,
	deps *Deps,
	opts ...Options,
) *Server {
	s := &Server{
		conf:       conf,
		logger:     logger,
		translator: translator,
		deps:       deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	if len(opts) > 0 {
		s.opts = opts[0]
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	auth := authMiddleware(s.conf)

	registerAuthAPI(v1, auth, s.conf, s.deps.AccountSvc)
	registerAccountAPI(v1, auth, s.deps.AccountSvc)
	registerCourseAPI(v1, auth, s.deps.CourseSvc)
	registerComplaintAPI(v1, auth, s.deps.ComplaintSvc, s.deps.ResponseSvc)
}

// Start listens for requests; errors are reported on Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	if err := s.app.Start(s.conf.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Response{Message: "Welcome to " + s.conf.AppName + " API!"})
}
