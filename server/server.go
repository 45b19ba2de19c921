package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inboxrelay/inboxrelay/api"
	"github.com/inboxrelay/inboxrelay/config"
	"github.com/inboxrelay/inboxrelay/interfaces"
	"github.com/inboxrelay/inboxrelay/internal/cron"
	"github.com/inboxrelay/inboxrelay/internal/logger"
	"github.com/inboxrelay/inboxrelay/internal/state"
	"github.com/inboxrelay/inboxrelay/services/imapclient"
	"github.com/inboxrelay/inboxrelay/services/notifier"
	"github.com/inboxrelay/inboxrelay/services/poller"
)

type Server struct {
	config     *config.Config
	log        logger.Logger
	httpServer *http.Server
	router     *gin.Engine
	worker     *cron.CronManager
	poller     *poller.Service
}

// NewPoller wires the poll pipeline: mailbox dialer, Telegram notifier
// and cursor store. Shared by the server and the one-shot command.
func NewPoller(cfg *config.Config, log logger.Logger) *poller.Service {
	dial := func() (interfaces.MailSource, error) {
		return imapclient.Dial(cfg.IMAP, log)
	}
	tg := notifier.NewTelegramNotifier(cfg.Telegram, log)
	cursor := state.NewCursorStore(cfg.Poller.StateFile, log)

	return poller.NewService(cfg, log, dial, tg, cursor)
}

func NewServer(cfg *config.Config) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	pollerService := NewPoller(cfg, appLogger)
	worker := cron.NewCronManager(cfg, appLogger, pollerService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	api.RegisterRoutes(router, worker, pollerService)

	return &Server{
		config: cfg,
		log:    appLogger,
		router: router,
		worker: worker,
		poller: pollerService,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

func (s *Server) Run() error {
	s.worker.Start()

	go func() {
		s.log.Infof("starting HTTP server on :%s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()

	s.log.Info("relay is now running, press Ctrl+C to exit")
	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	// wait for an in-flight cycle, but never hang the shutdown
	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		s.worker.Stop()
	}()

	select {
	case <-stopDone:
		s.log.Info("worker stopped gracefully")
	case <-time.After(10 * time.Second):
		s.log.Warn("worker stop timed out, forcing exit")
	}

	return nil
}
