package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/inboxrelay/inboxrelay/config"
	"github.com/inboxrelay/inboxrelay/internal/logger"
	"github.com/inboxrelay/inboxrelay/server"
)

func main() {
	app := &cli.App{
		Name:  "inboxrelay",
		Usage: "forward transactional emails from an IMAP mailbox to Telegram",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the poll worker and the status HTTP server",
				Action: runServe,
			},
			{
				Name:   "once",
				Usage:  "run a single poll cycle and exit",
				Action: runOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}

	return srv.Run()
}

func runOnce(c *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	report := server.NewPoller(cfg, appLogger).RunCycle(context.Background())
	if report.Error != "" {
		return cli.Exit(fmt.Sprintf("cycle failed: %s", report.Error), 1)
	}

	appLogger.Infof("cycle complete: searched=%d matched=%d notified=%d cursor=%d",
		report.Searched, report.Matched, report.Notified, report.Cursor)
	return nil
}
