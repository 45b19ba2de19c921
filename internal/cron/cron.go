package cron

import (
	"context"
	"fmt"
	"sync"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/inboxrelay/inboxrelay/config"
	"github.com/inboxrelay/inboxrelay/internal/logger"
	"github.com/inboxrelay/inboxrelay/services/poller"
)

// CronManager schedules the poll worker. Cycles never overlap: a tick
// that fires while the previous cycle is still running is skipped.
type CronManager struct {
	cfg    *config.Config
	log    logger.Logger
	cron   *cronv3.Cron
	poller *poller.Service
	stopCh chan struct{}
	jobIDs map[string]cronv3.EntryID

	mu      sync.Mutex
	started bool
}

func NewCronManager(cfg *config.Config, log logger.Logger, p *poller.Service) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		poller: p,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
	}
}

// Start launches the scheduler and triggers an immediate first cycle.
// Only the first call does anything; repeat calls return false.
func (cm *CronManager) Start() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.started {
		cm.log.Warn("cron manager already started, ignoring")
		return false
	}

	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
	cm.started = true

	// first cycle right away, the schedule covers the rest
	go cm.runPollCycle()

	cm.log.Infof("cron manager started, polling every %ds", cm.cfg.Poller.PollSeconds)
	return true
}

// Running reports whether the worker has been started and not stopped.
func (cm *CronManager) Running() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.started && cm.cron != nil
}

// Stop halts the scheduler and waits for a running cycle to finish.
// Safe to call more than once; only the first call does anything.
func (cm *CronManager) Stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.started {
		return
	}
	cm.started = false

	if cm.cron != nil {
		cm.log.Info("stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
		cm.cron = nil
	}
	close(cm.stopCh)
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	pollSchedule := fmt.Sprintf("@every %ds", cm.cfg.Poller.PollSeconds)
	id, err := c.AddFunc(pollSchedule, cm.runPollCycle)
	if err != nil {
		cm.log.Fatalf("could not add poll cron job: %v", err)
	}
	cm.jobIDs["poll"] = id
	cm.log.Infof("registered poll job with schedule: %s", pollSchedule)

	var cronConfig Config
	if err := parseCronConfig(&cronConfig); err != nil {
		cm.log.Fatalf("failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, cm.heartbeat)
		if err != nil {
			cm.log.Fatalf("could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}
}

func (cm *CronManager) runPollCycle() {
	cm.poller.RunCycle(context.Background())
}

func (cm *CronManager) heartbeat() {
	report := cm.poller.LastReport()
	if report == nil {
		cm.log.Info("heartbeat: no cycle completed yet")
		return
	}
	cm.log.Infof("heartbeat: last cycle %s at %s, cursor=%d",
		report.CycleID, report.StartedAt.Format("2006-01-02T15:04:05Z"), report.Cursor)
}
