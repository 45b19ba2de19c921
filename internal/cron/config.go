package cron

import "github.com/caarlos0/env/v6"

type Config struct {
	// Heartbeat log line, every 5 minutes. Empty disables it.
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 */5 * * * *"`
}

func parseCronConfig(cfg *Config) error {
	return env.Parse(cfg)
}
