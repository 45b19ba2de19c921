package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	relayerrors "github.com/inboxrelay/inboxrelay/internal/errors"
	"github.com/inboxrelay/inboxrelay/internal/logger"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig: &AppConfig{},
		IMAP:      &IMAPConfig{},
		Telegram:  &TelegramConfig{},
		Poller:    &PollerConfig{},
		Logger:    &logger.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	// env.Parse fails when a required credential is absent; nothing else
	// in the schema is mandatory
	err = env.Parse(config)
	if err != nil {
		return nil, errors.Wrap(relayerrors.ErrMissingCredentials, err.Error())
	}

	return config, nil
}
