package imapclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/inboxrelay/inboxrelay/config"
	relayerrors "github.com/inboxrelay/inboxrelay/internal/errors"
	"github.com/inboxrelay/inboxrelay/internal/logger"
)

const (
	dialTimeout     = 30 * time.Second
	commandTimeout  = 30 * time.Second
	fetchTimeout    = 60 * time.Second
	connectAttempts = 3
)

// Session is one authenticated IMAP session with the configured folder
// selected. It lives for a single poll cycle.
type Session struct {
	client *client.Client
	cfg    *config.IMAPConfig
	log    logger.Logger
}

// Dial connects, authenticates and selects the configured folder,
// retrying transient connection failures with jittered backoff before
// giving up for this cycle.
func Dial(cfg *config.IMAPConfig, log logger.Logger) (*Session, error) {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		session, err := dialOnce(cfg, log)
		if err == nil {
			return session, nil
		}
		lastErr = err
		if attempt < connectAttempts {
			wait := b.Duration()
			log.Warnf("IMAP connect attempt %d failed, retrying in %v: %v", attempt, wait, err)
			time.Sleep(wait)
		}
	}

	return nil, errors.Wrap(relayerrors.ErrConnection, lastErr.Error())
}

func dialOnce(cfg *config.IMAPConfig, log logger.Logger) (*Session, error) {
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialTimeout,
	}

	var c *client.Client
	var err error

	if cfg.TLS {
		tlsConfig := &tls.Config{
			ServerName: cfg.Server,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}

	c.Timeout = commandTimeout

	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	log.Debugf("server capabilities: %v", caps)

	if err := c.Login(cfg.Account, cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login as %s: %w", cfg.Account, err)
	}

	if _, err := c.Select(cfg.Folder, false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to select folder %s: %w", cfg.Folder, err)
	}

	c.Timeout = 0

	log.Infof("connected to %s, folder %s selected", serverAddr, cfg.Folder)

	return &Session{client: c, cfg: cfg, log: log}, nil
}

// Close logs out best-effort. The session is unusable afterwards.
func (s *Session) Close() {
	if s.client == nil {
		return
	}

	s.client.Timeout = 5 * time.Second

	done := make(chan error, 1)
	go func() {
		done <- s.client.Logout()
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Debugf("error during logout: %v", err)
		}
	case <-time.After(5 * time.Second):
		s.log.Debugf("logout timed out")
	}
}
