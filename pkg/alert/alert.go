// Package alert notifies operators when the search backend starts shedding
// queries.
package alert

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/chinchliff/oti/pkg/config"
	"github.com/chinchliff/oti/pkg/utils"
	"github.com/sony/gobreaker"
)

// Alerter defines an interface for sending alerts
type Alerter interface {
	Alert(subject, message string) error
}

// EmailAlerter implements Alerter using SMTP
type EmailAlerter struct {
	cfg  config.AlertConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailAlerter creates a new email alerter
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{
		cfg:  cfg,
		send: smtp.SendMail,
	}
}

// Alert sends an email with the given subject and message
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	to := a.cfg.To
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", strings.Join(to, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	if err := a.send(addr, auth, a.cfg.From, to, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}

// NoOpAlerter is a dummy alerter for when alerting is disabled
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}

// New returns an email alerter when alerting is enabled, and a NoOpAlerter
// otherwise.
func New(cfg config.AlertConfig) Alerter {
	if !cfg.Enabled {
		return &NoOpAlerter{}
	}
	return NewEmailAlerter(cfg)
}

// alertTimeout bounds how long a breaker alert is waited for.
var alertTimeout = 30 * time.Second

// BreakerListener returns a circuit breaker state listener that alerts when
// a breaker trips. The breaker calls listeners while holding its lock, so the
// alert is sent in the background. Alerting failures are logged and
// otherwise ignored.
func BreakerListener(alerter Alerter, logger *slog.Logger) func(name string, from, to gobreaker.State) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(name string, from, to gobreaker.State) {
		if to != gobreaker.StateOpen {
			return
		}
		subject := fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name)
		msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Searches fail until the index recovers.", name, from, to)
		go sendAlert(alerter, logger, name, subject, msg, alertTimeout)
	}
}

// sendAlert delivers one alert and logs its outcome. Alert takes no context,
// so a send still running after timeout is abandoned.
func sendAlert(alerter Alerter, logger *slog.Logger, name, subject, msg string, timeout time.Duration) {
	done := make(chan error, 1)
	go func() {
		defer utils.RecoverWithCallback(func(err error) {
			done <- err
		})
		done <- alerter.Alert(subject, msg)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("failed to send breaker alert", "breaker", name, "error", err)
		}
	case <-timer.C:
		logger.Warn("breaker alert timed out", "breaker", name, "timeout", timeout)
	}
}
