// Package smtp delivers outbound mail through an authenticated submission server.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

const defaultTimeout = 30 * time.Second

// Options configures the submission server connection
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// Sender delivers mail over SMTP, one connection per mail
type Sender struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewSender creates a new SMTP sender
func NewSender(opts Options, logger *zap.Logger) (*Sender, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("smtp host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	return &Sender{
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Send composes and delivers m to m.To
func (s *Sender) Send(ctx context.Context, m core.OutboundMail) error {
	data, err := Compose(s.opts.From, m, s.now())
	if err != nil {
		return fmt.Errorf("failed to compose mail: %w", err)
	}

	if err := s.deliver(ctx, m.To, data); err != nil {
		s.logger.Error("Mail delivery failed",
			zap.String("to", m.To),
			zap.String("subject", m.Subject),
			zap.Error(err))
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}

	s.logger.Info("Mail sent",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("attachments", len(m.Attachments)))
	return nil
}

func (s *Sender) deliver(ctx context.Context, to string, data []byte) error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	tlsConfig := &tls.Config{ServerName: s.opts.Host}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	dialer := &net.Dialer{Deadline: deadline}

	var (
		conn net.Conn
		err  error
	)
	if s.opts.UseTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if !s.opts.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server does not support STARTTLS")
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if s.opts.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.opts.Username, s.opts.Password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(s.opts.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := bytes.NewReader(data).WriteTo(wc); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send mail data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}
