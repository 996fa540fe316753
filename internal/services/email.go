package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"oikos/internal/channels"
	"oikos/internal/config"
	apperrors "oikos/pkg/errors"
)

// Dialer abstracts net.Dialer so tests can point the service at a local
// listener.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// EmailOption configures an EmailService.
type EmailOption func(*EmailService)

// WithDialer swaps the network dialer used for SMTP connections.
func WithDialer(d Dialer) EmailOption {
	return func(s *EmailService) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithTLSConfig overrides the TLS configuration used for STARTTLS.
func WithTLSConfig(cfg *tls.Config) EmailOption {
	return func(s *EmailService) {
		s.tlsConfig = cfg
	}
}

// EmailService handles sending emails over authenticated SMTP
type EmailService struct {
	cfg       config.EmailConfig
	auth      smtp.Auth
	tlsConfig *tls.Config
	dialer    Dialer
	now       func() time.Time
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.EmailConfig, opts ...EmailOption) *EmailService {
	s := &EmailService{
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: 30 * time.Second},
		now:    time.Now,
		tlsConfig: &tls.Config{
			ServerName: cfg.SMTPHost,
			MinVersion: tls.VersionTLS12,
		},
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// IsEnabled returns whether email credentials are configured
func (s *EmailService) IsEnabled() bool {
	return s.cfg.Enabled()
}

// Send delivers one HTML email with a plain text alternative. SMTP replies
// rejecting the message are RemoteRejected, connection problems NetworkError.
func (s *EmailService) Send(ctx context.Context, m channels.Mail) error {
	if !s.IsEnabled() {
		return apperrors.New(apperrors.ErrCodeChannelUnconfigured, "email service not configured")
	}

	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeRemoteRejected, "invalid recipient", err)
	}

	msg, err := s.buildMessage(to.Address, m)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternalError, "build message", err)
	}

	if err := s.deliver(ctx, s.cfg.FromEmail(), to.Address, msg); err != nil {
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) {
			return apperrors.Wrap(apperrors.ErrCodeRemoteRejected, "smtp server rejected message", err)
		}
		return apperrors.Wrap(apperrors.ErrCodeNetwork, "smtp delivery failed", err)
	}

	return nil
}

func (s *EmailService) buildMessage(to string, m channels.Mail) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writePart(mw, "text/plain; charset=UTF-8", m.Text); err != nil {
		return nil, err
	}
	if m.HTML != "" {
		if err := writePart(mw, "text/html; charset=UTF-8", m.HTML); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	from := (&mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromEmail()}).String()

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Reply-To: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", headerSafe(m.Subject)))
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

// headerSafe removes line breaks so a value cannot start a new header.
func headerSafe(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

func (s *EmailService) deliver(ctx context.Context, from, to string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	if s.tlsConfig != nil {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); !ok {
			return &textproto.Error{Code: 530, Msg: "auth: server does not advertise AUTH"}
		}
		if err := client.Auth(s.auth); err != nil {
			var tpErr *textproto.Error
			if errors.As(err, &tpErr) {
				return fmt.Errorf("auth: %w", err)
			}
			// net/smtp refuses to send credentials over an unencrypted link
			return &textproto.Error{Code: 530, Msg: "auth: " + err.Error()}
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		_ = w.Close()
		return fmt.Errorf("data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}

	// The message is accepted once DATA closes
	_ = client.Quit()
	return nil
}
