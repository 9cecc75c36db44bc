package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-registration"
)

// SMTPTransport sends messages through an SMTP relay.
type SMTPTransport struct {
	Host     string
	Port     string
	Username string
	Password string
	// ImplicitTLS dials TLS directly, as on port 465. Otherwise STARTTLS
	// is used when the server offers it.
	ImplicitTLS bool
	Timeout     time.Duration
}

var _ registration.EmailTransport = (*SMTPTransport)(nil)

// NewSMTPTransport creates a transport for host:port.
func NewSMTPTransport(host, port, user, pass string) *SMTPTransport {
	return &SMTPTransport{
		Host:     host,
		Port:     port,
		Username: user,
		Password: pass,
		Timeout:  10 * time.Second,
	}
}

func (t *SMTPTransport) Send(ctx context.Context, msg registration.EmailMessage) error {
	if len(msg.To) == 0 {
		return goerrors.New("email has no recipients", goerrors.CategoryBadInput)
	}

	body, err := BuildMessage(msg)
	if err != nil {
		return err
	}

	from, err := parseAddress(msg.From)
	if err != nil {
		return err
	}
	rcpts, err := parseAddresses(msg.To)
	if err != nil {
		return err
	}
	to := make([]string, 0, len(rcpts))
	for _, rcpt := range rcpts {
		to = append(to, rcpt.Address)
	}

	done := make(chan error, 1)
	go func() {
		done <- t.send(from.Address, to, body)
	}()

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "email delivery cancelled")
	case err := <-done:
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
				WithTextCode(registration.TextCodeEmailTransport)
		}
		return nil
	}
}

func (t *SMTPTransport) send(from string, to []string, body []byte) error {
	addr := net.JoinHostPort(t.Host, t.Port)

	var auth smtp.Auth
	if t.Username != "" {
		auth = smtp.PlainAuth("", t.Username, t.Password, t.Host)
	}

	if !t.ImplicitTLS {
		return smtp.SendMail(addr, auth, from, to, body)
	}

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: t.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, t.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return w.Close()
}

// BuildMessage renders msg as a MIME message. A message with both bodies
// is sent as multipart/alternative, text first.
func BuildMessage(msg registration.EmailMessage) ([]byte, error) {
	from, err := parseAddress(msg.From)
	if err != nil {
		return nil, err
	}
	rcpts, err := parseAddresses(msg.To)
	if err != nil {
		return nil, err
	}
	to := make([]string, 0, len(rcpts))
	for _, rcpt := range rcpts {
		to = append(to, formatAddress(rcpt))
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", formatAddress(from))
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", registration.SingleLine(msg.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		buf.WriteString(msg.Text)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=\"utf-8\"", msg.Text},
		{"text/html; charset=\"utf-8\"", msg.HTML},
	}

	for _, part := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build email")
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build email")
		}
	}

	if err := mw.Close(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build email")
	}

	return buf.Bytes(), nil
}

// parseAddress accepts a single RFC 5322 address. Anything else, including
// values carrying extra header lines, is rejected.
func parseAddress(value string) (*netmail.Address, error) {
	addr, err := netmail.ParseAddress(value)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid email address").
			WithTextCode(registration.TextCodeEmailTransport)
	}
	return addr, nil
}

func parseAddresses(values []string) ([]*netmail.Address, error) {
	out := make([]*netmail.Address, 0, len(values))
	for _, value := range values {
		addr, err := parseAddress(value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func formatAddress(addr *netmail.Address) string {
	if addr.Name == "" {
		return addr.Address
	}
	return addr.String()
}
