package artifacts

import (
	"context"
	"errors"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"

	"symptom-guide/internal/core"
)

// ErrInvalidRecipient marks a recipient rejected before any transport call.
var ErrInvalidRecipient = errors.New("invalid recipient address")

// ErrEmailDisabled is returned when email delivery is switched off.
var ErrEmailDisabled = errors.New("email delivery is disabled")

// AttachmentName is the filename of the emailed report.
const AttachmentName = "symptom-guidance-report.pdf"

// Transport delivers a composed message.
type Transport interface {
	Send(ctx context.Context, m *mail.Message) error
}

// SMTPTransport sends through an SMTP server.
type SMTPTransport struct {
	Dialer *mail.Dialer
}

// NewSMTPTransport builds a transport with the given dial timeout. Failed
// sends are never retried by the dialer.
func NewSMTPTransport(host string, port int, username, password string, timeout time.Duration) *SMTPTransport {
	d := mail.NewDialer(host, port, username, password)
	d.RetryFailure = false
	if timeout > 0 {
		d.Timeout = timeout
	}
	return &SMTPTransport{Dialer: d}
}

// Send dials, authenticates and sends m on a single connection. The dialer's
// read/write timeout is shortened to ctx's deadline so the SMTP session ends
// no later than the call. A message the server accepted just before the
// deadline may still be delivered even though Send reports ctx.Err().
func (t *SMTPTransport) Send(ctx context.Context, m *mail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := *t.Dialer
	d.RetryFailure = false
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return context.DeadlineExceeded
		}
		if d.Timeout <= 0 || left < d.Timeout {
			d.Timeout = left
		}
	}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mailer sends rendered reports.
type Mailer struct {
	Transport Transport
	From      string
	Subject   string
	Timeout   time.Duration
}

// ValidateRecipient accepts a single bare address such as
// "name@example.com".
func ValidateRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	addr, err := netmail.ParseAddress(recipient)
	if err != nil {
		return "", ErrInvalidRecipient
	}
	if addr.Address != recipient {
		return "", ErrInvalidRecipient
	}
	at := strings.LastIndex(recipient, "@")
	domain := recipient[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", ErrInvalidRecipient
	}
	return recipient, nil
}

// DispatchEmail sends doc to recipient in a single attempt. The recipient is
// validated before the transport is touched; transport failures carry the
// transport's own message.
func (m *Mailer) DispatchEmail(ctx context.Context, recipient string, doc core.Document) error {
	to, err := ValidateRecipient(recipient)
	if err != nil {
		return core.WrapError(core.KindEmail, recipient, err)
	}
	if len(doc.Data) == 0 {
		return core.NewError(core.KindEmail, "no report to attach")
	}
	if m.Transport == nil || m.From == "" {
		return core.NewError(core.KindEmail, "email delivery is not configured")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", emailBody(doc))
	data := doc.Data
	msg.Attach(AttachmentName,
		mail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}),
		mail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
	)

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	if err := m.Transport.Send(ctx, msg); err != nil {
		return core.WrapError(core.KindEmail, "email delivery failed", err)
	}
	return nil
}

func emailBody(doc core.Document) string {
	if doc.Text == "" {
		return "Your symptom guidance report is attached."
	}
	return "Your symptom guidance report is attached.\n\n" + doc.Text
}
