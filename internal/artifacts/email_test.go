package artifacts

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mail "gopkg.in/mail.v2"

	"symptom-guide/internal/core"
)

type smtpBehaviour int

const (
	smtpAccept smtpBehaviour = iota
	smtpDropAtMail
	smtpStall
)

// smtpServer is a minimal SMTP server on 127.0.0.1 that counts connections.
type smtpServer struct {
	ln        net.Listener
	behaviour smtpBehaviour
	conns     atomic.Int32
	wg        sync.WaitGroup

	mu   sync.Mutex
	open []net.Conn
	data strings.Builder
}

func startSMTPServer(t *testing.T, b smtpBehaviour) *smtpServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &smtpServer{ln: ln, behaviour: b}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		for _, c := range s.open {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return s
}

func (s *smtpServer) transport(timeout time.Duration) *SMTPTransport {
	addr := s.ln.Addr().(*net.TCPAddr)
	return NewSMTPTransport(addr.IP.String(), addr.Port, "", "", timeout)
}

func (s *smtpServer) received() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.String()
}

func (s *smtpServer) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.conns.Add(1)
		s.mu.Lock()
		s.open = append(s.open, c)
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(c)
	}
}

func (s *smtpServer) handle(c net.Conn) {
	defer s.wg.Done()
	defer c.Close()
	r := bufio.NewReader(c)
	reply := func(line string) { _, _ = io.WriteString(c, line+"\r\n") }

	reply("220 localhost ESMTP")
	if s.behaviour == smtpStall {
		_, _ = io.Copy(io.Discard, r)
		return
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			if s.behaviour == smtpDropAtMail {
				return
			}
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			reply("250 OK")
		case cmd == "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				s.mu.Lock()
				s.data.WriteString(l)
				s.mu.Unlock()
			}
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 command not implemented")
		}
	}
}

func smtpMailer(tr Transport) *Mailer {
	return &Mailer{Transport: tr, From: "clinic@example.com", Subject: "Your symptom guidance"}
}

var testReport = core.Document{Data: []byte("%PDF-1.4 report"), Text: "Query: cough"}

func TestNewSMTPTransportDisablesRetry(t *testing.T) {
	tr := NewSMTPTransport("smtp.example.com", 587, "user", "secret", 3*time.Second)
	assert.False(t, tr.Dialer.RetryFailure)
	assert.Equal(t, 3*time.Second, tr.Dialer.Timeout)
}

func TestSMTPTransportDelivers(t *testing.T) {
	srv := startSMTPServer(t, smtpAccept)

	err := smtpMailer(srv.transport(time.Second)).DispatchEmail(context.Background(), "patient@example.com", testReport)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.conns.Load())

	body := srv.received()
	assert.Contains(t, body, "Subject: Your symptom guidance")
	assert.Contains(t, body, AttachmentName)
}

func TestSMTPTransportDroppedConnectionIsNotRetried(t *testing.T) {
	srv := startSMTPServer(t, smtpDropAtMail)

	err := smtpMailer(srv.transport(time.Second)).DispatchEmail(context.Background(), "patient@example.com", testReport)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindEmail))
	assert.Equal(t, int32(1), srv.conns.Load(), "a failed send must use a single connection")
}

func TestSMTPTransportContextDeadline(t *testing.T) {
	srv := startSMTPServer(t, smtpStall)
	tr := srv.transport(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	msg := mail.NewMessage()
	msg.SetHeader("From", "clinic@example.com")
	msg.SetHeader("To", "patient@example.com")
	msg.SetBody("text/plain", "report")

	start := time.Now()
	err := tr.Send(ctx, msg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 10*time.Second, tr.Dialer.Timeout, "the shared dialer is not modified")
	assert.Equal(t, int32(1), srv.conns.Load())
}

func TestSMTPTransportExpiredContext(t *testing.T) {
	srv := startSMTPServer(t, smtpAccept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := srv.transport(time.Second).Send(ctx, mail.NewMessage())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, srv.conns.Load())
}
