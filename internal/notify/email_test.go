package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/subscriber"
)

type fakeMailSender struct {
	messages []*gomail.Message
	err      error
}

func (f *fakeMailSender) DialAndSend(m ...*gomail.Message) error {
	f.messages = append(f.messages, m...)
	return f.err
}

func newTestEmail(t *testing.T, sender mailSender) *Email {
	t.Helper()

	email, err := NewEmail(EmailConfig{Enabled: true, SMTPServer: "smtp.example.com", From: "alerts@example.com"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}
	email.sender = sender
	return email
}

func TestEmailSend(t *testing.T) {
	t.Parallel()

	sender := &fakeMailSender{}
	email := newTestEmail(t, sender)

	sub := &subscriber.Subscriber{ID: "s1", Email: "chef@example.com", Channels: subscriber.Channels{EmailEnabled: true}}
	bid := &announcement.Announcement{Title: "구내식당 위탁운영", URL: "https://example.com/1", AISummary: "청사 식당 운영자 모집"}

	if !email.Enabled(sub) {
		t.Fatal("expected email to be enabled")
	}
	if err := email.Send(context.Background(), Match{Subscriber: sub, Announcement: bid, Keywords: []string{"구내식당"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.messages))
	}

	msg := sender.messages[0]
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "chef@example.com" {
		t.Fatalf("unexpected recipient %v", got)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if !strings.Contains(buf.String(), "text/html") || !strings.Contains(buf.String(), "text/plain") {
		t.Fatal("expected html body with plain text alternative")
	}
}

func TestEmailSendFailure(t *testing.T) {
	t.Parallel()

	email := newTestEmail(t, &fakeMailSender{err: errors.New("535 auth failed")})
	sub := &subscriber.Subscriber{Email: "chef@example.com"}

	err := email.Send(context.Background(), Match{Subscriber: sub, Announcement: &announcement.Announcement{Title: "t"}})
	if err == nil || !strings.Contains(err.Error(), "535 auth failed") {
		t.Fatalf("expected smtp error, got %v", err)
	}
}

func TestEmailSendCanceled(t *testing.T) {
	t.Parallel()

	sender := &fakeMailSender{}
	email := newTestEmail(t, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := email.Send(ctx, Match{Subscriber: &subscriber.Subscriber{Email: "a@b.c"}, Announcement: &announcement.Announcement{}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sender.messages) != 0 {
		t.Fatal("nothing should be sent after cancellation")
	}
}

func TestNewEmailValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewEmail(EmailConfig{From: "a@b.c"}, nil); err == nil {
		t.Fatal("expected error without smtp server")
	}
	if _, err := NewEmail(EmailConfig{SMTPServer: "smtp"}, nil); err == nil {
		t.Fatal("expected error without sender")
	}
}

func TestRendererEscapesHTML(t *testing.T) {
	t.Parallel()

	rendered, err := NewRenderer().Render(Match{
		Subscriber:   &subscriber.Subscriber{CompanyName: "한빛푸드"},
		Announcement: &announcement.Announcement{Title: "<script>x</script> 급식", URL: "https://example.com/1", Price: 1000},
		Keywords:     []string{"급식"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rendered.HTML, "<script>") {
		t.Fatal("expected title to be escaped")
	}
	if rendered.Subject != "[입찰 알림] <script>x</script> 급식" {
		t.Fatalf("unexpected subject %q", rendered.Subject)
	}
	for _, want := range []string{"한빛푸드님", "추정가: 1,000원", "키워드: 급식", "발주처: 미정"} {
		if !strings.Contains(rendered.Text, want) {
			t.Fatalf("expected %q in plain text:\n%s", want, rendered.Text)
		}
	}
}
