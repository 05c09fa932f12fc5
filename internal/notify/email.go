package notify

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Sender delivers mail. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailNotifier struct {
	sender Sender
	from   string
	to     []string
}

func NewEmailNotifier(host string, port int, from, password string, to []string) *EmailNotifier {
	return NewEmailNotifierWithSender(gomail.NewDialer(host, port, from, password), from, to)
}

func NewEmailNotifierWithSender(sender Sender, from string, to []string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from, to: to}
}

func (e *EmailNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.sender.DialAndSend(e.buildMessage(ev)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *EmailNotifier) buildMessage(ev Event) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to...)

	vessel := ev.VesselName
	if vessel == "" {
		vessel = fmt.Sprintf("vessel %d", ev.VesselID)
	}
	m.SetHeader("Subject", fmt.Sprintf("VesselEye %s: %s", ev.Title(), vessel))

	body := fmt.Sprintf(`Vessel: %s
Event: %s
Message: %s
Repeats: %d
Time: %s
`, vessel, ev.Kind, ev.Text, ev.RepeatCount, ev.Time.UTC().Format(time.RFC3339))
	m.SetBody("text/plain", body)
	return m
}
