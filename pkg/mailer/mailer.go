// Package mailer sends outbound e-mail over SMTP. All sends are best
// effort from the caller's point of view; nothing in the request path
// blocks on delivery semantics beyond the SMTP dial.
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/commune-hq/commune/pkg/config"
)

type Mailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

// NewFromConfig returns nil when SMTP is disabled, so callers can treat
// a nil Mailer as "notifications off".
func NewFromConfig() *Mailer {
	smtp := config.GetConfig().SMTP
	if !smtp.Enable {
		return nil
	}
	return &Mailer{
		host:     smtp.Host,
		port:     smtp.Port,
		user:     smtp.User,
		password: smtp.Password,
		from:     smtp.From,
	}
}

func (m *Mailer) send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.host, m.port, m.user, m.password)
	return d.DialAndSend(msg)
}

// SendInvite mails an invite code for a community.
func (m *Mailer) SendInvite(to, communityName, code string, expiresAt time.Time) error {
	subject := fmt.Sprintf("You are invited to join %s", communityName)
	body := fmt.Sprintf(
		`<p>Hello,</p><p>You have been invited to join <b>%s</b>.</p><p>Invite code: <b style="font-size:18px;">%s</b></p><p>The code expires on %s.</p>`,
		communityName, code, expiresAt.UTC().Format("2006-01-02 15:04 MST"))
	return m.send(to, subject, body)
}

// SendVerificationCode mails a one-shot signup code.
func (m *Mailer) SendVerificationCode(to, code string, ttl time.Duration) error {
	body := fmt.Sprintf(
		`<p>Hello,</p><p>Your verification code is <b style="font-size:18px;">%s</b>.</p><p>It is valid for %d minutes. Do not share it.</p>`,
		code, int(ttl.Minutes()))
	return m.send(to, "Verify your e-mail address", body)
}

// NotifyNewMail tells a user they received an in-app mail.
func (m *Mailer) NotifyNewMail(to, subject string) error {
	body := fmt.Sprintf(`<p>Hello,</p><p>You have a new message: <b>%s</b>.</p><p>Sign in to read it.</p>`, subject)
	return m.send(to, "New message in your inbox", body)
}
