package services

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"rankedbyus/internal/logging"
)

type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Enabled  bool
}

func NewMailService() *MailService {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")

	enabled := host != "" && port != "" && user != "" && pass != "" && from != ""
	if !enabled {
		logging.L().Warn().Msg("mail service disabled: missing SMTP environment variables")
	}

	return &MailService{
		Host:     host,
		Port:     port,
		Username: user,
		Password: pass,
		From:     from,
		Enabled:  enabled,
	}
}

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.Enabled || len(to) == 0 {
		return
	}

	go func() {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

		mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"From: RankedByUs <%s>\r\n"+
			"Subject: %s\r\n"+
			"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))

		if err := smtp.SendMail(addr, auth, s.From, to, msg); err != nil {
			logging.L().Error().Err(err).Str("subject", subject).Msg("failed to send mail")
		}
	}()
}

// NotifySubmission tells the admins a new paid submission arrived.
func (s *MailService) NotifySubmission(admins []string, toolName, website string) {
	body := fmt.Sprintf(
		"<p>New tool submission awaiting review:</p><p><strong>%s</strong><br>%s</p>",
		toolName, website)
	s.sendAsync(admins, "New tool submission: "+toolName, body)
}

// NotifyReviewQueued tells the admins a review is waiting for moderation.
func (s *MailService) NotifyReviewQueued(admins []string, toolName string) {
	body := fmt.Sprintf("<p>A new review of <strong>%s</strong> is waiting in the moderation queue.</p>", toolName)
	s.sendAsync(admins, "Review pending moderation", body)
}
