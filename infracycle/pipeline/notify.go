package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers pipeline status mail.
type Mailer interface {
	Send(ctx context.Context, config EmailConfig, recipients []string, subject, body string) error
}

// smtpMailer speaks plain SMTP with STARTTLS upgrade and password auth,
// which is what the usual relay providers expect on port 587.
type smtpMailer struct{}

func (smtpMailer) Send(ctx context.Context, config EmailConfig, recipients []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", config.SMTPServer, config.SMTPPort)
	auth := smtp.PlainAuth("", config.SenderEmail, config.SenderPassword, config.SMTPServer)

	msg := strings.Join([]string{
		"From: " + config.SenderEmail,
		"To: " + strings.Join(recipients, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(addr, auth, config.SenderEmail, recipients, []byte(msg))
}

func (jr *jobRun) sendNotification(ctx context.Context, task NotificationTask) error {
	if task.EmailConfig.SMTPServer == "" || task.EmailConfig.SenderEmail == "" {
		return errors.New("send_notification needs email_config with smtp_server and sender_email")
	}
	if len(task.Recipients) == 0 {
		return errors.New("send_notification needs at least one recipient")
	}

	subject := fmt.Sprintf("Task %s - %s", task.TaskName, task.Status)
	body := fmt.Sprintf("The task '%s' has completed with status: %s.", task.TaskName, task.Status)

	if err := jr.engine.mailer().Send(ctx, task.EmailConfig, task.Recipients, subject, body); err != nil {
		return fmt.Errorf("send notification for %s: %w", task.TaskName, err)
	}

	jr.log.WithFields(map[string]interface{}{
		"task":       task.TaskName,
		"recipients": len(task.Recipients),
	}).Info("Notification sent")
	jr.engine.summary().TaskCompleted()
	return nil
}
