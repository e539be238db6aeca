package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/email"
)

// EmailJob is one templated email to deliver.
type EmailJob struct {
	To         string            `json:"to"`
	TemplateID string            `json:"template_id"`
	Locale     string            `json:"locale,omitempty"`
	Data       map[string]string `json:"data"`
}

// Mailer hands off an email for delivery. The asynq dispatcher queues it;
// DirectMailer sends it in-process.
type Mailer interface {
	SendEmail(ctx context.Context, job EmailJob) error
}

// DirectMailer renders a template and sends it through an email.Sender.
type DirectMailer struct {
	templates IEmailTemplateService
	sender    email.Sender
	from      string
	logger    *zap.Logger
}

func NewDirectMailer(templates IEmailTemplateService, sender email.Sender, from string, logger *zap.Logger) *DirectMailer {
	return &DirectMailer{templates: templates, sender: sender, from: from, logger: logger}
}

func (m *DirectMailer) SendEmail(ctx context.Context, job EmailJob) error {
	rendered, err := m.templates.Render(job.TemplateID, job.Locale, job.Data)
	if err != nil {
		return err
	}
	raw, err := email.BuildMessage(email.Message{
		From:       m.from,
		To:         job.To,
		Subject:    rendered.Subject,
		TextBody:   rendered.Body,
		TemplateID: job.TemplateID,
	})
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, []string{job.To}, rendered.Subject, raw); err != nil {
		return fmt.Errorf("send %s email: %w", job.TemplateID, err)
	}
	m.logger.Debug("Email sent", zap.String("to", job.To), zap.String("template", job.TemplateID))
	return nil
}

// CodeSender delivers phone verification codes. SMS delivery is not wired;
// LogCodeSender only logs them.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

type LogCodeSender struct {
	logger *zap.Logger
}

func NewLogCodeSender(logger *zap.Logger) *LogCodeSender {
	return &LogCodeSender{logger: logger}
}

func (s *LogCodeSender) SendCode(_ context.Context, phone, code string) error {
	s.logger.Info("Phone verification code", zap.String("phone", phone), zap.String("code", code))
	return nil
}
