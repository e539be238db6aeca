package services

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/pr0br0/cyboard/internal/models"
)

// Email template ids.
const (
	TemplateVerifyEmail     = "verify_email"
	TemplateResetPassword   = "reset_password"
	TemplatePasswordChanged = "password_changed"
	TemplateNotification    = "notification"
)

// Default email templates keyed by id, then locale.
var defaultEmailTemplates = map[string]map[string]models.EmailTemplate{
	TemplateVerifyEmail: {
		models.LangEn: {
			Subject: "Please verify your email",
			Body:    "Hello {{.name}},\n\nPlease confirm your email address by opening this link:\n{{.url}}\n\nThe link expires in 24 hours.",
		},
		models.LangRu: {
			Subject: "Подтвердите ваш email",
			Body:    "Здравствуйте, {{.name}}!\n\nПодтвердите адрес электронной почты по ссылке:\n{{.url}}\n\nСсылка действительна 24 часа.",
		},
	},
	TemplateResetPassword: {
		models.LangEn: {
			Subject: "Password Reset Request",
			Body:    "Hello {{.name}},\n\nYou asked to reset your password. Open this link to choose a new one:\n{{.url}}\n\nThe link expires in 1 hour. If you did not ask for this, ignore this email.",
		},
		models.LangRu: {
			Subject: "Сброс пароля",
			Body:    "Здравствуйте, {{.name}}!\n\nВы запросили сброс пароля. Перейдите по ссылке, чтобы задать новый:\n{{.url}}\n\nСсылка действительна 1 час. Если вы не запрашивали сброс, просто проигнорируйте письмо.",
		},
	},
	TemplatePasswordChanged: {
		models.LangEn: {
			Subject: "Your password was changed",
			Body:    "Hello {{.name}},\n\nThe password for your account was just changed. If this was not you, reset it immediately.",
		},
		models.LangRu: {
			Subject: "Ваш пароль изменен",
			Body:    "Здравствуйте, {{.name}}!\n\nПароль вашей учетной записи был изменен. Если это были не вы, немедленно сбросьте его.",
		},
	},
	TemplateNotification: {
		models.LangEn: {
			Subject: "{{.title}}",
			Body:    "Hello {{.name}},\n\n{{.message}}{{if .link}}\n\n{{.link}}{{end}}",
		},
		models.LangRu: {
			Subject: "{{.title}}",
			Body:    "Здравствуйте, {{.name}}!\n\n{{.message}}{{if .link}}\n\n{{.link}}{{end}}",
		},
	},
}

// RenderedEmail is a template filled with data.
type RenderedEmail struct {
	Subject string
	Body    string
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(templateID, locale string) (*models.EmailTemplate, error)
	Render(templateID, locale string, data map[string]string) (*RenderedEmail, error)
}

// EmailTemplateService renders the built-in templates. Parsed templates are cached.
type EmailTemplateService struct {
	mu     sync.Mutex
	parsed map[string]*template.Template
}

func NewEmailTemplateService() *EmailTemplateService {
	return &EmailTemplateService{parsed: make(map[string]*template.Template)}
}

// GetTemplate returns the template for locale, falling back to English.
func (s *EmailTemplateService) GetTemplate(templateID, locale string) (*models.EmailTemplate, error) {
	byLocale, ok := defaultEmailTemplates[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s (locale: %s)", ErrTemplateNotFound, templateID, locale)
	}
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	tmpl, ok := byLocale[lang]
	if !ok {
		lang = models.LangEn
		tmpl = byLocale[lang]
	}
	tmpl.TemplateID = templateID
	tmpl.Locale = lang
	return &tmpl, nil
}

func (s *EmailTemplateService) parse(key, src string) (*template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.parsed[key]; ok {
		return t, nil
	}
	t, err := template.New(key).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", key, err)
	}
	s.parsed[key] = t
	return t, nil
}

// Render fills the subject and body of a template.
func (s *EmailTemplateService) Render(templateID, locale string, data map[string]string) (*RenderedEmail, error) {
	tmpl, err := s.GetTemplate(templateID, locale)
	if err != nil {
		return nil, err
	}
	prefix := tmpl.TemplateID + "/" + tmpl.Locale
	subjectT, err := s.parse(prefix+"/subject", tmpl.Subject)
	if err != nil {
		return nil, err
	}
	bodyT, err := s.parse(prefix+"/body", tmpl.Body)
	if err != nil {
		return nil, err
	}

	var subject, body bytes.Buffer
	if err := subjectT.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", prefix, err)
	}
	if err := bodyT.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render %s body: %w", prefix, err)
	}
	return &RenderedEmail{Subject: subject.String(), Body: body.String()}, nil
}
