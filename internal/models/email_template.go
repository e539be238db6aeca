package models

// EmailTemplate is one localized email. Subject and Body are text/template sources.
type EmailTemplate struct {
	TemplateID string `json:"template_id"` // e.g. "verify_email", "reset_password"
	Locale     string `json:"locale"`      // "en" or "ru"
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}
