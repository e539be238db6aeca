package email

import (
	"bufio"
	"bytes"
	"fmt"
	"net/textproto"
	"time"

	"gopkg.in/gomail.v2"
)

// TemplateHeader carries the template id so mock senders can key stored messages.
const TemplateHeader = "X-Cyboard-Template"

// Message is a rendered email ready to be composed.
type Message struct {
	From       string
	To         string
	Subject    string
	TextBody   string
	HTMLBody   string
	TemplateID string
}

// BuildMessage composes a MIME message with a plain-text part and an optional HTML alternative.
func BuildMessage(msg Message) ([]byte, error) {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetDateHeader("Date", time.Now())
	if msg.TemplateID != "" {
		m.SetHeader(TemplateHeader, msg.TemplateID)
	}
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to compose email: %w", err)
	}
	return buf.Bytes(), nil
}

// headerValue reads a single header from a raw message.
func headerValue(raw []byte, name string) string {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	h, err := r.ReadMIMEHeader()
	if err != nil && len(h) == 0 {
		return ""
	}
	return h.Get(name)
}
