package email

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/utils"
)

type recordingSender struct {
	calls int
	err   error
}

func (r *recordingSender) Send(context.Context, []string, string, []byte) error {
	r.calls++
	return r.err
}

func TestBuildMessage(t *testing.T) {
	raw, err := BuildMessage(Message{
		From:       "noreply@cyboard.test",
		To:         "anna@example.com",
		Subject:    "Verify your email",
		TextBody:   "hello",
		HTMLBody:   "<p>hello</p>",
		TemplateID: "verify_email",
	})
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "To: anna@example.com")
	assert.Contains(t, s, "text/html")
	assert.Equal(t, "verify_email", headerValue(raw, TemplateHeader))
	assert.Equal(t, "", headerValue([]byte("garbage"), TemplateHeader))
}

func TestCompositeEmailSender(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{err: errors.New("boom")}
	cs := NewCompositeEmailSender(ok, nil, bad)

	err := cs.Send(context.Background(), []string{"a@b.c"}, "s", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)

	assert.Error(t, NewCompositeEmailSender().Send(context.Background(), nil, "s", nil))
}

func TestFileEmailSender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail", "emails.log")
	s, err := NewFileEmailSender(path)
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), []string{"a@b.c"}, "Hi", []byte("body")))
	require.NoError(t, s.Send(context.Background(), []string{"a@b.c"}, "Again", []byte("body")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "--- End Logged Email ---"))

	_, err = NewFileEmailSender("  ")
	assert.Error(t, err)
}

func TestLoggingSender(t *testing.T) {
	assert.NoError(t, NewLoggingSender(zap.NewNop()).Send(context.Background(), []string{"x@y.z"}, "s", []byte("b")))
}

func TestRedisSender(t *testing.T) {
	client := utils.SetupTestRedis(t)
	s := NewRedisSender(client, "noreply@cyboard.test", zap.NewNop())

	raw, err := BuildMessage(Message{From: "noreply@cyboard.test", To: "anna@example.com", Subject: "Reset", TextBody: "link", TemplateID: "reset_password"})
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), []string{"anna@example.com"}, "Reset", raw))

	val, err := client.Get(context.Background(), MockKey("anna@example.com", "reset_password")).Result()
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, json.Unmarshal([]byte(val), &stored))
	assert.Equal(t, "Reset", stored["subject"])
	assert.Equal(t, "reset_password", stored["templateId"])
}
