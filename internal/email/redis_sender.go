package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MockTTL is how long a mocked email stays readable in Redis.
const MockTTL = 5 * time.Minute

// RedisSender stores emails in Redis instead of sending them, so tests can read them back.
type RedisSender struct {
	client redis.UniversalClient
	from   string
	logger *zap.Logger
}

func NewRedisSender(client redis.UniversalClient, from string, logger *zap.Logger) *RedisSender {
	return &RedisSender{client: client, from: from, logger: logger}
}

// MockKey is the Redis key a mocked email for (to, templateID) is stored under.
func MockKey(to, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", to, templateID)
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, raw []byte) error {
	templateID := headerValue(raw, TemplateHeader)
	if templateID == "" {
		templateID = "unknown"
	}
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	jsonData, err := json.Marshal(map[string]string{
		"to":         strings.Join(to, ", "),
		"from":       s.from,
		"subject":    subject,
		"body":       string(raw),
		"sentAt":     time.Now().UTC().Format(time.RFC3339Nano),
		"templateId": templateID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockKey(primaryTo, templateID)
	if err := s.client.Set(ctx, key, jsonData, MockTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	s.logger.Debug("Mock email stored in Redis", zap.String("key", key), zap.String("subject", subject))
	return nil
}
