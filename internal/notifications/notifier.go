package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/licensegate/pkg/db/models"
	"github.com/angelmondragon/licensegate/pkg/logger"
	pkgredis "github.com/angelmondragon/licensegate/pkg/redis"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// RedisNotifier publishes issued keys so a chat bridge can DM the owner.
type RedisNotifier struct {
	publisher pkgredis.Publisher
	channel   string
}

func NewRedisNotifier(publisher pkgredis.Publisher, channel string) (*RedisNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if channel == "" {
		return nil, fmt.Errorf("notification channel required")
	}
	return &RedisNotifier{publisher: publisher, channel: channel}, nil
}

func (n *RedisNotifier) LicenseIssued(ctx context.Context, license models.License) error {
	payload, err := json.Marshal(IssuedEvent{
		EventID:   uuid.NewString(),
		Event:     EventLicenseIssued,
		Key:       license.Key,
		Owner:     license.Owner,
		ExpiresAt: license.ExpiresAt,
		Notes:     license.Notes,
		CreatedAt: license.CreatedAt,
		Message:   RenderMessage(license),
	})
	if err != nil {
		return fmt.Errorf("marshal issued event: %w", err)
	}
	if err := n.publisher.Publish(ctx, n.channel, payload); err != nil {
		return fmt.Errorf("publish issued event: %w", err)
	}
	return nil
}

// LogNotifier records issuance without delivering anything; used when Redis is not configured.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) LicenseIssued(ctx context.Context, license models.License) error {
	if n.logg == nil {
		return nil
	}
	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"event":   EventLicenseIssued,
		"owner":   license.Owner,
		"license": logger.Redact(license.Key),
	}), "license notification skipped: no delivery channel configured")
	return nil
}

type issuedNotifier interface {
	LicenseIssued(ctx context.Context, license models.License) error
}

// Fanout delivers to every notifier and combines their errors.
type Fanout []issuedNotifier

func (f Fanout) LicenseIssued(ctx context.Context, license models.License) error {
	var errs error
	for _, n := range f {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.LicenseIssued(ctx, license))
	}
	return errs
}
