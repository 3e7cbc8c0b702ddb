package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kursadbilgin/dissolution-engine/internal/queue"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const parkedNoticesKey = "dissolution:notices:parked"

var _ queue.Outbox = (*NoticeOutbox)(nil)

// NoticeOutbox keeps notices the broker did not confirm in a Redis hash keyed
// by row and step, so parking the same notice twice stores it once.
type NoticeOutbox struct {
	client *goredis.Client
	key    string
	logger *zap.Logger
}

func NewNoticeOutbox(client *goredis.Client, logger *zap.Logger) (*NoticeOutbox, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NoticeOutbox{
		client: client,
		key:    parkedNoticesKey,
		logger: logger,
	}, nil
}

func (o *NoticeOutbox) Park(ctx context.Context, msg queue.NoticeMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal parked notice: %w", err)
	}

	if err := o.client.HSet(ctx, o.key, msg.Key(), payload).Err(); err != nil {
		return fmt.Errorf("failed to park notice %s: %w", msg.Key(), err)
	}
	return nil
}

// Pending returns parked notices oldest first. Entries that no longer decode
// are logged and left in place.
func (o *NoticeOutbox) Pending(ctx context.Context) ([]queue.NoticeMessage, error) {
	entries, err := o.client.HGetAll(ctx, o.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read parked notices: %w", err)
	}

	notices := make([]queue.NoticeMessage, 0, len(entries))
	for field, raw := range entries {
		var msg queue.NoticeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			o.logger.Warn("skipping unreadable parked notice", zap.String("key", field), zap.Error(err))
			continue
		}
		notices = append(notices, msg)
	}

	sort.Slice(notices, func(i, j int) bool {
		if !notices[i].OccurredAt.Equal(notices[j].OccurredAt) {
			return notices[i].OccurredAt.Before(notices[j].OccurredAt)
		}
		return notices[i].Key() < notices[j].Key()
	})

	return notices, nil
}

func (o *NoticeOutbox) Remove(ctx context.Context, msg queue.NoticeMessage) error {
	if err := o.client.HDel(ctx, o.key, msg.Key()).Err(); err != nil {
		return fmt.Errorf("failed to remove parked notice %s: %w", msg.Key(), err)
	}
	return nil
}
