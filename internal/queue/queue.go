package queue

import (
	"context"
	"fmt"
	"strings"
)

// DefaultNoticeQueue receives one message per dissolution step reached.
const DefaultNoticeQueue = "involuntary_dissolution.notices"

// Publisher publishes dissolution notice messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, msg NoticeMessage) error
	Close() error
}

// Outbox parks notices that could not be published until a later run
// resends them.
type Outbox interface {
	Park(ctx context.Context, msg NoticeMessage) error
	Pending(ctx context.Context) ([]NoticeMessage, error)
	Remove(ctx context.Context, msg NoticeMessage) error
}

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.notices.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", strings.TrimSpace(queue))
}
