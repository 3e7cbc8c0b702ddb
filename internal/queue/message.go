package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
)

// NoticeMessage asks downstream services to issue the notice for a step a
// business has reached. Letter content is produced by the consumer.
type NoticeMessage struct {
	BatchProcessingID  string                       `json:"batchProcessingId"`
	BatchID            string                       `json:"batchId"`
	BusinessIdentifier string                       `json:"businessIdentifier"`
	Step               domain.Step                  `json:"step"`
	Status             domain.BatchProcessingStatus `json:"status"`
	RunID              string                       `json:"runId,omitempty"`
	OccurredAt         time.Time                    `json:"occurredAt"`
}

// NewNoticeMessage builds the notice for the current state of a row.
func NewNoticeMessage(p domain.BatchProcessing, runID string, occurredAt time.Time) NoticeMessage {
	return NoticeMessage{
		BatchProcessingID:  p.ID,
		BatchID:            p.BatchID,
		BusinessIdentifier: p.BusinessIdentifier,
		Step:               p.Step,
		Status:             p.Status,
		RunID:              runID,
		OccurredAt:         occurredAt.UTC(),
	}
}

// Key is stable per row and step, so consumers and the outbox can drop
// repeats of the same notice.
func (m NoticeMessage) Key() string {
	return fmt.Sprintf("%s:%s", m.BatchProcessingID, m.Step)
}

func (m NoticeMessage) Validate() error {
	if strings.TrimSpace(m.BatchProcessingID) == "" {
		return fmt.Errorf("batchProcessingId is required")
	}
	if strings.TrimSpace(m.BusinessIdentifier) == "" {
		return fmt.Errorf("businessIdentifier is required")
	}
	if !m.Step.IsValid() {
		return fmt.Errorf("invalid step %q", m.Step)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("invalid status %q", m.Status)
	}
	return nil
}
