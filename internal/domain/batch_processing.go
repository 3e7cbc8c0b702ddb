package domain

import (
	"fmt"
	"strings"
	"time"
)

// Step is the warning/notice level a business has reached within a batch.
type Step string

const (
	StepWarningLevel1 Step = "WARNING_LEVEL_1"
	StepWarningLevel2 Step = "WARNING_LEVEL_2"
	StepDissolution   Step = "DISSOLUTION"
)

var stepSequence = []Step{StepWarningLevel1, StepWarningLevel2, StepDissolution}

func (s Step) String() string { return string(s) }

func (s Step) IsValid() bool {
	return s.index() >= 0
}

func (s Step) index() int {
	for i, step := range stepSequence {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the step that follows s, or false when s is the last step.
func (s Step) Next() (Step, bool) {
	i := s.index()
	if i < 0 || i == len(stepSequence)-1 {
		return "", false
	}
	return stepSequence[i+1], true
}

func ParseStepFromString(s string) (Step, error) {
	st := Step(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid step %q", ErrValidation, s)
	}
	return st, nil
}

// BatchProcessingStatus is the state of one business within a batch.
type BatchProcessingStatus string

const (
	BatchProcessingStatusHold       BatchProcessingStatus = "HOLD"
	BatchProcessingStatusProcessing BatchProcessingStatus = "PROCESSING"
	BatchProcessingStatusWithdrawn  BatchProcessingStatus = "WITHDRAWN"
	BatchProcessingStatusCompleted  BatchProcessingStatus = "COMPLETED"
	BatchProcessingStatusError      BatchProcessingStatus = "ERROR"
)

func (s BatchProcessingStatus) String() string { return string(s) }

func (s BatchProcessingStatus) IsValid() bool {
	switch s {
	case BatchProcessingStatusHold, BatchProcessingStatusProcessing, BatchProcessingStatusWithdrawn,
		BatchProcessingStatusCompleted, BatchProcessingStatusError:
		return true
	}
	return false
}

// IsTerminal reports whether rows in this status can no longer change.
func (s BatchProcessingStatus) IsTerminal() bool {
	return s == BatchProcessingStatusWithdrawn || s == BatchProcessingStatusCompleted
}

func ParseBatchProcessingStatusFromString(s string) (BatchProcessingStatus, error) {
	st := BatchProcessingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch processing status %q", ErrValidation, s)
	}
	return st, nil
}

// ActiveProcessingStatuses keep a business inside a running batch.
var ActiveProcessingStatuses = []BatchProcessingStatus{
	BatchProcessingStatusProcessing,
	BatchProcessingStatusHold,
}

// BatchProcessing tracks one business's progress through a batch.
type BatchProcessing struct {
	ID                 string
	BatchID            string
	BusinessID         string
	BusinessIdentifier string
	Step               Step
	Status             BatchProcessingStatus
	CreatedDate        time.Time
	TriggerDate        *time.Time
	LastModified       time.Time
	MetaData           map[string]any
	Notes              *string
}

// NoteMovedBackToGoodStanding is recorded on rows withdrawn from the process.
const NoteMovedBackToGoodStanding = "Moved back into good standing"

// Withdraw takes the business out of the process and resets it to the first step.
func (p *BatchProcessing) Withdraw(now time.Time) error {
	if p.Status.IsTerminal() {
		return fmt.Errorf("%w: batch processing %s is already %s", ErrValidation, p.ID, p.Status)
	}

	note := NoteMovedBackToGoodStanding
	p.Status = BatchProcessingStatusWithdrawn
	p.Step = StepWarningLevel1
	p.TriggerDate = nil
	p.Notes = &note
	p.LastModified = now
	p.annotate("withdrawn", now)
	return nil
}

// AdvanceTo moves the row one step forward. Only the immediate successor of
// the current step is accepted.
func (p *BatchProcessing) AdvanceTo(step Step, status BatchProcessingStatus, triggerDate *time.Time, now time.Time) error {
	if p.Status.IsTerminal() {
		return fmt.Errorf("%w: batch processing %s is already %s", ErrValidation, p.ID, p.Status)
	}
	next, ok := p.Step.Next()
	if !ok || next != step {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrValidation, p.Step, step)
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid batch processing status %q", ErrValidation, status)
	}

	p.Step = step
	p.Status = status
	p.TriggerDate = triggerDate
	p.LastModified = now
	p.annotate(strings.ToLower(step.String()), now)
	return nil
}

func (p *BatchProcessing) annotate(action string, now time.Time) {
	if p.MetaData == nil {
		p.MetaData = map[string]any{}
	}
	p.MetaData["lastAction"] = action
	p.MetaData["lastActionDate"] = now.UTC().Format(time.RFC3339)
}
