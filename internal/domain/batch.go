package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchType identifies which process a batch belongs to.
type BatchType string

const (
	BatchTypeInvoluntaryDissolution BatchType = "INVOLUNTARY_DISSOLUTION"
)

func (t BatchType) String() string { return string(t) }

func (t BatchType) IsValid() bool {
	return t == BatchTypeInvoluntaryDissolution
}

// BatchStatus represents the processing state of a batch.
type BatchStatus string

const (
	BatchStatusHold       BatchStatus = "HOLD"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusCancelled  BatchStatus = "CANCELLED"
	BatchStatusError      BatchStatus = "ERROR"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusHold, BatchStatusProcessing, BatchStatusCompleted, BatchStatusCancelled, BatchStatusError:
		return true
	}
	return false
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// Batch groups the businesses selected by one dissolution run.
type Batch struct {
	ID        string
	BatchType BatchType
	Status    BatchStatus
	Size      int
	MaxSize   int
	StartDate time.Time
	EndDate   *time.Time
	Notes     *string
}

func (b *Batch) Validate() error {
	if !b.BatchType.IsValid() {
		return fmt.Errorf("%w: invalid batch type %q", ErrValidation, b.BatchType)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	if b.Size < 0 {
		return fmt.Errorf("%w: batch size must not be negative", ErrValidation)
	}
	if b.MaxSize > 0 && b.Size > b.MaxSize {
		return fmt.Errorf("%w: batch size %d exceeds allowance %d", ErrValidation, b.Size, b.MaxSize)
	}
	return nil
}
