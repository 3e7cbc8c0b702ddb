package domain

import (
	"fmt"
	"time"
)

// Stage is a scheduled checkpoint of the dissolution process.
type Stage int

const (
	Stage1 Stage = iota + 1
	Stage2
	Stage3
)

func (s Stage) String() string { return fmt.Sprintf("stage_%d", int(s)) }

// StageRule describes which rows a transition stage acts on and where it moves them.
type StageRule struct {
	Stage Stage
	From  Step
	To    Step
	// ToStatus is the status a row takes when it advances.
	ToStatus BatchProcessingStatus
	// DwellFromTrigger selects rows by TriggerDate instead of CreatedDate.
	DwellFromTrigger bool
}

var stageRules = map[Stage]StageRule{
	Stage2: {
		Stage:    Stage2,
		From:     StepWarningLevel1,
		To:       StepWarningLevel2,
		ToStatus: BatchProcessingStatusProcessing,
	},
	Stage3: {
		Stage:            Stage3,
		From:             StepWarningLevel2,
		To:               StepDissolution,
		ToStatus:         BatchProcessingStatusCompleted,
		DwellFromTrigger: true,
	},
}

// RuleForStage returns the transition rule of a stage. Stage 1 creates
// batches and has no transition rule.
func RuleForStage(stage Stage) (StageRule, error) {
	rule, ok := stageRules[stage]
	if !ok {
		return StageRule{}, fmt.Errorf("%w: %s has no transition rule", ErrValidation, stage)
	}
	return rule, nil
}

// Criteria builds the selection predicate for this stage as of now.
func (r StageRule) Criteria(now time.Time, dwell time.Duration) ProcessingCriteria {
	c := ProcessingCriteria{
		BatchType:   BatchTypeInvoluntaryDissolution,
		BatchStatus: BatchStatusProcessing,
		Status:      BatchProcessingStatusProcessing,
		Step:        r.From,
	}
	if r.DwellFromTrigger {
		c.TriggeredBefore = &now
	} else {
		createdBefore := now.Add(-dwell)
		c.CreatedBefore = &createdBefore
	}
	return c
}

// ProcessingCriteria selects batch processing rows eligible for a stage.
type ProcessingCriteria struct {
	BatchType       BatchType
	BatchStatus     BatchStatus
	Status          BatchProcessingStatus
	Step            Step
	CreatedBefore   *time.Time
	TriggeredBefore *time.Time
}

// Matches reports whether a row owned by batch satisfies every condition.
func (c ProcessingCriteria) Matches(batch Batch, p BatchProcessing) bool {
	if p.BatchID != batch.ID {
		return false
	}
	if batch.BatchType != c.BatchType || batch.Status != c.BatchStatus {
		return false
	}
	if p.Status != c.Status || p.Step != c.Step {
		return false
	}
	if c.CreatedBefore != nil && p.CreatedDate.After(*c.CreatedBefore) {
		return false
	}
	if c.TriggeredBefore != nil {
		if p.TriggerDate == nil || p.TriggerDate.After(*c.TriggeredBefore) {
			return false
		}
	}
	return true
}
