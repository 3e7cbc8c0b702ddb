// Package schedule decides which dissolution stages are due on a given day.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	cronlib "github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field expressions and descriptors like "@weekly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Rule is a parsed cron expression evaluated at day granularity.
type Rule struct {
	expr     string
	schedule cronlib.Schedule
}

// Parse parses a cron expression. Empty or malformed expressions are
// configuration errors.
func Parse(expr string) (Rule, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Rule{}, fmt.Errorf("%w: empty cron expression", domain.ErrConfiguration)
	}

	sched, err := cronParser.Parse(trimmed)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: invalid cron expression %q: %v", domain.ErrConfiguration, expr, err)
	}

	return Rule{expr: trimmed, schedule: sched}, nil
}

func (r Rule) String() string { return r.expr }

// MatchesDay reports whether the rule fires at any time during the calendar
// day of date, in date's location.
func (r Rule) MatchesDay(date time.Time) bool {
	if r.schedule == nil {
		return false
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	// Next is exclusive, so start one second before midnight.
	next := r.schedule.Next(dayStart.Add(-time.Second))
	if next.IsZero() {
		return false
	}
	return next.Before(dayEnd)
}

// Rules holds the schedule of every stage.
type Rules struct {
	Stage1 Rule
	Stage2 Rule
	Stage3 Rule
}

// ParseRules parses the three stage expressions, failing on the first bad one.
func ParseRules(stage1, stage2, stage3 string) (Rules, error) {
	var (
		rules Rules
		err   error
	)
	if rules.Stage1, err = Parse(stage1); err != nil {
		return Rules{}, fmt.Errorf("stage 1 schedule: %w", err)
	}
	if rules.Stage2, err = Parse(stage2); err != nil {
		return Rules{}, fmt.Errorf("stage 2 schedule: %w", err)
	}
	if rules.Stage3, err = Parse(stage3); err != nil {
		return Rules{}, fmt.Errorf("stage 3 schedule: %w", err)
	}
	return rules, nil
}

// Due returns, per stage, whether it is scheduled to run on date.
func (r Rules) Due(date time.Time) (stage1, stage2, stage3 bool) {
	return r.Stage1.MatchesDay(date), r.Stage2.MatchesDay(date), r.Stage3.MatchesDay(date)
}

// IsDue reports whether a single stage runs on date.
func (r Rules) IsDue(stage domain.Stage, date time.Time) bool {
	switch stage {
	case domain.Stage1:
		return r.Stage1.MatchesDay(date)
	case domain.Stage2:
		return r.Stage2.MatchesDay(date)
	case domain.Stage3:
		return r.Stage3.MatchesDay(date)
	}
	return false
}
