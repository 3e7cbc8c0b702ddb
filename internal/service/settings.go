package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"github.com/kursadbilgin/dissolution-engine/internal/repository"
	"github.com/kursadbilgin/dissolution-engine/internal/schedule"
)

const (
	defaultStage1DelayDays = 42
	defaultStage2DelayDays = 30
)

// Settings are the typed operational parameters of one job run.
type Settings struct {
	DissolutionsAllowed int
	OnHold              bool
	// Stage1Delay is the dwell at WARNING_LEVEL_1 before stage 2 may act.
	Stage1Delay time.Duration
	// Stage2Delay is the dwell at WARNING_LEVEL_2 before stage 3 may act.
	Stage2Delay time.Duration
	Schedules   schedule.Rules
}

// DwellFor returns the minimum age a row must reach before stage may select it.
func (s *Settings) DwellFor(stage domain.Stage) time.Duration {
	if stage == domain.Stage2 {
		return s.Stage1Delay
	}
	return 0
}

// nextTrigger is when the row advanced by stage becomes due for the following stage.
func (s *Settings) nextTrigger(stage domain.Stage, now time.Time) *time.Time {
	if stage != domain.Stage2 {
		return nil
	}
	t := now.Add(s.Stage2Delay)
	return &t
}

// SettingsProvider resolves Settings once per run.
type SettingsProvider interface {
	Settings(ctx context.Context) (*Settings, error)
}

// ConfigurationSettings reads Settings from the configuration store.
type ConfigurationSettings struct {
	configs repository.ConfigurationRepository
}

var _ SettingsProvider = (*ConfigurationSettings)(nil)

func NewConfigurationSettings(configs repository.ConfigurationRepository) (*ConfigurationSettings, error) {
	if configs == nil {
		return nil, fmt.Errorf("configuration repository is required")
	}
	return &ConfigurationSettings{configs: configs}, nil
}

func (p *ConfigurationSettings) Settings(ctx context.Context) (*Settings, error) {
	allowedRaw, err := p.required(ctx, domain.ConfigNumDissolutionsAllowed)
	if err != nil {
		return nil, err
	}
	allowed, err := strconv.Atoi(allowedRaw)
	if err != nil || allowed < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q",
			domain.ErrConfiguration, domain.ConfigNumDissolutionsAllowed, allowedRaw)
	}

	onHold := false
	onHoldRaw, ok, err := p.optional(ctx, domain.ConfigDissolutionsOnHold)
	if err != nil {
		return nil, err
	}
	if ok {
		if onHold, err = strconv.ParseBool(onHoldRaw); err != nil {
			return nil, fmt.Errorf("%w: %s must be a boolean, got %q",
				domain.ErrConfiguration, domain.ConfigDissolutionsOnHold, onHoldRaw)
		}
	}

	stage1Delay, err := p.delay(ctx, domain.ConfigStage1Delay, defaultStage1DelayDays)
	if err != nil {
		return nil, err
	}
	stage2Delay, err := p.delay(ctx, domain.ConfigStage2Delay, defaultStage2DelayDays)
	if err != nil {
		return nil, err
	}

	exprs := make([]string, 0, 3)
	for _, name := range []string{domain.ConfigStage1Schedule, domain.ConfigStage2Schedule, domain.ConfigStage3Schedule} {
		expr, err := p.required(ctx, name)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	rules, err := schedule.ParseRules(exprs[0], exprs[1], exprs[2])
	if err != nil {
		return nil, err
	}

	return &Settings{
		DissolutionsAllowed: allowed,
		OnHold:              onHold,
		Stage1Delay:         stage1Delay,
		Stage2Delay:         stage2Delay,
		Schedules:           rules,
	}, nil
}

func (p *ConfigurationSettings) required(ctx context.Context, name string) (string, error) {
	val, ok, err := p.optional(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s is not set", domain.ErrConfiguration, name)
	}
	return val, nil
}

func (p *ConfigurationSettings) optional(ctx context.Context, name string) (string, bool, error) {
	cfg, err := p.configs.FindByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read %s: %v", domain.ErrPersistence, name, err)
	}

	val := strings.TrimSpace(cfg.Val)
	if val == "" {
		return "", false, nil
	}
	return val, true, nil
}

func (p *ConfigurationSettings) delay(ctx context.Context, name string, defaultDays int) (time.Duration, error) {
	raw, ok, err := p.optional(ctx, name)
	if err != nil {
		return 0, err
	}

	days := defaultDays
	if ok {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			return 0, fmt.Errorf("%w: %s must be a non-negative number of days, got %q",
				domain.ErrConfiguration, name, raw)
		}
	}
	return time.Duration(days) * 24 * time.Hour, nil
}
