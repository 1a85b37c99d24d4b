package infra

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// StoreShield implements domain.ShieldProvider by publishing the active
// restriction set to the shared store, where the enforcer and the
// extensions read it.
type StoreShield struct {
	shared *prefs.Defaults
	clock  domain.Clock
	logger *zap.Logger
}

// NewStoreShield creates a shield over the shared store.
func NewStoreShield(shared domain.KeyValueStore, clock domain.Clock, logger *zap.Logger) *StoreShield {
	return &StoreShield{
		shared: prefs.New(shared),
		clock:  clock,
		logger: logger,
	}
}

func (s *StoreShield) ApplyBlockList(apps, categories []string) error {
	return s.apply(domain.ShieldRules{Mode: domain.ShieldBlockList, Apps: apps, Categories: categories})
}

func (s *StoreShield) ApplyAllowList(exceptApps, exceptCategories []string) error {
	return s.apply(domain.ShieldRules{Mode: domain.ShieldAllowList, Apps: exceptApps, Categories: exceptCategories})
}

func (s *StoreShield) ClearAll() error {
	return s.apply(domain.ShieldRules{Mode: domain.ShieldNone})
}

// Current returns the published rules, or no restriction if none were published.
func (s *StoreShield) Current() (domain.ShieldRules, error) {
	var rules domain.ShieldRules
	if err := s.shared.Decode(prefs.KeyShieldRules, &rules); err != nil {
		if prefs.IsNotFound(err) {
			return domain.ShieldRules{Mode: domain.ShieldNone}, nil
		}
		return rules, err
	}
	return rules, nil
}

func (s *StoreShield) apply(rules domain.ShieldRules) error {
	rules.Apps = domain.NormalizeTargets(rules.Apps)
	rules.Categories = domain.NormalizeTargets(rules.Categories)
	rules.AppliedAt = s.clock.Now()

	if err := s.shared.Encode(prefs.KeyShieldRules, rules); err != nil {
		return fmt.Errorf("failed to publish shield rules: %w", err)
	}
	s.logger.Info("shield applied",
		zap.String("mode", string(rules.Mode)),
		zap.Strings("apps", rules.Apps),
		zap.Strings("categories", rules.Categories))
	return nil
}

var _ domain.ShieldProvider = (*StoreShield)(nil)
