package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
)

// ProjectShield derives the restriction set for profile p.
// Unlocked clears everything. Allow-list mode blocks all but p.LockTargets;
// block-list mode blocks exactly p.LockTargets plus p.CategoryTargets.
func ProjectShield(p domain.Profile, locking bool, at time.Time) domain.ShieldRules {
	if !locking {
		return domain.ShieldRules{Mode: domain.ShieldNone, AppliedAt: at}
	}
	if p.IsAllowListMode {
		return domain.ShieldRules{
			Mode:      domain.ShieldAllowList,
			Apps:      domain.NormalizeTargets(p.LockTargets),
			AppliedAt: at,
		}
	}
	return domain.ShieldRules{
		Mode:       domain.ShieldBlockList,
		Apps:       domain.NormalizeTargets(p.LockTargets),
		Categories: domain.NormalizeTargets(p.CategoryTargets),
		AppliedAt:  at,
	}
}

// ApplyShield hands rules to the provider. Degenerate configurations are
// applied as-is and logged.
func ApplyShield(provider domain.ShieldProvider, rules domain.ShieldRules, profileName string, logger *zap.Logger) error {
	var err error
	switch rules.Mode {
	case domain.ShieldNone:
		err = provider.ClearAll()
	case domain.ShieldAllowList:
		if len(rules.Apps) == 0 {
			logger.Warn("allow-list profile has no allowed apps, blocking everything",
				zap.String("profile", profileName))
		}
		err = provider.ApplyAllowList(rules.Apps, rules.Categories)
	case domain.ShieldBlockList:
		if len(rules.Apps) == 0 && len(rules.Categories) == 0 {
			logger.Warn("block-list profile has no targets, nothing is blocked",
				zap.String("profile", profileName))
		}
		err = provider.ApplyBlockList(rules.Apps, rules.Categories)
	default:
		return fmt.Errorf("unknown shield mode %q", rules.Mode)
	}
	if err != nil {
		return fmt.Errorf("failed to apply shield: %w", err)
	}
	return nil
}
