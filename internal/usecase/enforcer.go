package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// TargetResolver expands lock targets into process name patterns.
type TargetResolver interface {
	Resolve(apps, categories []string) []string
}

// ShieldEnforcer kills running processes named by the block-list rules the
// shield last applied. Allow-list rules are left to the shield provider.
type ShieldEnforcer struct {
	processManager domain.ProcessManager
	shared         *prefs.Defaults
	resolver       TargetResolver
	logger         *zap.Logger
}

// NewShieldEnforcer creates an enforcer reading rules from the shared store.
// A nil resolver matches app targets by their own identifiers.
func NewShieldEnforcer(pm domain.ProcessManager, shared domain.KeyValueStore, resolver TargetResolver, logger *zap.Logger) *ShieldEnforcer {
	return &ShieldEnforcer{
		processManager: pm,
		shared:         prefs.New(shared),
		resolver:       resolver,
		logger:         logger,
	}
}

// Rules returns the mirrored shield rules, or no restriction when none were stored.
func (e *ShieldEnforcer) Rules() domain.ShieldRules {
	var rules domain.ShieldRules
	if err := e.shared.Decode(prefs.KeyShieldRules, &rules); err != nil {
		if !prefs.IsNotFound(err) {
			e.logger.Warn("stored shield rules unreadable", zap.Error(err))
		}
		return domain.ShieldRules{Mode: domain.ShieldNone}
	}
	return rules
}

// Enforce runs one pass.
func (e *ShieldEnforcer) Enforce(ctx context.Context) domain.EnforcementResult {
	start := time.Now()
	rules := e.Rules()
	result := domain.EnforcementResult{
		Mode:       rules.Mode,
		KilledPIDs: make([]int, 0),
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}
	if rules.Mode != domain.ShieldBlockList {
		return result
	}

	patterns := rules.Apps
	if e.resolver != nil {
		patterns = e.resolver.Resolve(rules.Apps, rules.Categories)
	}

	self := e.processManager.GetCurrentPID()
	for _, app := range patterns {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			break
		}
		pids, err := e.processManager.FindByName(app)
		if err != nil {
			e.logger.Warn("failed to find processes",
				zap.String("app", app),
				zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}

		for _, pid := range pids {
			if pid == self {
				continue
			}
			if err := e.processManager.Kill(pid); err != nil {
				e.logger.Warn("failed to kill process",
					zap.Int("pid", pid),
					zap.Error(err))
				result.Errors = append(result.Errors, err)
				continue
			}
			e.logger.Info("killed blocked process",
				zap.Int("pid", pid),
				zap.String("app", app))
			result.KilledPIDs = append(result.KilledPIDs, pid)
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}
