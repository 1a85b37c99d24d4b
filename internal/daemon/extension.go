package daemon

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/config"
	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/infra"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// Extension is what an extension process can reach: the shared store, the
// broadcast and the registry. It never opens the private store.
type Extension struct {
	ShieldAction *usecase.ShieldAction
	Monitor      *usecase.ActivityMonitor

	shared domain.KeyValueStore
}

// NewExtension wires the extension use cases over already-open capabilities.
func NewExtension(shared domain.KeyValueStore, shield domain.ShieldProvider, broadcaster domain.Broadcaster, registry domain.ProcessRegistry, clock domain.Clock, logger *zap.Logger) *Extension {
	return &Extension{
		ShieldAction: usecase.NewShieldAction(usecase.ShieldActionDeps{
			Shared:      shared,
			Broadcaster: broadcaster,
			Registry:    registry,
			Clock:       clock,
			Logger:      logger.Named("shield_action"),
		}),
		Monitor: usecase.NewActivityMonitor(usecase.ActivityMonitorDeps{
			Shared:      shared,
			Shield:      shield,
			Broadcaster: broadcaster,
			Clock:       clock,
			Logger:      logger.Named("monitor"),
		}),
		shared: shared,
	}
}

// BootstrapExtension opens the shared capabilities described by cfg.
func BootstrapExtension(cfg *config.Config, logger *zap.Logger) (*Extension, error) {
	shared, err := infra.OpenSharedStore(cfg.Paths.SharedDir)
	if err != nil {
		return nil, err
	}
	broadcaster, err := infra.NewFileBroadcaster(cfg.Paths.SignalDir, logger.Named("broadcast"))
	if err != nil {
		shared.Close()
		return nil, fmt.Errorf("failed to open broadcast: %w", err)
	}
	clock := domain.SystemClock{}
	registry := infra.NewFileRegistry(cfg.Paths.SharedDir, infra.NewProcessManager(), cfg.Registry.StaleAfter())
	shield := infra.NewStoreShield(shared, clock, logger.Named("shield"))
	return NewExtension(shared, shield, broadcaster, registry, clock, logger), nil
}

// Close releases the shared store.
func (e *Extension) Close() error {
	return e.shared.Close()
}
