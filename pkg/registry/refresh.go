package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/appgate/pkg/observability"
)

// Loader fetches the full set of registered apps from a backing store.
type Loader interface {
	LoadApps(ctx context.Context) ([]App, error)
}

// Refresh loads apps once and swaps them into target.
func Refresh(ctx context.Context, loader Loader, target *Memory) error {
	apps, err := loader.LoadApps(ctx)
	if err != nil {
		observability.RegistryReloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("loading apps: %w", err)
	}
	if err := target.Replace(apps); err != nil {
		observability.RegistryReloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("replacing apps: %w", err)
	}
	observability.RegistryReloadsTotal.WithLabelValues("ok").Inc()
	observability.RegistryApps.Set(float64(target.Len()))
	return nil
}

// RunRefresher reloads target from loader every interval until ctx is
// cancelled. Failed reloads are logged and the previous snapshot is kept.
func RunRefresher(ctx context.Context, loader Loader, target *Memory, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Refresh(ctx, loader, target); err != nil {
				slog.Warn("app registry refresh failed", "error", err)
				continue
			}
			slog.Debug("app registry refreshed", "apps", target.Len())
		}
	}
}
