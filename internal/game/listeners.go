// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package game

import (
	"log/slog"

	"github.com/towgame/tow/pkg/event"
)

// HostSource is the listener source name of the host's own listeners.
const HostSource = "host"

// HostListeners returns the host's listener catalog. The tower rotation
// listeners bracket the mod priorities so a debug log shows the order every
// rotation went through.
func HostListeners(logger *slog.Logger) *event.Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	towerAt := func(p event.Priority) event.Listener {
		return event.On(func(e *TankTowerRotatedEvent) {
			logger.Debug("tank tower rotated",
				"tank", e.Tank.ID,
				"priority", p.String(),
				"cancelled", e.IsCancelled())
		}, event.WithPriority(p), event.WithName("tower_rotated_"+p.String()))
	}

	return event.NewCatalog(HostSource).Add(
		towerAt(event.PriorityLowest),
		towerAt(event.PriorityMonitor),
		towerAt(event.PriorityHighest),
		towerAt(event.PriorityNormal),
		event.On(func(e *TankMovedEvent) {
			logger.Debug("tank moved", "tank", e.Tank.ID, "dx", e.DX, "dy", e.DY)
		}, event.WithName("tank_moved")),
	)
}
