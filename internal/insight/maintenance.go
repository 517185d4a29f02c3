package insight

import (
	"time"

	"go.uber.org/zap"
)

// startMaintenance launches the session reaper.
func (m *Module) startMaintenance() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance()
			}
		}
	}()
}

// runMaintenance drops sessions idle for longer than the session TTL.
func (m *Module) runMaintenance() {
	if n := m.sessions.Reap(m.cfg.SessionTTL); n > 0 {
		m.logger.Info("reaped idle sessions",
			zap.Int("count", n),
			zap.Int("remaining", m.sessions.Len()),
		)
	}
}
