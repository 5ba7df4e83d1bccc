package configsync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/micro-ha/netduma-telemetry/internal/model"
)

// Manager caches the last fetched router config and reports whether a
// refresh changed it.
type Manager struct {
	client *Client
	logger *slog.Logger

	mu         sync.RWMutex
	configured bool
	config     model.RouterConfig
}

func NewManager(client *Client, logger *slog.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	res, err := m.client.FetchConfig(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !res.Configured {
		changed := m.configured
		m.configured = false
		m.config = model.RouterConfig{}
		return changed, nil
	}

	changed := !m.configured || res.Config.Version != m.config.Version
	if changed && !res.Config.HasCredentials() {
		m.logger.Warn("router config has no credentials; routers with auth enabled will reject calls")
	}
	m.configured = true
	m.config = res.Config
	return changed, nil
}

func (m *Manager) Get() (model.RouterConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.configured {
		return model.RouterConfig{}, false
	}
	return m.config, true
}
