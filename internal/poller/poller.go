// Package poller schedules the three refresh cadences (presence, traffic,
// system) plus on-demand full refreshes. Cadences run on independent
// timers; a failing or slow cycle never cancels the others.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-ha/netduma-telemetry/internal/model"
	"github.com/micro-ha/netduma-telemetry/internal/service"
)

type Cadence string

const (
	CadenceFull     Cadence = "full"
	CadencePresence Cadence = "presence"
	CadenceTraffic  Cadence = "traffic"
	CadenceSystem   Cadence = "system"
)

type Service interface {
	RefreshFull(ctx context.Context) error
	RefreshPresence(ctx context.Context) error
	RefreshTraffic(ctx context.Context) error
	RefreshSystem(ctx context.Context) error
}

type ConfigProvider interface {
	Get() (model.RouterConfig, bool)
}

// CadenceStatus is the per-cadence health record exposed on /healthz.
type CadenceStatus struct {
	LastRunAt time.Time `json:"last_run_at"`
	LastError string    `json:"last_error,omitempty"`
}

type Poller struct {
	service   Service
	config    ConfigProvider
	logger    *slog.Logger
	refreshCh chan struct{}

	mu     sync.Mutex
	primed bool
	status map[Cadence]CadenceStatus
}

func New(svc Service, cfg ConfigProvider, logger *slog.Logger) *Poller {
	return &Poller{
		service:   svc,
		config:    cfg,
		logger:    logger,
		refreshCh: make(chan struct{}, 1),
		status:    map[Cadence]CadenceStatus{},
	}
}

// TriggerRefresh requests a full refresh; coalesces when one is pending.
func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Poller) Run(ctx context.Context) {
	go p.runCadence(ctx, CadencePresence, p.presenceInterval, p.service.RefreshPresence)
	go p.runCadence(ctx, CadenceTraffic, p.trafficInterval, p.service.RefreshTraffic)
	go p.runCadence(ctx, CadenceSystem, p.systemInterval, p.service.RefreshSystem)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.refreshCh:
		}
		err := p.service.RefreshFull(ctx)
		p.record(CadenceFull, err)
		switch {
		case err == nil:
			p.setPrimed()
		case errors.Is(err, service.ErrIntegrationNotConfigured):
			p.logger.Info("full refresh skipped; integration not configured")
		default:
			p.logger.Error("full refresh failed", "err", err)
		}
	}
}

func (p *Poller) runCadence(ctx context.Context, cadence Cadence, interval func() time.Duration, refresh func(context.Context) error) {
	for {
		timer := time.NewTimer(interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !p.Primed() {
			continue
		}
		// Fire and forget: a call outliving its own interval delays
		// nothing and overlapping ticks are tolerated.
		go func() {
			err := refresh(ctx)
			p.record(cadence, err)
			if err != nil && !errors.Is(err, service.ErrIntegrationNotConfigured) {
				p.logger.Error("refresh failed", "cadence", string(cadence), "err", err)
			}
		}()
	}
}

// Primed reports whether the initial full refresh has succeeded; cadences
// idle until it has.
func (p *Poller) Primed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.primed
}

// Status returns a copy of the per-cadence health records.
func (p *Poller) Status() map[Cadence]CadenceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Cadence]CadenceStatus, len(p.status))
	for cadence, status := range p.status {
		out[cadence] = status
	}
	return out
}

func (p *Poller) setPrimed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.primed = true
}

func (p *Poller) record(cadence Cadence, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := CadenceStatus{LastRunAt: time.Now().UTC()}
	if err != nil {
		status.LastError = err.Error()
	}
	p.status[cadence] = status
}

func (p *Poller) presenceInterval() time.Duration {
	if cfg, ok := p.config.Get(); ok {
		return cfg.PresenceInterval()
	}
	return model.DefaultPresenceInterval
}

func (p *Poller) trafficInterval() time.Duration {
	if cfg, ok := p.config.Get(); ok {
		return cfg.TrafficInterval()
	}
	return model.DefaultTrafficInterval
}

func (p *Poller) systemInterval() time.Duration {
	if cfg, ok := p.config.Get(); ok {
		return cfg.SystemInterval()
	}
	return model.DefaultSystemInterval
}
