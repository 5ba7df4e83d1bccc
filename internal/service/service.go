// Package service joins the RPC client, the aggregator and the snapshot
// store into the refresh operations the poller drives.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/micro-ha/netduma-telemetry/internal/aggregator"
	"github.com/micro-ha/netduma-telemetry/internal/model"
	"github.com/micro-ha/netduma-telemetry/internal/oui"
	"github.com/micro-ha/netduma-telemetry/internal/state"
	"github.com/micro-ha/netduma-telemetry/internal/storage"
)

var ErrIntegrationNotConfigured = errors.New("integration not configured")

// RouterClient is the DumaOS method surface consumed by refreshes.
type RouterClient interface {
	GetAllDevices(ctx context.Context) ([]map[string]any, error)
	GetValidOnlineInterfaces(ctx context.Context) ([]map[string]any, error)
	GetDHCPLeases(ctx context.Context) ([]map[string]any, error)
	GetUploadTree(ctx context.Context) (map[string]any, error)
	GetDownloadTree(ctx context.Context) (map[string]any, error)
	GetThrotPercentage(ctx context.Context) ([]int, error)
	GetSystemInfo(ctx context.Context) (map[string]any, error)
}

// ConfigProvider hands out the current router config, if any.
type ConfigProvider interface {
	Get() (model.RouterConfig, bool)
}

type Service struct {
	store      *state.Store
	repo       *storage.Repository
	aggregator *aggregator.Aggregator
	config     ConfigProvider
	vendors    *oui.DB
	logger     *slog.Logger
	newClient  func(model.RouterConfig) RouterClient

	mu            sync.Mutex
	client        RouterClient
	clientVersion int64
}

// New builds the service. vendors may be nil; device views then carry
// no vendor names.
func New(store *state.Store, repo *storage.Repository, agg *aggregator.Aggregator, cfg ConfigProvider, vendors *oui.DB, logger *slog.Logger, newClient func(model.RouterConfig) RouterClient) *Service {
	return &Service{
		store:      store,
		repo:       repo,
		aggregator: agg,
		config:     cfg,
		vendors:    vendors,
		logger:     logger,
		newClient:  newClient,
	}
}

// RefreshFull populates all four snapshot sections in one pass and seeds
// the traffic baseline. Any failure fails the whole refresh.
func (s *Service) RefreshFull(ctx context.Context) error {
	client, err := s.routerClient()
	if err != nil {
		return err
	}

	devices, err := client.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("fetch devices: %w", err)
	}
	online, err := client.GetValidOnlineInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("fetch online interfaces: %w", err)
	}
	up, err := client.GetUploadTree(ctx)
	if err != nil {
		return fmt.Errorf("fetch upload tree: %w", err)
	}
	down, err := client.GetDownloadTree(ctx)
	if err != nil {
		return fmt.Errorf("fetch download tree: %w", err)
	}
	info, err := client.GetSystemInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch system info: %w", err)
	}

	index := aggregator.IndexDevices(devices)
	s.store.ReplaceDevices(index)
	s.store.SetPresence(aggregator.DerivePresence(online, index))

	counters := aggregator.DeriveTraffic(up, down)
	s.aggregator.Seed(counters)
	samples := make(map[string]model.TrafficSample, len(counters))
	for id, c := range counters {
		samples[id] = model.TrafficSample{RxBytes: c.RxBytes, TxBytes: c.TxBytes}
	}
	s.store.MergeTraffic(samples)
	s.store.MergeSystem(info)
	s.fetchThrottle(ctx, client)
	return nil
}

func (s *Service) RefreshPresence(ctx context.Context) error {
	client, err := s.routerClient()
	if err != nil {
		return err
	}
	online, err := client.GetValidOnlineInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("fetch online interfaces: %w", err)
	}
	s.store.SetPresence(aggregator.DerivePresence(online, s.store.Devices()))
	return nil
}

func (s *Service) RefreshTraffic(ctx context.Context) error {
	client, err := s.routerClient()
	if err != nil {
		return err
	}
	up, err := client.GetUploadTree(ctx)
	if err != nil {
		return fmt.Errorf("fetch upload tree: %w", err)
	}
	down, err := client.GetDownloadTree(ctx)
	if err != nil {
		return fmt.Errorf("fetch download tree: %w", err)
	}
	s.store.MergeTraffic(s.aggregator.Rates(aggregator.DeriveTraffic(up, down)))
	s.fetchThrottle(ctx, client)
	return nil
}

func (s *Service) RefreshSystem(ctx context.Context) error {
	client, err := s.routerClient()
	if err != nil {
		return err
	}
	info, err := client.GetSystemInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch system info: %w", err)
	}
	s.store.MergeSystem(info)
	return nil
}

// Throttle percentage is best-effort telemetry; older firmware lacks the
// method entirely.
func (s *Service) fetchThrottle(ctx context.Context, client RouterClient) {
	throttle, err := client.GetThrotPercentage(ctx)
	if err != nil {
		s.logger.Debug("throttle percentage unavailable", "err", err)
		return
	}
	if throttle != nil {
		s.store.MergeSystem(map[string]any{"throttle_percentage": throttle})
	}
}

func (s *Service) Leases(ctx context.Context) ([]map[string]any, error) {
	client, err := s.routerClient()
	if err != nil {
		return nil, err
	}
	return client.GetDHCPLeases(ctx)
}

func (s *Service) Snapshot() model.Snapshot {
	return s.store.Snapshot()
}

// SectionRefreshedAt reports the last successful refresh time per
// snapshot section.
func (s *Service) SectionRefreshedAt() map[string]time.Time {
	return s.store.RefreshedAt()
}

// DeviceViews joins the live snapshot with registry metadata, sorted by
// display name then id for a stable listing.
func (s *Service) DeviceViews(ctx context.Context) ([]model.DeviceView, error) {
	registered, err := s.repo.ListRegistered(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := s.store.Snapshot()

	views := make([]model.DeviceView, 0, len(snapshot.Devices))
	for id, device := range snapshot.Devices {
		views = append(views, s.buildView(id, device, snapshot, registered[id]))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Name != views[j].Name {
			return views[i].Name < views[j].Name
		}
		return views[i].ID < views[j].ID
	})
	return views, nil
}

func (s *Service) DeviceView(ctx context.Context, id string) (model.DeviceView, error) {
	snapshot := s.store.Snapshot()
	device, ok := snapshot.Devices[id]
	if !ok {
		return model.DeviceView{}, storage.ErrNotFound
	}
	registered, err := s.repo.GetRegistered(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return model.DeviceView{}, err
	}
	return s.buildView(id, device, snapshot, registered), nil
}

// ForgetDevice removes the registry overrides for a device id.
func (s *Service) ForgetDevice(ctx context.Context, id string) error {
	return s.repo.DeleteRegistered(ctx, id)
}

func (s *Service) PatchDevice(ctx context.Context, id string, name, icon, comment *string) error {
	if _, ok := s.store.Snapshot().Devices[id]; !ok {
		return storage.ErrNotFound
	}
	return s.repo.UpsertRegistered(ctx, id, name, icon, comment)
}

// routerClient rebuilds the RPC client whenever the config version moves,
// dropping the previously negotiated base and session.
func (s *Service) routerClient() (RouterClient, error) {
	cfg, ok := s.config.Get()
	if !ok {
		return nil, ErrIntegrationNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || cfg.Version != s.clientVersion {
		s.client = s.newClient(cfg)
		s.clientVersion = cfg.Version
	}
	return s.client, nil
}

func (s *Service) buildView(id string, device model.Device, snapshot model.Snapshot, registered model.DeviceRegistered) model.DeviceView {
	view := model.DeviceView{
		ID:      id,
		Name:    device.Name,
		MACs:    device.MACs,
		Online:  snapshot.Presence[id],
		Icon:    registered.Icon,
		Comment: registered.Comment,
	}
	for _, mac := range device.MACs {
		if vendor := s.vendors.Vendor(mac); vendor != "" {
			view.Vendor = vendor
			break
		}
	}
	if registered.Name != nil && *registered.Name != "" {
		view.Name = *registered.Name
	}
	if sample, ok := snapshot.Traffic[id]; ok {
		view.Traffic = &sample
	}
	return view
}
