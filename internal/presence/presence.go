package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/inspection-dispatch/internal/channel"
	"github.com/example/inspection-dispatch/internal/models"
)

// Tracker is the position slice the machine drives.
type Tracker interface {
	GetOnce(ctx context.Context) (models.GeoPoint, error)
	StartWatch(onUpdate func(models.GeoPoint)) func()
}

// Offers is the dispatch slice the machine gates.
type Offers interface {
	StartRefresh(ctx context.Context)
	StopRefresh()
	Bind() *channel.SubscriptionSet
}

// StatusAPI reports the toggle to the application API.
type StatusAPI interface {
	SetOnlineStatus(ctx context.Context, driverID string, online bool) error
}

// Machine is the driver's online/offline toggle. Going online requires a
// fresh fix; going offline tears everything down unconditionally. While
// offline neither the tracker watch, the offer refresh, nor the offer
// subscriptions are active.
type Machine struct {
	driverID string
	tracker  Tracker
	offers   Offers
	api      StatusAPI
	store    Store
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	gen       int // bumped by GoOffline; stale GoOnline activations abort
	stopWatch func()
	subs      *channel.SubscriptionSet
}

func NewMachine(driverID string, tracker Tracker, offers Offers, api StatusAPI, store Store, logger *slog.Logger) *Machine {
	return &Machine{
		driverID: driverID,
		tracker:  tracker,
		offers:   offers,
		api:      api,
		store:    store,
		logger:   logger,
	}
}

func (m *Machine) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// GoOnline activates dispatch participation. The toggle is rejected when no
// fix can be obtained; the position error is surfaced so the UI can name
// the reason (denied, unavailable, timeout). A GoOffline landing while the
// fix is in flight wins: the stale activation aborts.
func (m *Machine) GoOnline(ctx context.Context) error {
	m.mu.Lock()
	if m.online {
		m.mu.Unlock()
		return nil
	}
	gen := m.gen
	m.mu.Unlock()

	if _, err := m.tracker.GetOnce(ctx); err != nil {
		m.logger.Warn("online toggle rejected, no fix", "error", err)
		return err
	}

	m.mu.Lock()
	if m.online || m.gen != gen {
		m.mu.Unlock()
		return nil
	}
	if err := m.store.Save(models.PresenceState{Online: true, LastToggledAt: time.Now()}); err != nil {
		m.logger.Warn("presence flag not persisted", "error", err)
	}
	m.stopWatch = m.tracker.StartWatch(nil)
	m.offers.StartRefresh(ctx)
	m.subs = m.offers.Bind()
	m.online = true
	m.mu.Unlock()

	if err := m.api.SetOnlineStatus(ctx, m.driverID, true); err != nil {
		m.logger.Warn("online status not reported", "error", err)
	}
	m.logger.Info("driver online", "driver_id", m.driverID)
	return nil
}

// GoOffline deactivates dispatch participation. Every teardown step runs
// regardless of the others.
func (m *Machine) GoOffline(ctx context.Context) {
	m.mu.Lock()
	stop := m.stopWatch
	subs := m.subs
	m.stopWatch = nil
	m.subs = nil
	wasOnline := m.online
	m.online = false
	m.gen++
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	m.offers.StopRefresh()
	if subs != nil {
		subs.Release()
	}
	if !wasOnline {
		return
	}
	if err := m.store.Save(models.PresenceState{Online: false, LastToggledAt: time.Now()}); err != nil {
		m.logger.Warn("presence flag not persisted", "error", err)
	}
	if err := m.api.SetOnlineStatus(ctx, m.driverID, false); err != nil {
		m.logger.Warn("offline status not reported", "error", err)
	}
	m.logger.Info("driver offline", "driver_id", m.driverID)
}

// Resume re-activates presence after a restart when the persisted flag says
/// online. The flag alone is never trusted: activation still requires a
// fresh fix, so a revoked permission leaves the driver offline.
func (m *Machine) Resume(ctx context.Context) {
	state, err := m.store.Load()
	if err != nil {
		m.logger.Warn("presence flag not loaded", "error", err)
		return
	}
	if !state.Online {
		return
	}
	if err := m.GoOnline(ctx); err != nil {
		m.logger.Warn("presence not resumed", "error", err)
	}
}
