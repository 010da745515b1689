package offers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/example/inspection-dispatch/internal/channel"
	"github.com/example/inspection-dispatch/internal/geo"
	"github.com/example/inspection-dispatch/internal/models"
	"github.com/example/inspection-dispatch/internal/observability"
	"github.com/example/inspection-dispatch/internal/rest"
)

// DefaultRefreshInterval bounds the staleness introduced by missed events.
const DefaultRefreshInterval = 30 * time.Second

// API is the slice of the application client the manager needs.
type API interface {
	AvailableAppointments(ctx context.Context) ([]models.DispatchOffer, error)
	AcceptAppointment(ctx context.Context, id string) (models.DispatchOffer, error)
}

// Channel is the slice of the realtime connection the manager needs.
type Channel interface {
	Subscribe(name string, fn func(models.Event)) func()
	Session() *models.Session
}

// Locator supplies the driver's latest fix, nil before the first sample.
type Locator interface {
	Current() *models.GeoPoint
}

// Manager tracks the set of currently-open offers visible to this driver.
// The set is a last-write-wins projection: the explicit accept wins
// locally, the authoritative event wins on arrival, never the reverse.
type Manager struct {
	api      API
	ch       Channel
	loc      Locator
	logger   *slog.Logger
	radiusKm float64
	interval time.Duration

	mu      sync.Mutex
	open    map[string]models.DispatchOffer
	claimed map[string]bool // offers this driver attempted; never re-shown
	cancel  context.CancelFunc
}

func NewManager(api API, ch Channel, loc Locator, radiusKm float64, logger *slog.Logger) *Manager {
	return &Manager{
		api:      api,
		ch:       ch,
		loc:      loc,
		logger:   logger,
		radiusKm: radiusKm,
		interval: DefaultRefreshInterval,
		open:     make(map[string]models.DispatchOffer),
		claimed:  make(map[string]bool),
	}
}

// SetRefreshInterval overrides the periodic re-sync cadence.
func (m *Manager) SetRefreshInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// ListOpenOffers returns the open set, nearest first. With no fix yet the
// order is unspecified but the set is complete.
func (m *Manager) ListOpenOffers() []models.DispatchOffer {
	m.mu.Lock()
	all := make([]models.DispatchOffer, 0, len(m.open))
	for _, o := range m.open {
		all = append(all, o)
	}
	m.mu.Unlock()
	return geo.SortByDistance(m.loc.Current(), all, func(o models.DispatchOffer) (float64, float64) {
		return o.Location.Lat, o.Location.Lon
	})
}

// Accept claims an offer optimistically: it leaves the open set before the
// request is issued and is never put back, even on failure. The
// authoritative removal also arrives on the event path, so restoring is
// unsafe to assume. Under-showing beats showing an already-taken offer.
func (m *Manager) Accept(ctx context.Context, offerID string) (models.DispatchOffer, error) {
	m.mu.Lock()
	delete(m.open, offerID)
	m.claimed[offerID] = true
	m.mu.Unlock()

	offer, err := m.api.AcceptAppointment(ctx, offerID)
	if err != nil {
		observability.OffersLost.Inc()
		return models.DispatchOffer{}, classifyAccept(err)
	}
	observability.OffersAccepted.Inc()
	m.logger.Info("offer accepted", "offer_id", offerID)
	return offer, nil
}

func classifyAccept(err error) *AcceptError {
	if serr, ok := err.(*rest.StatusError); ok {
		if serr.Code == http.StatusConflict {
			return &AcceptError{Kind: AlreadyTaken, Cause: err}
		}
		return &AcceptError{Kind: ServerRejected, Cause: err}
	}
	return &AcceptError{Kind: NetworkFailure, Cause: err}
}

// Refresh re-synchronizes the open set from the source of truth. Failures
// leave the last-known-good set in place.
func (m *Manager) Refresh(ctx context.Context) {
	batch, err := m.api.AvailableAppointments(ctx)
	if err != nil {
		m.logger.Warn("offer refresh failed", "error", err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = make(map[string]models.DispatchOffer, len(batch))
	for _, o := range batch {
		m.admitLocked(o)
	}
}

// admitLocked applies the admission rule: open status and distance
// eligibility at entry time. Claimed offers never come back.
func (m *Manager) admitLocked(o models.DispatchOffer) {
	if o.Status != models.OfferOpen || m.claimed[o.ID] {
		return
	}
	if !geo.IsWithinRadius(m.loc.Current(), o.Location.Lat, o.Location.Lon, m.radiusKm) {
		return
	}
	if _, known := m.open[o.ID]; !known {
		observability.OffersSeen.Inc()
	}
	m.open[o.ID] = o
}

// StartRefresh begins the periodic re-sync. Idempotent: an already-running
// loop is stopped first, so toggling presence never stacks timers.
func (m *Manager) StartRefresh(ctx context.Context) {
	m.StopRefresh()
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		m.Refresh(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Refresh(ctx)
			}
		}
	}()
}

// StopRefresh halts the periodic re-sync. Safe when none is running.
func (m *Manager) StopRefresh() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// RefreshRunning reports whether the periodic re-sync is active.
func (m *Manager) RefreshRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Bind subscribes the manager to the offer event stream. Each event passes
// the audience test before it may mutate the open set. The returned set
// holds the disposers for the presence lifecycle to release.
func (m *Manager) Bind() *channel.SubscriptionSet {
	subs := &channel.SubscriptionSet{}
	subs.Add(m.ch.Subscribe(models.EventAppointmentCreated, m.onOfferEvent))
	subs.Add(m.ch.Subscribe(models.EventAppointmentUpdated, m.onOfferEvent))
	subs.Add(m.ch.Subscribe(models.EventAppointmentAssigned, m.onOfferEvent))
	subs.Add(m.ch.Subscribe(models.EventAppointmentCancelled, m.onOfferEvent))
	return subs
}

func (m *Manager) onOfferEvent(ev models.Event) {
	session := m.ch.Session()
	if session == nil || !ev.AddressedTo(*session) {
		return
	}
	var p models.OfferPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.Offer.ID == "" {
		m.logger.Warn("malformed offer event", "event", ev.Name)
		return
	}
	offer := p.Offer

	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.Name {
	case models.EventAppointmentCreated:
		m.admitLocked(offer)
	case models.EventAppointmentUpdated, models.EventAppointmentAssigned:
		// Last write wins: anything no longer open, or assigned to
		// someone else, leaves the set.
		if offer.Status != models.OfferOpen || (offer.DriverID != "" && offer.DriverID != session.UserID) {
			delete(m.open, offer.ID)
			return
		}
		m.admitLocked(offer)
	case models.EventAppointmentCancelled:
		delete(m.open, offer.ID)
	}
}
