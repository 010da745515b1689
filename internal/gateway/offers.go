package gateway

import (
	"errors"
	"sync"

	"github.com/example/inspection-dispatch/internal/models"
)

var (
	ErrOfferUnknown = errors.New("offer unknown")
	ErrOfferTaken   = errors.New("offer already taken")
)

// OfferRegistry is the gateway's source of truth for appointments offered
// to drivers. Accept is a mutex-guarded check-and-set, which is what makes
// the at-most-one-winner guarantee hold under racing accepts.
type OfferRegistry struct {
	mu     sync.Mutex
	offers map[string]models.DispatchOffer
}

func NewOfferRegistry() *OfferRegistry {
	return &OfferRegistry{offers: make(map[string]models.DispatchOffer)}
}

func (r *OfferRegistry) Put(o models.DispatchOffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.ID] = o
}

func (r *OfferRegistry) Get(id string) (models.DispatchOffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	return o, ok
}

// ListOpen returns every offer still open.
func (r *OfferRegistry) ListOpen() []models.DispatchOffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DispatchOffer, 0, len(r.offers))
	for _, o := range r.offers {
		if o.Status == models.OfferOpen {
			out = append(out, o)
		}
	}
	return out
}

// Accept transitions an open offer to accepted for driverID. Exactly one
// caller wins; the rest get ErrOfferTaken.
func (r *OfferRegistry) Accept(id, driverID string) (models.DispatchOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return models.DispatchOffer{}, ErrOfferUnknown
	}
	if o.Status != models.OfferOpen {
		return models.DispatchOffer{}, ErrOfferTaken
	}
	o.Status = models.OfferAccepted
	o.DriverID = driverID
	r.offers[id] = o
	return o, nil
}

// Update applies changes to an existing offer and returns the result.
func (r *OfferRegistry) Update(id string, apply func(*models.DispatchOffer)) (models.DispatchOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return models.DispatchOffer{}, ErrOfferUnknown
	}
	apply(&o)
	r.offers[id] = o
	return o, nil
}

// AcceptedBy lists ids of offers currently held by driverID.
func (r *OfferRegistry) AcceptedBy(driverID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, o := range r.offers {
		if o.Status == models.OfferAccepted && o.DriverID == driverID {
			out = append(out, id)
		}
	}
	return out
}

// Cancel transitions an offer to cancelled regardless of current status.
func (r *OfferRegistry) Cancel(id string) (models.DispatchOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return models.DispatchOffer{}, ErrOfferUnknown
	}
	o.Status = models.OfferCancelled
	r.offers[id] = o
	return o, nil
}
