package position

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/inspection-dispatch/internal/models"
	"github.com/example/inspection-dispatch/internal/observability"
)

// Fix request tunables. One-shot fixes tolerate older cached samples than
// the continuous watch does.
const (
	onceTimeout  = 10 * time.Second
	onceMaxAge   = 5 * time.Minute
	watchTimeout = 15 * time.Second
	watchMaxAge  = time.Minute

	defaultCadence = 5 * time.Second
)

// FixOptions qualifies a sample request to the device source.
type FixOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

// Source is the device geolocation provider. The real implementation talks
// to platform location services; tests supply fakes.
type Source interface {
	Fix(ctx context.Context, opts FixOptions) (models.GeoPoint, error)
}

// Publisher is the slice of the channel connection the tracker needs.
type Publisher interface {
	Publish(name string, payload any)
	Session() *models.Session
}

// Tracker samples device location and, for driver sessions, republishes
// each fix on the realtime channel.
type Tracker struct {
	source  Source
	pub     Publisher
	logger  *slog.Logger
	cadence time.Duration

	mu      sync.Mutex
	current *models.GeoPoint
	active  *watch
}

type watch struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

func NewTracker(source Source, pub Publisher, logger *slog.Logger) *Tracker {
	return &Tracker{source: source, pub: pub, logger: logger, cadence: defaultCadence}
}

// SetCadence overrides the watch sampling interval.
func (t *Tracker) SetCadence(d time.Duration) {
	if d > 0 {
		t.cadence = d
	}
}

// Current returns the latest fix, nil before the first sample.
func (t *Tracker) Current() *models.GeoPoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// GetOnce requests a single high-accuracy fix. Errors map onto the
// denied/unavailable/timeout taxonomy for user-facing messaging.
func (t *Tracker) GetOnce(ctx context.Context) (models.GeoPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, onceTimeout)
	defer cancel()
	fix, err := t.source.Fix(ctx, FixOptions{HighAccuracy: true, Timeout: onceTimeout, MaxAge: onceMaxAge})
	if err != nil {
		return models.GeoPoint{}, classify(err)
	}
	t.setCurrent(fix)
	return fix, nil
}

// StartWatch begins continuous sampling and returns a stop function.
// Calling it while a watch is active stops the old watch first, so there is
// never more than one. The stop function is safe to call repeatedly, even
// from inside onUpdate: after it returns no new delivery begins and an
// in-flight fix is discarded.
func (t *Tracker) StartWatch(onUpdate func(models.GeoPoint)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{cancel: cancel}

	t.mu.Lock()
	prev := t.active
	t.active = w
	t.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	go t.watchLoop(ctx, w, onUpdate)
	return w.stop
}

// StopWatch stops the active watch, if any.
func (t *Tracker) StopWatch() {
	t.mu.Lock()
	w := t.active
	t.active = nil
	t.mu.Unlock()
	if w != nil {
		w.stop()
	}
}

func (w *watch) stop() {
	w.cancel()
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}

func (t *Tracker) watchLoop(ctx context.Context, w *watch, onUpdate func(models.GeoPoint)) {
	for {
		fix, err := t.source.Fix(ctx, FixOptions{HighAccuracy: true, Timeout: watchTimeout, MaxAge: watchMaxAge})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.logger.Warn("watch fix failed", "error", err)
		} else {
			t.deliver(w, fix, onUpdate)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.cadence):
		}
	}
}

// deliver commits one fix. The stopped check is the admission point; the
// callback runs outside the lock so it may call the stop function (or
// StartWatch again) without deadlocking.
func (t *Tracker) deliver(w *watch, fix models.GeoPoint, onUpdate func(models.GeoPoint)) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	t.setCurrent(fix)
	if onUpdate != nil {
		onUpdate(fix)
	}
	if s := t.pub.Session(); s != nil && s.Role == models.RoleDriver {
		t.pub.Publish(models.EventUpdateLocation, models.LocationUpdate{DriverID: s.UserID, Location: fix})
		observability.PositionsPublished.Inc()
	}
}

func (t *Tracker) setCurrent(fix models.GeoPoint) {
	t.mu.Lock()
	t.current = &fix
	t.mu.Unlock()
}

func classify(err error) error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Timeout, Cause: err}
	}
	return &Error{Kind: Unavailable, Cause: err}
}
