package position

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/inspection-dispatch/internal/models"
)

type fakeSource struct {
	mu    sync.Mutex
	fix   models.GeoPoint
	err   error
	calls int
	block bool // honor ctx instead of returning
}

func (f *fakeSource) Fix(ctx context.Context, opts FixOptions) (models.GeoPoint, error) {
	f.mu.Lock()
	f.calls++
	fix, err, block := f.fix, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return models.GeoPoint{}, ctx.Err()
	}
	if err != nil {
		return models.GeoPoint{}, err
	}
	return fix, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu      sync.Mutex
	session *models.Session
	events  []string
}

func (p *fakePublisher) Publish(name string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
}

func (p *fakePublisher) Session() *models.Session { return p.session }

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newTestTracker(src Source, session *models.Session) (*Tracker, *fakePublisher) {
	pub := &fakePublisher{session: session}
	tr := NewTracker(src, pub, slog.Default())
	tr.SetCadence(5 * time.Millisecond)
	return tr, pub
}

func TestGetOnceStoresCurrent(t *testing.T) {
	src := &fakeSource{fix: models.GeoPoint{Lat: 1, Lon: 2, CapturedAt: time.Now()}}
	tr, _ := newTestTracker(src, &models.Session{UserID: "d1", Role: models.RoleDriver})
	fix, err := tr.GetOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fix.Lat != 1 || tr.Current() == nil || tr.Current().Lat != 1 {
		t.Fatal("fix not recorded as current")
	}
}

func TestGetOncePositionErrorPassesThrough(t *testing.T) {
	src := &fakeSource{err: &Error{Kind: Denied}}
	tr, _ := newTestTracker(src, nil)
	_, err := tr.GetOnce(context.Background())
	if KindOf(err) != Denied {
		t.Fatalf("expected denied, got %v", err)
	}
}

func TestGetOnceUnknownErrorIsUnavailable(t *testing.T) {
	src := &fakeSource{err: errors.New("gps down")}
	tr, _ := newTestTracker(src, nil)
	_, err := tr.GetOnce(context.Background())
	if KindOf(err) != Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestGetOnceTimeout(t *testing.T) {
	src := &fakeSource{block: true}
	tr, _ := newTestTracker(src, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := tr.GetOnce(ctx)
	if KindOf(err) != Timeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestWatchDeliversAndPublishesForDriver(t *testing.T) {
	src := &fakeSource{fix: models.GeoPoint{Lat: 3, CapturedAt: time.Now()}}
	tr, pub := newTestTracker(src, &models.Session{UserID: "d1", Role: models.RoleDriver})

	var updates atomic.Int32
	stop := tr.StartWatch(func(models.GeoPoint) { updates.Add(1) })
	defer stop()

	deadline := time.Now().Add(time.Second)
	for updates.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if updates.Load() == 0 {
		t.Fatal("no watch updates")
	}
	evs := pub.published()
	if len(evs) == 0 || evs[0] != models.EventUpdateLocation {
		t.Fatalf("expected update-location publish, got %v", evs)
	}
}

func TestWatchDoesNotPublishForClient(t *testing.T) {
	src := &fakeSource{fix: models.GeoPoint{Lat: 3, CapturedAt: time.Now()}}
	tr, pub := newTestTracker(src, &models.Session{UserID: "c1", Role: models.RoleClient})

	var updates atomic.Int32
	stop := tr.StartWatch(func(models.GeoPoint) { updates.Add(1) })
	defer stop()

	deadline := time.Now().Add(time.Second)
	for updates.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := pub.published(); len(got) != 0 {
		t.Fatalf("client fixes must not be published, got %v", got)
	}
}

func TestStopPreventsFurtherDelivery(t *testing.T) {
	src := &fakeSource{fix: models.GeoPoint{Lat: 3, CapturedAt: time.Now()}}
	tr, _ := newTestTracker(src, nil)

	var updates atomic.Int32
	stop := tr.StartWatch(func(models.GeoPoint) { updates.Add(1) })

	deadline := time.Now().Add(time.Second)
	for updates.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	stop()
	stop() // safe to call again
	// let a delivery that began before stop drain, then demand silence
	time.Sleep(10 * time.Millisecond)
	n := updates.Load()
	time.Sleep(30 * time.Millisecond)
	if updates.Load() != n {
		t.Fatal("delivery continued after stop returned")
	}
}

func TestStopFromWithinCallback(t *testing.T) {
	src := &fakeSource{fix: models.GeoPoint{Lat: 3, CapturedAt: time.Now()}}
	tr, _ := newTestTracker(src, nil)

	var updates atomic.Int32
	done := make(chan struct{})
	ready := make(chan struct{})
	var stop func()
	stop = tr.StartWatch(func(models.GeoPoint) {
		if updates.Add(1) == 1 {
			<-ready
			stop()
			close(done)
		}
	})
	close(ready)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop called from onUpdate deadlocked")
	}
	time.Sleep(30 * time.Millisecond)
	if updates.Load() != 1 {
		t.Fatalf("delivery continued after reentrant stop: %d", updates.Load())
	}
}

func TestRestartFromWithinCallback(t *testing.T) {
	src := &fakeSource{fix: models.GeoPoint{Lat: 3, CapturedAt: time.Now()}}
	tr, _ := newTestTracker(src, nil)

	done := make(chan struct{})
	var once sync.Once
	tr.StartWatch(func(models.GeoPoint) {
		once.Do(func() {
			// replacing the watch stops this one; must not deadlock
			stop2 := tr.StartWatch(nil)
			stop2()
			close(done)
		})
	})
	defer tr.StopWatch()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartWatch from onUpdate deadlocked")
	}
}

func TestStartWatchIdempotent(t *testing.T) {
	src := &fakeSource{fix: models.GeoPoint{Lat: 3, CapturedAt: time.Now()}}
	tr, pub := newTestTracker(src, &models.Session{UserID: "d1", Role: models.RoleDriver})
	tr.SetCadence(10 * time.Millisecond)

	stop1 := tr.StartWatch(nil)
	stop2 := tr.StartWatch(nil)
	defer stop2()
	_ = stop1

	time.Sleep(55 * time.Millisecond)
	tr.StopWatch()
	// one loop at ~10ms cadence publishes roughly 5 times in 55ms; two
	// stacked loops would publish roughly twice that
	if n := len(pub.published()); n > 8 {
		t.Fatalf("watch duplicated after restart: %d publishes", n)
	}
}
