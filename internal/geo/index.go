package geo

import (
	"sync"

	"github.com/example/inspection-dispatch/internal/models"
)

// Positions is the gateway's view of the driver-position table: at most one
// entry per driver, keyed, no history.
type Positions interface {
	Upsert(p models.DriverPosition)
	Remove(driverID string)
	Nearby(lat, lon float64, limit int) []models.DriverPosition
}

// Index is the in-memory Positions implementation.
type Index struct {
	mu        sync.RWMutex
	positions map[string]models.DriverPosition
}

func NewIndex() *Index {
	return &Index{positions: make(map[string]models.DriverPosition)}
}

func (g *Index) Upsert(p models.DriverPosition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positions[p.DriverID] = p
}

func (g *Index) Remove(driverID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.positions, driverID)
}

// naive scan; in prod use geo-hash or H3
func (g *Index) Nearby(lat, lon float64, limit int) []models.DriverPosition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	all := make([]models.DriverPosition, 0, len(g.positions))
	for _, p := range g.positions {
		all = append(all, p)
	}
	sorted := SortByDistance(&models.GeoPoint{Lat: lat, Lon: lon}, all, func(p models.DriverPosition) (float64, float64) {
		return p.Location.Lat, p.Location.Lon
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}
