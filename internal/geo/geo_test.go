package geo

import (
	"testing"

	"github.com/example/inspection-dispatch/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := Haversine(19.4326, -99.1332, 19.6, -99.3)
	b := Haversine(19.6, -99.3, 19.4326, -99.1332)
	if a != b {
		t.Fatalf("expected symmetric distance, got %f vs %f", a, b)
	}
}

func TestIsWithinRadius(t *testing.T) {
	origin := &models.GeoPoint{Lat: 19.4326, Lon: -99.1332}
	// ~1.8km away, inside a 20km radius
	if !IsWithinRadius(origin, 19.42, -99.14, 20) {
		t.Fatal("nearby offer should be retained")
	}
	// ~23km away, outside
	if IsWithinRadius(origin, 19.6, -99.3, 20) {
		t.Fatal("far offer should be excluded")
	}
}

func TestIsWithinRadiusNoFixPassesThrough(t *testing.T) {
	if !IsWithinRadius(nil, 19.6, -99.3, 20) {
		t.Fatal("no fix must not exclude")
	}
}

func TestSortByDistanceNearestFirst(t *testing.T) {
	origin := &models.GeoPoint{Lat: 0, Lon: 0}
	offers := []models.DispatchOffer{
		{ID: "far", Location: models.OfferLocation{Lat: 1, Lon: 1}},
		{ID: "near", Location: models.OfferLocation{Lat: 0.1, Lon: 0.1}},
	}
	got := SortByDistance(origin, offers, func(o models.DispatchOffer) (float64, float64) {
		return o.Location.Lat, o.Location.Lon
	})
	if got[0].ID != "near" || got[1].ID != "far" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	// input must be left untouched
	if offers[0].ID != "far" {
		t.Fatal("input slice mutated")
	}
}

func TestSortByDistanceNoFixKeepsOrder(t *testing.T) {
	offers := []models.DispatchOffer{{ID: "a"}, {ID: "b"}}
	got := SortByDistance(nil, offers, func(o models.DispatchOffer) (float64, float64) {
		return o.Location.Lat, o.Location.Lon
	})
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatal("order changed without an origin")
	}
}

func TestIndexUpsertRemoveNearby(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.DriverPosition{DriverID: "d1", Location: models.GeoPoint{Lat: 0.1, Lon: 0.1}})
	idx.Upsert(models.DriverPosition{DriverID: "d2", Location: models.GeoPoint{Lat: 1, Lon: 1}})
	idx.Upsert(models.DriverPosition{DriverID: "d1", Location: models.GeoPoint{Lat: 0.2, Lon: 0.2}})

	got := idx.Nearby(0, 0, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].DriverID != "d1" || got[0].Location.Lat != 0.2 {
		t.Fatalf("expected latest d1 sample first, got %+v", got[0])
	}

	idx.Remove("d1")
	got = idx.Nearby(0, 0, 10)
	if len(got) != 1 || got[0].DriverID != "d2" {
		t.Fatalf("expected only d2 after remove, got %+v", got)
	}
}
