package models

import "time"

type Role string

const (
	RoleClient Role = "client"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Session is issued by the auth collaborator; the dispatch core only
// borrows it to key the realtime channel and the audience test.
type Session struct {
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	AuthToken string `json:"-"`
}

// GeoPoint is a single geolocation fix. Immutable once captured; a new
// sample supersedes it, nothing mutates it in place.
type GeoPoint struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AccuracyM  float64   `json:"accuracy_m,omitempty"`
	HeadingDeg *float64  `json:"heading_deg,omitempty"`
	SpeedMps   *float64  `json:"speed_mps,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

type OfferStatus string

const (
	OfferOpen      OfferStatus = "open"
	OfferAccepted  OfferStatus = "accepted"
	OfferCancelled OfferStatus = "cancelled"
)

// OfferLocation is where the inspection takes place.
type OfferLocation struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address,omitempty"`
}

// DispatchOffer is an inspection appointment visible to drivers as
// available for acceptance.
type DispatchOffer struct {
	ID            string        `json:"id"`
	ServiceType   string        `json:"service_type"`
	Location      OfferLocation `json:"location"`
	ScheduledAt   time.Time     `json:"scheduled_at"`
	EstimatedCost float64       `json:"estimated_cost"`
	Status        OfferStatus   `json:"status"`
	DriverID      string        `json:"driver_id,omitempty"`
}

// Notification is a user-facing record of an inbound dispatch event.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OfferID   string    `json:"offer_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// DriverPosition is the latest known fix for one driver. The gateway keeps
// at most one entry per driver; no history.
type DriverPosition struct {
	DriverID string   `json:"driver_id"`
	Location GeoPoint `json:"location"`
}

// PresenceState is the driver's online/offline toggle.
type PresenceState struct {
	Online        bool      `json:"online"`
	LastToggledAt time.Time `json:"last_toggled_at"`
}
