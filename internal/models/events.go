package models

import "encoding/json"

// Outbound event names (client -> gateway).
const (
	EventJoinUserRoom   = "join-user-room"
	EventJoinDriverRoom = "join-driver-room"
	EventUpdateLocation = "update-location"
)

// Inbound event names (gateway -> client).
const (
	EventAppointmentCreated   = "appointment-created"
	EventAppointmentUpdated   = "appointment-updated"
	EventAppointmentAssigned  = "appointment-assigned"
	EventAppointmentCancelled = "appointment-cancelled"
	EventPaymentCompleted     = "payment-completed"
	EventPaymentFailed        = "payment-failed"
	EventDriverLocation       = "driver-location-updated"
	EventNotification         = "notification"
)

// Event is the wire envelope for everything crossing the realtime channel.
// UserID and UserRole address the event; both empty means broadcast.
type Event struct {
	Name     string          `json:"event"`
	UserID   string          `json:"user_id,omitempty"`
	UserRole Role            `json:"user_role,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// AddressedTo reports whether the event is relevant to the session: the
// user id matches, or the role matches, or the event carries neither.
// This is the single admission rule gating every inbound event.
func (e Event) AddressedTo(s Session) bool {
	if e.UserID == "" && e.UserRole == "" {
		return true
	}
	if e.UserID != "" && e.UserID == s.UserID {
		return true
	}
	return e.UserRole != "" && e.UserRole == s.Role
}

// JoinRoom is the payload of the join-* events.
type JoinRoom struct {
	UserID string `json:"user_id"`
}

// LocationUpdate is the payload of update-location and
// driver-location-updated.
type LocationUpdate struct {
	DriverID string   `json:"driver_id"`
	Location GeoPoint `json:"location"`
}

// NotificationPayload is the payload of the generic notification event.
type NotificationPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// OfferPayload is the payload of the appointment-* events.
type OfferPayload struct {
	Offer DispatchOffer `json:"offer"`
}
