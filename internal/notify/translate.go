package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/example/inspection-dispatch/internal/channel"
	"github.com/example/inspection-dispatch/internal/models"
)

// FromEvent translates one inbound channel event into at most one
// notification. Events failing the audience test, and event types that are
// not dispatch-relevant (the raw location stream), produce nothing.
func FromEvent(ev models.Event, session models.Session) (models.Notification, bool) {
	if !ev.AddressedTo(session) {
		return models.Notification{}, false
	}
	n := models.Notification{Kind: ev.Name, CreatedAt: time.Now()}
	switch ev.Name {
	case models.EventAppointmentCreated:
		offer, ok := decodeOffer(ev.Data)
		if !ok {
			return models.Notification{}, false
		}
		n.Title = "New job offer"
		n.Message = offer.ServiceType + " inspection at " + offer.Location.Address
		n.OfferID = offer.ID
	case models.EventAppointmentUpdated:
		offer, ok := decodeOffer(ev.Data)
		if !ok {
			return models.Notification{}, false
		}
		n.Title = "Appointment updated"
		n.Message = "Appointment " + offer.ID + " is now " + string(offer.Status)
		n.OfferID = offer.ID
	case models.EventAppointmentAssigned:
		offer, ok := decodeOffer(ev.Data)
		if !ok {
			return models.Notification{}, false
		}
		n.Title = "Appointment assigned"
		n.Message = "Appointment " + offer.ID + " has been assigned"
		n.OfferID = offer.ID
	case models.EventAppointmentCancelled:
		offer, ok := decodeOffer(ev.Data)
		if !ok {
			return models.Notification{}, false
		}
		n.Title = "Appointment cancelled"
		n.Message = "Appointment " + offer.ID + " was cancelled"
		n.OfferID = offer.ID
	case models.EventPaymentCompleted:
		n.Title = "Payment completed"
		n.Message = "Your payment went through"
	case models.EventPaymentFailed:
		n.Title = "Payment failed"
		n.Message = "Your payment could not be processed"
	case models.EventNotification:
		var p models.NotificationPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return models.Notification{}, false
		}
		n.Title = p.Title
		n.Message = p.Message
		if p.Type != "" {
			n.Kind = p.Type
		}
	default:
		return models.Notification{}, false
	}
	n.ID = dedupeKey(ev, n)
	return n, true
}

// dedupeKey prefers a server-assigned id carried in the payload; otherwise
// kind plus offer id, so a re-delivered duplicate collapses while distinct
// events never do.
func dedupeKey(ev models.Event, n models.Notification) string {
	var withID struct {
		NotificationID string `json:"notification_id"`
	}
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &withID); err == nil {
			if withID.NotificationID != "" {
				return withID.NotificationID
			}
		}
	}
	if n.OfferID != "" {
		return n.Kind + ":" + n.OfferID
	}
	return n.Kind + ":" + n.Title + ":" + n.Message
}

func decodeOffer(data json.RawMessage) (models.DispatchOffer, bool) {
	var p models.OfferPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Offer.ID == "" {
		return models.DispatchOffer{}, false
	}
	return p.Offer, true
}

// Bind subscribes the store to every dispatch-relevant inbound event.
// The returned set holds the disposers; releasing it detaches the store
// from the channel.
func Bind(conn *channel.Conn, store *Store, logger *slog.Logger) *channel.SubscriptionSet {
	subs := &channel.SubscriptionSet{}
	names := []string{
		models.EventAppointmentCreated,
		models.EventAppointmentUpdated,
		models.EventAppointmentAssigned,
		models.EventAppointmentCancelled,
		models.EventPaymentCompleted,
		models.EventPaymentFailed,
		models.EventNotification,
	}
	for _, name := range names {
		subs.Add(conn.Subscribe(name, func(ev models.Event) {
			s := conn.Session()
			if s == nil {
				return
			}
			if n, ok := FromEvent(ev, *s); ok {
				store.Add(n)
				logger.Debug("notification recorded", "kind", n.Kind, "id", n.ID)
			}
		}))
	}
	return subs
}
