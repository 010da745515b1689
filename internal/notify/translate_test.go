package notify

import (
	"encoding/json"
	"testing"

	"github.com/example/inspection-dispatch/internal/models"
)

var driverSession = models.Session{UserID: "d1", Role: models.RoleDriver}

func offerEvent(t *testing.T, name, userID string, role models.Role) models.Event {
	t.Helper()
	data, err := json.Marshal(models.OfferPayload{Offer: models.DispatchOffer{
		ID:          "o1",
		ServiceType: "standard",
		Status:      models.OfferOpen,
		Location:    models.OfferLocation{Lat: 19.42, Lon: -99.14, Address: "Av. Reforma 100"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return models.Event{Name: name, UserID: userID, UserRole: role, Data: data}
}

func TestOfferCreatedTranslates(t *testing.T) {
	n, ok := FromEvent(offerEvent(t, models.EventAppointmentCreated, "", models.RoleDriver), driverSession)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n.OfferID != "o1" || n.Kind != models.EventAppointmentCreated {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestWrongAudienceProducesNothing(t *testing.T) {
	ev := offerEvent(t, models.EventAppointmentCreated, "someone-else", models.RoleClient)
	if _, ok := FromEvent(ev, driverSession); ok {
		t.Fatal("event addressed elsewhere must not produce a notification")
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	ev := offerEvent(t, models.EventAppointmentCancelled, "", "")
	if _, ok := FromEvent(ev, driverSession); !ok {
		t.Fatal("broadcast must produce a notification")
	}
}

func TestUserIDMatchSufficient(t *testing.T) {
	ev := offerEvent(t, models.EventAppointmentAssigned, "d1", models.RoleAdmin)
	if _, ok := FromEvent(ev, driverSession); !ok {
		t.Fatal("matching user id must admit regardless of role")
	}
}

func TestLocationStreamNotTranslated(t *testing.T) {
	data, _ := json.Marshal(models.LocationUpdate{DriverID: "d2"})
	ev := models.Event{Name: models.EventDriverLocation, Data: data}
	if _, ok := FromEvent(ev, driverSession); ok {
		t.Fatal("raw location events are not dispatch-relevant")
	}
}

func TestGenericNotificationPayload(t *testing.T) {
	data, _ := json.Marshal(models.NotificationPayload{Title: "Hi", Message: "there", Type: "info"})
	ev := models.Event{Name: models.EventNotification, Data: data}
	n, ok := FromEvent(ev, driverSession)
	if !ok || n.Title != "Hi" || n.Kind != "info" {
		t.Fatalf("unexpected translation %+v ok=%v", n, ok)
	}
}

func TestServerAssignedIDWins(t *testing.T) {
	data, _ := json.Marshal(struct {
		NotificationID string `json:"notification_id"`
		models.NotificationPayload
	}{"srv-1", models.NotificationPayload{Title: "Hi", Message: "m", Type: "info"}})
	ev := models.Event{Name: models.EventNotification, Data: data}
	n, _ := FromEvent(ev, driverSession)
	if n.ID != "srv-1" {
		t.Fatalf("expected server id as dedupe key, got %s", n.ID)
	}
}

func TestPaymentEventTranslatesWithServerID(t *testing.T) {
	data, _ := json.Marshal(struct {
		NotificationID string `json:"notification_id"`
		models.NotificationPayload
	}{"srv-9", models.NotificationPayload{Title: "Payment completed", Message: "m", Type: models.EventPaymentCompleted}})
	ev := models.Event{Name: models.EventPaymentCompleted, UserID: "d1", Data: data}
	n, ok := FromEvent(ev, driverSession)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n.ID != "srv-9" || n.Title != "Payment completed" {
		t.Fatalf("unexpected translation %+v", n)
	}
}

func TestRedeliveryCollapses(t *testing.T) {
	s := NewStore()
	ev := offerEvent(t, models.EventAppointmentCreated, "", models.RoleDriver)
	for i := 0; i < 3; i++ {
		if n, ok := FromEvent(ev, driverSession); ok {
			s.Add(n)
		}
	}
	if s.Len() != 1 {
		t.Fatalf("re-delivered duplicates must collapse, got %d", s.Len())
	}
}
