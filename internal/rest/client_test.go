package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/inspection-dispatch/internal/models"
)

func TestAvailableAppointments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/available-appointments" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("missing bearer token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"appointments": []models.DispatchOffer{{ID: "o1", Status: models.OfferOpen}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, func() string { return "tok" })
	got, err := c.AvailableAppointments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "o1" {
		t.Fatalf("unexpected batch: %+v", got)
	}
}

func TestAcceptConflictSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "offer already taken", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.AcceptAppointment(context.Background(), "o1")
	serr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if serr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", serr.Code)
	}
}

func TestSetOnlineStatusBody(t *testing.T) {
	var got struct {
		Online bool `json:"online"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/drivers/d1/online-status" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if err := c.SetOnlineStatus(context.Background(), "d1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Online {
		t.Fatal("online flag not sent")
	}
}

func TestNotificationRoutes(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]any{"notifications": []models.Notification{{ID: "n1"}}})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	if items, err := c.Notifications(ctx); err != nil || len(items) != 1 {
		t.Fatalf("list: %v %v", items, err)
	}
	if err := c.MarkNotificationRead(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkAllNotificationsRead(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteNotification(ctx, "n1"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"GET /api/v1/notifications",
		"PUT /api/v1/notifications/n1/read",
		"PUT /api/v1/notifications/read-all",
		"DELETE /api/v1/notifications/n1",
	}
	for i, w := range want {
		if calls[i] != w {
			t.Fatalf("call %d: got %s want %s", i, calls[i], w)
		}
	}
}
