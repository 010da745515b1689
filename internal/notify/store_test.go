package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/example/inspection-dispatch/internal/models"
)

func note(id string) models.Notification {
	return models.Notification{ID: id, Kind: "notification", Title: "t", CreatedAt: time.Now()}
}

func TestCapacityBoundEvictsOldest(t *testing.T) {
	s := NewStore()
	for i := 0; i < 15; i++ {
		s.Add(note(fmt.Sprintf("n%d", i)))
	}
	if s.Len() != 10 {
		t.Fatalf("expected 10 held, got %d", s.Len())
	}
	got := s.List()
	// newest first: n14 .. n5
	if got[0].ID != "n14" || got[9].ID != "n5" {
		t.Fatalf("wrong window: first=%s last=%s", got[0].ID, got[9].ID)
	}
}

func TestEvictionIgnoresReadState(t *testing.T) {
	s := NewStoreWithCapacity(2)
	s.Add(note("a"))
	s.Add(note("b"))
	s.MarkRead("a")
	s.Add(note("c"))
	got := s.List()
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("expected oldest evicted regardless of read state, got %+v", got)
	}
}

func TestMarkAllReadZeroesUnread(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))
	s.Add(note("b"))
	s.MarkRead("a")
	s.MarkAllRead()
	if n := s.UnreadCount(); n != 0 {
		t.Fatalf("expected 0 unread, got %d", n)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))
	s.Add(note("b"))
	s.MarkRead("a")
	s.MarkRead("a")
	if n := s.UnreadCount(); n != 1 {
		t.Fatalf("expected 1 unread after double mark, got %d", n)
	}
}

func TestRemoveAdjustsUnread(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))
	s.Add(note("b"))
	s.MarkRead("a")

	s.Remove("a") // read: unread count untouched
	if n := s.UnreadCount(); n != 1 {
		t.Fatalf("expected 1 unread after removing read entry, got %d", n)
	}
	s.Remove("b") // unread: counter drops
	if n := s.UnreadCount(); n != 0 {
		t.Fatalf("expected 0 unread, got %d", n)
	}
}

func TestDuplicateIDDropped(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))
	s.Add(note("a"))
	if s.Len() != 1 {
		t.Fatalf("expected duplicate collapsed, got %d entries", s.Len())
	}
}

func TestReplaceRespectsCapacity(t *testing.T) {
	s := NewStoreWithCapacity(3)
	items := make([]models.Notification, 5)
	for i := range items {
		items[i] = note(fmt.Sprintf("n%d", i))
	}
	s.Replace(items)
	if s.Len() != 3 {
		t.Fatalf("expected capacity respected on replace, got %d", s.Len())
	}
	if got := s.List(); got[0].ID != "n4" {
		t.Fatalf("expected most recent retained, got %s", got[0].ID)
	}
}
