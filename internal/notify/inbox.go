package notify

import (
	"context"
	"log/slog"

	"github.com/example/inspection-dispatch/internal/models"
)

// API is the notifications slice of the application REST client.
type API interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Inbox pairs the local store with the server copy. Local state mutates
// first; a failed sync is logged and absorbed, leaving the store in its
// last-known-good state rather than halting anything.
type Inbox struct {
	Store  *Store
	api    API
	logger *slog.Logger
}

func NewInbox(store *Store, api API, logger *slog.Logger) *Inbox {
	return &Inbox{Store: store, api: api, logger: logger}
}

// Refresh replaces the window with the server's view.
func (i *Inbox) Refresh(ctx context.Context) {
	items, err := i.api.Notifications(ctx)
	if err != nil {
		i.logger.Warn("notification sync failed", "op", "refresh", "error", err)
		return
	}
	i.Store.Replace(items)
}

func (i *Inbox) MarkRead(ctx context.Context, id string) {
	i.Store.MarkRead(id)
	if err := i.api.MarkNotificationRead(ctx, id); err != nil {
		i.logger.Warn("notification sync failed", "op", "mark_read", "id", id, "error", err)
	}
}

func (i *Inbox) MarkAllRead(ctx context.Context) {
	i.Store.MarkAllRead()
	if err := i.api.MarkAllNotificationsRead(ctx); err != nil {
		i.logger.Warn("notification sync failed", "op", "mark_all_read", "error", err)
	}
}

func (i *Inbox) Remove(ctx context.Context, id string) {
	i.Store.Remove(id)
	if err := i.api.DeleteNotification(ctx, id); err != nil {
		i.logger.Warn("notification sync failed", "op", "delete", "id", id, "error", err)
	}
}

// List proxies the store for UI consumers.
func (i *Inbox) List() []models.Notification { return i.Store.List() }

func (i *Inbox) UnreadCount() int { return i.Store.UnreadCount() }
