package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/inspection-dispatch/internal/models"
)

// StatusError carries a non-2xx application API response. Callers that need
// to distinguish outcomes (the offer manager's accept path) inspect Code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Code, e.Body)
}

// Client talks to the application API. No call is retried here; retry
// policy belongs to the callers named in the dispatch design.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   func() string
}

// NewClient builds a client for baseURL. token supplies the current session
// credential per request so a re-login is picked up without rebuilding the
// client.
func NewClient(baseURL string, token func() string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		token:   token,
	}
}

// AvailableAppointments fetches the initial batch of open offers.
func (c *Client) AvailableAppointments(ctx context.Context) ([]models.DispatchOffer, error) {
	var out struct {
		Appointments []models.DispatchOffer `json:"appointments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/available-appointments", nil, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

// AcceptAppointment claims an offer. The server is authoritative: a 409
// means another driver already won it.
func (c *Client) AcceptAppointment(ctx context.Context, id string) (models.DispatchOffer, error) {
	var out struct {
		Appointment models.DispatchOffer `json:"appointment"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/appointments/"+id+"/accept", nil, &out)
	return out.Appointment, err
}

// SetOnlineStatus records the driver's presence flag server-side.
func (c *Client) SetOnlineStatus(ctx context.Context, driverID string, online bool) error {
	body := map[string]bool{"online": online}
	return c.do(ctx, http.MethodPost, "/api/v1/drivers/"+driverID+"/online-status", body, nil)
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/"+id+"/read", nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/read-all", nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/notifications/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if t := c.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
