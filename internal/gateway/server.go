package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/inspection-dispatch/internal/auth"
	"github.com/example/inspection-dispatch/internal/geo"
	"github.com/example/inspection-dispatch/internal/ingest"
	"github.com/example/inspection-dispatch/internal/models"
	"github.com/example/inspection-dispatch/internal/observability"
	"github.com/example/inspection-dispatch/internal/payments"
	"github.com/example/inspection-dispatch/internal/storage"
)

// booking is the gateway-side bookkeeping an offer needs beyond what
// drivers see: who booked it and the payment hold to settle.
type booking struct {
	clientID        string
	paymentIntentID string
}

type Server struct {
	Hub           *Hub
	Positions     geo.Positions
	Offers        *OfferRegistry
	Notifications storage.NotificationStore
	Kafka         *ingest.KafkaProducer
	Payments      payments.Client
	Auth          *auth.Manager

	logger *slog.Logger
	mux    *mux.Router

	bookMu   sync.Mutex
	bookings map[string]booking
}

func NewServer(authMgr *auth.Manager, positions geo.Positions, notifications storage.NotificationStore, logger *slog.Logger) *Server {
	s := &Server{
		Hub:           NewHub(logger),
		Positions:     positions,
		Offers:        NewOfferRegistry(),
		Notifications: notifications,
		Auth:          authMgr,
		logger:        logger,
		mux:           mux.NewRouter(),
		bookings:      make(map[string]booking),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/available-appointments", s.handleAvailable).Methods("GET")
	api.HandleFunc("/appointments", s.handleCreate).Methods("POST")
	api.HandleFunc("/appointments/{id}", s.handleUpdate).Methods("PUT")
	api.HandleFunc("/appointments/{id}/accept", s.handleAccept).Methods("POST")
	api.HandleFunc("/appointments/{id}/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/appointments/{id}/complete", s.handleComplete).Methods("POST")
	api.HandleFunc("/drivers/{id}/online-status", s.handleOnlineStatus).Methods("POST")
	api.HandleFunc("/notifications", s.handleListNotifications).Methods("GET")
	api.HandleFunc("/notifications", s.handleSendNotification).Methods("POST")
	api.HandleFunc("/notifications/read-all", s.handleMarkAllRead).Methods("PUT")
	api.HandleFunc("/notifications/{id}/read", s.handleMarkRead).Methods("PUT")
	api.HandleFunc("/notifications/{id}", s.handleDeleteNotification).Methods("DELETE")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	session, err := s.Auth.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := s.Hub.Register(conn, session)
	if session.Role == models.RoleDriver {
		observability.DriversOnline.Inc()
	}
	go s.readLoop(client, session)
}

func (s *Server) readLoop(client *Client, session models.Session) {
	defer func() {
		s.Hub.Unregister(client)
		if session.Role == models.RoleDriver {
			observability.DriversOnline.Dec()
			s.Positions.Remove(session.UserID)
		}
	}()
	for {
		var ev models.Event
		if err := client.conn.ReadJSON(&ev); err != nil {
			return
		}
		s.handleInbound(client, session, ev)
	}
}

func (s *Server) handleInbound(client *Client, session models.Session, ev models.Event) {
	switch ev.Name {
	case models.EventJoinUserRoom:
		// Claims already enrolled the user room; honored as a no-op so
		// older clients that send it explicitly keep working.
		client.join(userRoom(session.UserID))
	case models.EventJoinDriverRoom:
		if session.Role == models.RoleDriver {
			client.join(roleRoom(models.RoleDriver))
		}
	case models.EventUpdateLocation:
		if session.Role != models.RoleDriver {
			return
		}
		var p models.LocationUpdate
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			s.logger.Warn("malformed location update", "user_id", session.UserID, "error", err)
			return
		}
		pos := models.DriverPosition{DriverID: session.UserID, Location: p.Location}
		s.Positions.Upsert(pos)
		if s.Kafka != nil {
			if err := s.Kafka.PublishPosition(pos); err != nil {
				s.logger.Warn("kafka publish failed", "driver_id", session.UserID, "error", err)
			}
		}
		update := models.LocationUpdate{DriverID: session.UserID, Location: p.Location}
		s.emitJSON(models.EventDriverLocation, "", models.RoleAdmin, update)
		// Clients with an active booking track their assigned driver.
		for _, offerID := range s.Offers.AcceptedBy(session.UserID) {
			if clientID := s.clientFor(offerID); clientID != "" {
				s.emitJSON(models.EventDriverLocation, clientID, "", update)
			}
		}
	}
}

// emitJSON marshals a payload into the addressed envelope and fans it out.
func (s *Server) emitJSON(name, userID string, role models.Role, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("event marshal failed", "event", name, "error", err)
		return
	}
	s.Hub.Emit(models.Event{Name: name, UserID: userID, UserRole: role, Data: data})
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"appointments": s.Offers.ListOpen()})
}

type createRequest struct {
	ServiceType   string               `json:"service_type"`
	Location      models.OfferLocation `json:"location"`
	ScheduledAt   time.Time            `json:"scheduled_at"`
	EstimatedCost float64              `json:"estimated_cost"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offer := models.DispatchOffer{
		ID:            uuid.NewString(),
		ServiceType:   req.ServiceType,
		Location:      req.Location,
		ScheduledAt:   req.ScheduledAt,
		EstimatedCost: req.EstimatedCost,
		Status:        models.OfferOpen,
	}

	b := booking{clientID: session.UserID}
	if s.Payments != nil && req.EstimatedCost > 0 {
		piID, err := s.Payments.Hold(r.Context(), int64(req.EstimatedCost*100), "usd", session.UserID)
		if err != nil {
			s.logger.Warn("payment hold failed", "offer_id", offer.ID, "error", err)
			s.persistAndEmit(models.EventPaymentFailed, session.UserID, "", offer.ID)
			http.Error(w, "payment hold failed", http.StatusPaymentRequired)
			return
		}
		b.paymentIntentID = piID
	}

	s.Offers.Put(offer)
	s.bookMu.Lock()
	s.bookings[offer.ID] = b
	s.bookMu.Unlock()

	s.emitJSON(models.EventAppointmentCreated, "", models.RoleDriver, models.OfferPayload{Offer: offer})
	s.logger.Info("appointment created", "offer_id", offer.ID, "client_id", session.UserID)
	writeJSON(w, http.StatusCreated, map[string]any{"appointment": offer})
}

// handleUpdate reschedules or reprices a booking. Drivers watching the open
// set learn about it through the appointment-updated fan-out.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	id := mux.Vars(r)["id"]
	if session.Role != models.RoleAdmin && s.clientFor(id) != session.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offer, err := s.Offers.Update(id, func(o *models.DispatchOffer) {
		if req.ServiceType != "" {
			o.ServiceType = req.ServiceType
		}
		if !req.ScheduledAt.IsZero() {
			o.ScheduledAt = req.ScheduledAt
		}
		if req.EstimatedCost > 0 {
			o.EstimatedCost = req.EstimatedCost
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	payload := models.OfferPayload{Offer: offer}
	s.emitJSON(models.EventAppointmentUpdated, "", models.RoleDriver, payload)
	if clientID := s.clientFor(id); clientID != "" && clientID != session.UserID {
		s.emitJSON(models.EventAppointmentUpdated, clientID, "", payload)
	}
	s.logger.Info("appointment updated", "offer_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"appointment": offer})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if session.Role != models.RoleDriver {
		http.Error(w, "drivers only", http.StatusForbidden)
		return
	}
	id := mux.Vars(r)["id"]
	offer, err := s.Offers.Accept(id, session.UserID)
	switch err {
	case nil:
	case ErrOfferUnknown:
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	default:
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	payload := models.OfferPayload{Offer: offer}
	// Losing drivers see a status that is no longer open and drop the
	// offer; the winner and the booking client are addressed directly.
	s.emitJSON(models.EventAppointmentAssigned, "", models.RoleDriver, payload)
	if clientID := s.clientFor(id); clientID != "" {
		s.emitJSON(models.EventAppointmentAssigned, clientID, "", payload)
		s.persistAndEmit(models.EventAppointmentAssigned, clientID, "A driver accepted your inspection", id)
	}
	s.logger.Info("appointment accepted", "offer_id", id, "driver_id", session.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"appointment": offer})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	offer, err := s.Offers.Cancel(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if pi := s.paymentFor(id); pi != "" && s.Payments != nil {
		if err := s.Payments.Cancel(r.Context(), pi); err != nil {
			s.logger.Warn("payment release failed", "offer_id", id, "error", err)
		}
	}

	payload := models.OfferPayload{Offer: offer}
	s.emitJSON(models.EventAppointmentCancelled, "", models.RoleDriver, payload)
	if clientID := s.clientFor(id); clientID != "" {
		s.emitJSON(models.EventAppointmentCancelled, clientID, "", payload)
	}
	s.logger.Info("appointment cancelled", "offer_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"appointment": offer})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	offer, ok := s.Offers.Get(id)
	if !ok {
		http.Error(w, "offer unknown", http.StatusNotFound)
		return
	}
	clientID := s.clientFor(id)

	if pi := s.paymentFor(id); pi != "" && s.Payments != nil {
		if err := s.Payments.Capture(r.Context(), pi); err != nil {
			s.logger.Warn("payment capture failed", "offer_id", id, "error", err)
			s.persistAndEmit(models.EventPaymentFailed, clientID, "Your payment could not be processed", id)
			http.Error(w, "payment capture failed", http.StatusPaymentRequired)
			return
		}
	}
	s.persistAndEmit(models.EventPaymentCompleted, clientID, "Your payment went through", id)
	writeJSON(w, http.StatusOK, map[string]any{"appointment": offer})
}

func (s *Server) handleOnlineStatus(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	id := mux.Vars(r)["id"]
	if session.UserID != id && session.Role != models.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req struct {
		Online bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Online {
		s.Positions.Remove(id)
	}
	s.logger.Info("online status", "driver_id", id, "online", req.Online)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	items, err := s.Notifications.List(session.UserID)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

type sendNotificationRequest struct {
	UserID   string `json:"user_id,omitempty"`
	UserRole string `json:"user_role,omitempty"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
}

// handleSendNotification lets the portal push a generic notification at a
// user, a role, or everyone.
func (s *Server) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if session.Role != models.RoleAdmin {
		http.Error(w, "admins only", http.StatusForbidden)
		return
	}
	var req sendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		Kind:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		CreatedAt: time.Now(),
	}
	if req.UserID != "" {
		if err := s.Notifications.Insert(req.UserID, n); err != nil {
			s.logger.Warn("notification insert failed", "error", err)
		}
	}
	data, _ := json.Marshal(struct {
		NotificationID string `json:"notification_id"`
		models.NotificationPayload
	}{n.ID, models.NotificationPayload{Title: req.Title, Message: req.Message, Type: req.Type}})
	s.Hub.Emit(models.Event{Name: models.EventNotification, UserID: req.UserID, UserRole: models.Role(req.UserRole), Data: data})
	writeJSON(w, http.StatusCreated, map[string]any{"notification": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if err := s.Notifications.MarkRead(session.UserID, mux.Vars(r)["id"]); err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if err := s.Notifications.MarkAllRead(session.UserID); err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if err := s.Notifications.Delete(session.UserID, mux.Vars(r)["id"]); err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// persistAndEmit writes a notification for one user and pushes the outcome
// at them under the event's own name, so subscribers keyed by event type
// (payment-completed, payment-failed) see it. Used for outcomes that must
// survive the user being offline.
func (s *Server) persistAndEmit(kind, userID, message, offerID string) {
	if userID == "" {
		return
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     titleFor(kind),
		Message:   message,
		OfferID:   offerID,
		CreatedAt: time.Now(),
	}
	if err := s.Notifications.Insert(userID, n); err != nil {
		s.logger.Warn("notification insert failed", "user_id", userID, "error", err)
	}
	data, _ := json.Marshal(struct {
		NotificationID string `json:"notification_id"`
		OfferID        string `json:"offer_id,omitempty"`
		models.NotificationPayload
	}{n.ID, offerID, models.NotificationPayload{Title: n.Title, Message: message, Type: kind}})
	s.Hub.Emit(models.Event{Name: kind, UserID: userID, Data: data})
}

func titleFor(kind string) string {
	switch kind {
	case models.EventPaymentCompleted:
		return "Payment completed"
	case models.EventPaymentFailed:
		return "Payment failed"
	case models.EventAppointmentAssigned:
		return "Appointment assigned"
	default:
		return "Notification"
	}
}

func (s *Server) clientFor(offerID string) string {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()
	return s.bookings[offerID].clientID
}

func (s *Server) paymentFor(offerID string) string {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()
	return s.bookings[offerID].paymentIntentID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
