// Package api provides the HTTP surface of the dx provisioning server.
// Authentication happens upstream; the caller's identity arrives in the X-User-ID header.
package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// UserHeader carries the authenticated user id.
const UserHeader = "X-User-ID"

// Handler holds dependencies for API handlers.
type Handler struct {
	subscriptions *provisioner.SubscriptionOrchestrator
	ingestion     *provisioner.IngestionOrchestrator
	logger        provisioner.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	subscriptions *provisioner.SubscriptionOrchestrator,
	ingestion *provisioner.IngestionOrchestrator,
	logger provisioner.Logger,
) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		ingestion:     ingestion,
		logger:        logger,
	}
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.logRequests)

	r.Get("/api/v1/health", h.HandleHealth)

	r.Route("/ngsi-ld/v1/subscription", func(r chi.Router) {
		r.Post("/", h.HandleCreateSubscription)
		r.Get("/", h.HandleListSubscriptions)
		r.Get("/{userID}/{alias}", h.HandleGetSubscription)
		r.Patch("/{userID}/{alias}", h.HandleAppendSubscription)
		r.Put("/{userID}/{alias}", h.HandleUpdateSubscription)
		r.Delete("/{userID}/{alias}", h.HandleDeleteSubscription)
	})

	r.Route("/ngsi-ld/v1/ingestion", func(r chi.Router) {
		r.Post("/", h.HandleRegisterAdapter)
		r.Get("/", h.HandleListAdapters)
		r.Post("/entities", h.HandlePublish)
		r.Get("/{exchange}", h.HandleGetAdapter)
		r.Delete("/{exchange}", h.HandleDeleteAdapter)
	})

	return r
}

// SubscriptionRequest is the body of subscription create, append and update calls.
type SubscriptionRequest struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Entities []string  `json:"entities"`
	Expiry   time.Time `json:"expiry"`
}

// AdapterRequest is the body of an adapter registration.
type AdapterRequest struct {
	Entities []string `json:"entities"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleCreateSubscription handles POST /ngsi-ld/v1/subscription
func (h *Handler) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req SubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Entities) != 1 {
		h.respondError(w, http.StatusBadRequest, "exactly one entity is required", provisioner.ErrCodeValidation)
		return
	}

	result, err := h.subscriptions.Create(r.Context(), provisioner.CreateSubscriptionRequest{
		UserID:   userID,
		EntityID: req.Entities[0],
		Name:     req.Name,
		Expiry:   req.Expiry,
		Type:     model.SubscriptionType(req.Type),
	})
	if err != nil {
		h.respondFailure(w, "Failed to create subscription", err)
		return
	}

	h.respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"id":         result.ID,
		"username":   result.Queue.UserID,
		"apiKey":     result.Queue.Password,
		"vhost":      result.Queue.VHost,
		"exchange":   result.Topology.ExchangeRoot,
		"routingKey": result.Topology.RoutingKey,
	}, "Subscription created")
}

// HandleListSubscriptions handles GET /ngsi-ld/v1/subscription
func (h *Handler) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	rows, err := h.subscriptions.ListForUser(r.Context(), userID)
	if err != nil {
		h.respondFailure(w, "Failed to list subscriptions", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, rows, "")
}

// HandleGetSubscription handles GET /ngsi-ld/v1/subscription/{userID}/{alias}
func (h *Handler) HandleGetSubscription(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireOwner(w, r); !ok {
		return
	}
	details, err := h.subscriptions.Get(r.Context(), queueName(r))
	if err != nil {
		h.respondFailure(w, "Failed to get subscription", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, details, "")
}

// HandleAppendSubscription handles PATCH /ngsi-ld/v1/subscription/{userID}/{alias}
func (h *Handler) HandleAppendSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	var req SubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Entities) != 1 {
		h.respondError(w, http.StatusBadRequest, "exactly one entity is required", provisioner.ErrCodeValidation)
		return
	}

	entity, err := h.subscriptions.Append(r.Context(), provisioner.AppendSubscriptionRequest{
		UserID:   userID,
		EntityID: req.Entities[0],
		Name:     chi.URLParam(r, "alias"),
		Expiry:   req.Expiry,
		Type:     model.SubscriptionType(req.Type),
	})
	if err != nil {
		h.respondFailure(w, "Failed to append subscription", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{"entities": []string{entity}}, "Subscription appended")
}

// HandleUpdateSubscription handles PUT /ngsi-ld/v1/subscription/{userID}/{alias}
func (h *Handler) HandleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireOwner(w, r); !ok {
		return
	}
	var req SubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Entities) != 1 {
		h.respondError(w, http.StatusBadRequest, "exactly one entity is required", provisioner.ErrCodeValidation)
		return
	}

	rec, err := h.subscriptions.Update(r.Context(), req.Entities[0], queueName(r), req.Expiry)
	if err != nil {
		h.respondFailure(w, "Failed to update subscription", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, rec, "Subscription updated")
}

// HandleDeleteSubscription handles DELETE /ngsi-ld/v1/subscription/{userID}/{alias}
func (h *Handler) HandleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	entities, err := h.subscriptions.Delete(r.Context(), queueName(r), userID)
	if err != nil {
		h.respondFailure(w, "Failed to delete subscription", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{"entities": entities}, "Subscription deleted")
}

// HandleRegisterAdapter handles POST /ngsi-ld/v1/ingestion
func (h *Handler) HandleRegisterAdapter(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req AdapterRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Entities) != 1 {
		h.respondError(w, http.StatusBadRequest, "exactly one entity is required", provisioner.ErrCodeValidation)
		return
	}

	result, err := h.ingestion.RegisterAdapter(r.Context(), req.Entities[0], userID)
	if err != nil {
		h.respondFailure(w, "Failed to register adapter", err)
		return
	}
	h.respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"id":       result.Topology.ExchangeRoot,
		"username": result.Exchange.UserID,
		"apiKey":   result.Exchange.Password,
		"vhost":    result.Exchange.VHost,
	}, "Adapter registered")
}

// HandleListAdapters handles GET /ngsi-ld/v1/ingestion?id={iid}
func (h *Handler) HandleListAdapters(w http.ResponseWriter, r *http.Request) {
	adapters, err := h.ingestion.ListAdaptersForUser(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.respondFailure(w, "Failed to list adapters", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, adapters, "")
}

// HandleGetAdapter handles GET /ngsi-ld/v1/ingestion/{exchange}
func (h *Handler) HandleGetAdapter(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.ingestion.GetAdapterDetails(r.Context(), pathParam(r, "exchange"))
	if err != nil {
		h.respondFailure(w, "Failed to get adapter", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, bindings, "")
}

// HandleDeleteAdapter handles DELETE /ngsi-ld/v1/ingestion/{exchange}
func (h *Handler) HandleDeleteAdapter(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.ingestion.DeleteAdapter(r.Context(), pathParam(r, "exchange"), userID); err != nil {
		h.respondFailure(w, "Failed to delete adapter", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, nil, "Adapter deleted")
}

// HandlePublish handles POST /ngsi-ld/v1/ingestion/entities
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var batch model.DataBatch
	if !h.decode(w, r, &batch) {
		return
	}

	if err := h.ingestion.PublishDataFromAdapter(r.Context(), batch); err != nil {
		h.respondFailure(w, "Failed to publish data", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, nil, "Data published")
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}, "")
}

// StatusFor maps a provisioning error kind onto an HTTP status.
func StatusFor(err error) int {
	switch provisioner.CodeOf(err) {
	case provisioner.ErrCodeConflict:
		return http.StatusConflict
	case provisioner.ErrCodeNotFound:
		return http.StatusNotFound
	case provisioner.ErrCodeValidation, provisioner.ErrCodeInvalidCatalogueData:
		return http.StatusBadRequest
	case provisioner.ErrCodeBroker:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queueName(r *http.Request) string {
	return model.QueueNameFor(chi.URLParam(r, "userID"), chi.URLParam(r, "alias"))
}

func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(UserHeader)
	if userID == "" {
		h.respondError(w, http.StatusUnauthorized, UserHeader+" header is required", "UNAUTHORIZED")
		return "", false
	}
	return userID, true
}

// requireOwner admits only the user the queue in the path belongs to.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return "", false
	}
	if userID != chi.URLParam(r, "userID") {
		h.respondError(w, http.StatusForbidden, "subscription belongs to another user", "FORBIDDEN")
		return "", false
	}
	return userID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return false
	}
	return true
}

// respondFailure logs err and sends the response matching its kind.
func (h *Handler) respondFailure(w http.ResponseWriter, message string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s: %v", message, err)
	} else {
		h.logger.Debugf("%s: %v", message, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    provisioner.CodeOf(err),
		Message: err.Error(),
	})
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// logRequests logs HTTP requests.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
