package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"campus-chat/models"
	"campus-chat/services"
)

type ctxKey int

const identityKey ctxKey = 0

// CallerIdentity returns the verified identity the auth middleware stored
// on the request.
func CallerIdentity(r *http.Request) (models.Identity, bool) {
	id, ok := r.Context().Value(identityKey).(models.Identity)
	return id, ok
}

type MessageHandler struct {
	svc     *services.MessageService
	authSvc *services.AuthService
	log     *slog.Logger
}

func NewMessageHandler(s *services.MessageService, a *services.AuthService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{svc: s, authSvc: a, log: log}
}

// WithAuth verifies the bearer token and stores the (id, role) identity in
// the request context. Everything behind it trusts that identity as given.
func (h *MessageHandler) WithAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			respondWithError(w, "Unauthorized", "Missing Authorization header (token only)", http.StatusUnauthorized)
			return
		}
		identity, err := h.authSvc.ParseToken(token)
		if err != nil {
			respondWithError(w, "Unauthorized", "Invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	}
}

type sendRequest struct {
	ReceiverID   int    `json:"receiver_id" validate:"required,min=1"`
	ReceiverRole string `json:"receiver_role" validate:"required,oneof=student faculty admin"`
	Content      string `json:"content" validate:"required"`
}

// Send handles POST /api/send.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r)
	if !ok {
		respondWithError(w, "Unauthorized", "No identity on request", http.StatusUnauthorized)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}

	receiver := models.Identity{ID: req.ReceiverID, Role: models.Role(req.ReceiverRole)}
	msg, err := h.svc.Send(caller, receiver, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			respondWithError(w, "Invalid request", err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("send failed", "caller", caller.String(), "error", err)
		respondWithError(w, "Send failed", "Message could not be stored", http.StatusInternalServerError)
		return
	}

	respondWithSuccess(w, msg)
}

// History handles GET /api/history/{counterpartId}?role=. Fetching history
// marks the counterpart's messages to the caller as read.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r)
	if !ok {
		respondWithError(w, "Unauthorized", "No identity on request", http.StatusUnauthorized)
		return
	}

	counterpart, ok := h.counterpartFromRequest(w, r)
	if !ok {
		return
	}

	msgs, err := h.svc.History(caller, counterpart)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			respondWithError(w, "Invalid request", err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("history fetch failed", "caller", caller.String(), "error", err)
		respondWithError(w, "History unavailable", "Could not fetch messages", http.StatusInternalServerError)
		return
	}

	respondWithSuccess(w, msgs)
}

// Conversations handles GET /api/conversations. A store failure degrades to
// an empty list on this endpoint, unlike history which surfaces the error.
func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r)
	if !ok {
		respondWithError(w, "Unauthorized", "No identity on request", http.StatusUnauthorized)
		return
	}

	summaries, err := h.svc.ListConversations(caller)
	if err != nil {
		h.log.Error("conversation list failed", "caller", caller.String(), "error", err)
		respondWithSuccess(w, []models.ConversationSummary{})
		return
	}

	respondWithSuccess(w, summaries)
}

type markReadRequest struct {
	SenderID   int    `json:"sender_id" validate:"required,min=1"`
	SenderRole string `json:"sender_role" validate:"required,oneof=student faculty admin"`
}

// MarkRead handles POST /api/mark-read: the explicit read acknowledgement,
// usable without opening the thread.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r)
	if !ok {
		respondWithError(w, "Unauthorized", "No identity on request", http.StatusUnauthorized)
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}

	sender := models.Identity{ID: req.SenderID, Role: models.Role(req.SenderRole)}
	if err := h.svc.MarkRead(caller, sender); err != nil {
		if errors.Is(err, services.ErrValidation) {
			respondWithError(w, "Invalid request", err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("mark read failed", "caller", caller.String(), "error", err)
		respondWithError(w, "Mark read failed", "Could not update read state", http.StatusInternalServerError)
		return
	}

	respondWithSuccess(w, map[string]bool{"marked": true})
}

func (h *MessageHandler) counterpartFromRequest(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	idStr := mux.Vars(r)["counterpartId"]
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		respondWithError(w, "Invalid parameter", "counterpartId must be a positive number", http.StatusBadRequest)
		return models.Identity{}, false
	}

	// Numeric ids repeat across roles, so the role is mandatory.
	role, err := models.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		respondWithError(w, "Invalid parameter", "role query parameter must be one of student, faculty, admin", http.StatusBadRequest)
		return models.Identity{}, false
	}

	return models.Identity{ID: id, Role: role}, true
}
