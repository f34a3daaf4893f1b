package handlers

import (
	"log/slog"
	"net/http"

	"campus-chat/services"
	"campus-chat/ws"
)

type WSHandler struct {
	hub     *ws.Hub
	authSvc *services.AuthService
	msgSvc  *services.MessageService
	log     *slog.Logger
}

func NewWSHandler(h *ws.Hub, a *services.AuthService, m *services.MessageService, log *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, authSvc: a, msgSvc: m, log: log}
}

// WS handles GET /ws?token=. The same verified credential used on the REST
// surface is required at connect time; the connection's identity is derived
// from it server-side and client events can only speak as that identity.
func (h *WSHandler) WS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondWithError(w, "Missing parameter", "token query parameter is required", http.StatusBadRequest)
		return
	}

	identity, err := h.authSvc.ParseToken(token)
	if err != nil {
		h.log.Warn("websocket connection rejected", "remote", r.RemoteAddr, "error", err)
		respondWithError(w, "Unauthorized", "Invalid token", http.StatusUnauthorized)
		return
	}

	h.hub.ServeWS(w, r, identity, h.msgSvc)
}
