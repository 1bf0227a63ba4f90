package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/sovaehr/internal/auth"
	"github.com/dukerupert/sovaehr/internal/notify"
)

type NotificationHandler struct {
	toasts *notify.Center
	logger *slog.Logger
}

func NewNotificationHandler(toasts *notify.Center, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{toasts: toasts, logger: logger}
}

// Dismiss closes a toast the user clicked away.
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	err := h.toasts.Close(auth.ClientID(r.Context()), r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, notify.ErrUnknownID):
		http.Error(w, "notification not found", http.StatusNotFound)
	case errors.Is(err, notify.ErrNotClosable):
		http.Error(w, "notification cannot be dismissed", http.StatusConflict)
	default:
		h.logger.Error("dismiss notification", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
