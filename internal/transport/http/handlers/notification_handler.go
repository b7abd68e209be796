package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mstanic/courtside/internal/service"
	"github.com/mstanic/courtside/internal/transport/http/middleware"
	"github.com/mstanic/courtside/pkg/validator"
)

type NotificationHandler struct {
	notifService *service.NotificationService
}

func NewNotificationHandler(notifService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifService: notifService}
}

func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	prefs, err := h.notifService.GetPreferences(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR get preferences: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.PreferencesInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateQuietHours(input.QuietStart, input.QuietEnd); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	prefs, err := h.notifService.UpdatePreferences(r.Context(), userID, input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuietHours) {
			writeError(w, http.StatusBadRequest, "INVALID_QUIET_HOURS", "Quiet hours must fall within a single day")
			return
		}
		log.Printf("ERROR update preferences: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}
