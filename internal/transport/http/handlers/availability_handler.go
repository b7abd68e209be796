package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mstanic/courtside/internal/service"
	"github.com/mstanic/courtside/internal/transport/http/middleware"
	"github.com/mstanic/courtside/pkg/validator"
)

type AvailabilityHandler struct {
	availService *service.AvailabilityService
}

func NewAvailabilityHandler(availService *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availService: availService}
}

func (h *AvailabilityHandler) CreatePattern(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.PatternInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidatePattern(input.DayOfWeek, input.StartLocal, input.EndLocal); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	p, err := h.availService.CreatePattern(r.Context(), userID, input)
	if err != nil {
		log.Printf("ERROR create pattern: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *AvailabilityHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	patterns, err := h.availService.ListPatterns(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR list patterns: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, patterns)
}

func (h *AvailabilityHandler) UpdatePattern(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	patternID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid pattern ID")
		return
	}

	var input service.PatternInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidatePattern(input.DayOfWeek, input.StartLocal, input.EndLocal); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	p, err := h.availService.UpdatePattern(r.Context(), userID, patternID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPatternNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Pattern not found")
		case errors.Is(err, service.ErrNotOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Pattern belongs to another player")
		default:
			log.Printf("ERROR update pattern: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *AvailabilityHandler) DeletePattern(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	patternID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid pattern ID")
		return
	}

	if err := h.availService.DeletePattern(r.Context(), userID, patternID); err != nil {
		switch {
		case errors.Is(err, service.ErrPatternNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Pattern not found")
		case errors.Is(err, service.ErrNotOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Pattern belongs to another player")
		default:
			log.Printf("ERROR delete pattern: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) AddBlock(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.ManualBlockInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	b, err := h.availService.AddManualBlock(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStartInPast):
			writeError(w, http.StatusBadRequest, "START_IN_PAST", "Block must start in the future")
		case errors.Is(err, service.ErrDuplicateBlock):
			writeError(w, http.StatusConflict, "DUPLICATE_SLOT", "A block already exists for this slot")
		default:
			log.Printf("ERROR add block: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *AvailabilityHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RANGE", err.Error())
		return
	}

	blocks, err := h.availService.ListBlocks(r.Context(), userID, from, to)
	if err != nil {
		log.Printf("ERROR list blocks: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, blocks)
}

func (h *AvailabilityHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	blockID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid block ID")
		return
	}

	if err := h.availService.DeleteBlock(r.Context(), userID, blockID); err != nil {
		switch {
		case errors.Is(err, service.ErrBlockNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Block not found")
		case errors.Is(err, service.ErrNotOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Block belongs to another player")
		default:
			log.Printf("ERROR delete block: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseTimeRange reads from/to query parameters in RFC 3339, defaulting to
// the next two weeks.
func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now, now.AddDate(0, 0, 14)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC 3339")
		}
		from = t.UTC()
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC 3339")
		}
		to = t.UTC()
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return from, to, nil
}
