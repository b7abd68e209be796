package handlers

import (
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/mstanic/courtside/internal/service"
	"github.com/mstanic/courtside/internal/transport/http/middleware"
)

type OverlapHandler struct {
	overlapService *service.OverlapService
}

func NewOverlapHandler(overlapService *service.OverlapService) *OverlapHandler {
	return &OverlapHandler{overlapService: overlapService}
}

// SharedSlots returns the mutual free slots between the caller and one
// other player.
func (h *OverlapHandler) SharedSlots(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid player ID")
		return
	}

	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RANGE", err.Error())
		return
	}

	slots, err := h.overlapService.FreeIntersection(r.Context(), userID, otherID, from, to)
	if err != nil {
		log.Printf("ERROR shared slots: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, slots)
}

// Candidates lists potential opponents for the caller, ranked by shared
// free time.
func (h *OverlapHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RANGE", err.Error())
		return
	}

	candidates, err := h.overlapService.RankCandidates(r.Context(), userID, from, to)
	if err != nil {
		log.Printf("ERROR rank candidates: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, candidates)
}
