package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/mstanic/courtside/internal/domain"
	"github.com/mstanic/courtside/internal/service"
	"github.com/mstanic/courtside/internal/transport/http/middleware"
)

type MatchHandler struct {
	matchService *service.MatchService
}

func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateChallengeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	m, err := h.matchService.Create(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfChallenge):
			writeError(w, http.StatusBadRequest, "SELF_CHALLENGE", "Cannot challenge yourself")
		case errors.Is(err, service.ErrInvalidMatchTime):
			writeError(w, http.StatusBadRequest, "INVALID_TIME", "Match end must be after start")
		case errors.Is(err, service.ErrStartInPast):
			writeError(w, http.StatusBadRequest, "START_IN_PAST", "Match must start in the future")
		case errors.Is(err, service.ErrPlayerNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Player not found")
		case errors.Is(err, service.ErrPlayerNotActive):
			writeError(w, http.StatusConflict, "PLAYER_NOT_ACTIVE", "Player is not accepting challenges")
		case errors.Is(err, service.ErrMatchConflict):
			writeError(w, http.StatusConflict, "SLOT_TAKEN", "A match already overlaps this time")
		default:
			log.Printf("ERROR create challenge: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.ListMatchesInput
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.MatchStatus(v)
		input.Status = &status
	}
	if v := r.URL.Query().Get("upcoming"); v != "" {
		upcoming := v == "true"
		input.Upcoming = &upcoming
	}

	matches, err := h.matchService.ListUserMatches(r.Context(), userID, input)
	if err != nil {
		if errors.Is(err, service.ErrWrongStatus) {
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Unknown match status filter")
			return
		}
		log.Printf("ERROR list matches: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, matches)
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid match ID")
		return
	}

	m, err := h.matchService.GetMatch(r.Context(), matchID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Match not found")
		case errors.Is(err, service.ErrNotParticipant):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not part of this match")
		default:
			log.Printf("ERROR get match: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.matchService.Accept, "accept challenge")
}

func (h *MatchHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.matchService.Decline, "decline challenge")
}

func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid match ID")
		return
	}

	var input service.CancelInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return
		}
	}

	m, err := h.matchService.Cancel(r.Context(), matchID, userID, input)
	if err != nil {
		writeLifecycleError(w, err, "cancel match")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

type lifecycleFunc func(ctx context.Context, matchID, userID uuid.UUID) (*domain.Match, error)

func (h *MatchHandler) respond(w http.ResponseWriter, r *http.Request, fn lifecycleFunc, action string) {
	userID := middleware.GetUserID(r.Context())
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid match ID")
		return
	}

	m, err := fn(r.Context(), matchID, userID)
	if err != nil {
		writeLifecycleError(w, err, action)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func writeLifecycleError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Match not found")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not part of this match")
	case errors.Is(err, service.ErrNotRespondent):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the challenged player can respond")
	case errors.Is(err, service.ErrNotInitiator):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the challenger can withdraw a pending match")
	case errors.Is(err, service.ErrWrongStatus):
		writeError(w, http.StatusConflict, "WRONG_STATUS", "Match is not in a state that allows this action")
	case errors.Is(err, service.ErrChallengeExpired):
		writeError(w, http.StatusGone, "EXPIRED", "Challenge has expired")
	case errors.Is(err, service.ErrMatchConflict):
		writeError(w, http.StatusConflict, "SLOT_TAKEN", "A match already overlaps this time")
	case errors.Is(err, service.ErrMatchStarted):
		writeError(w, http.StatusConflict, "ALREADY_STARTED", "Match has already started")
	case errors.Is(err, service.ErrStaleState):
		writeError(w, http.StatusConflict, "STALE_STATE", "Match changed concurrently, reload and retry")
	default:
		log.Printf("ERROR %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
