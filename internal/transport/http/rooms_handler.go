package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// RoomsHandler exposes the request/response room operations next to the
// websocket gateway: create, get, list, creator cancel, and the result
// summary of a finished battle.
type RoomsHandler struct {
	service *app.BattleService
}

func NewRoomsHandler(service *app.BattleService) *RoomsHandler {
	return &RoomsHandler{service: service}
}

type createRoomRequest struct {
	QuizID          string `json:"quizId"`
	MaxParticipants int    `json:"maxParticipants"`
	UserID          string `json:"userId"`
	Username        string `json:"username"`
}

func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuizID == "" || req.UserID == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "missing quizId, userId, or username")
		return
	}

	room, err := h.service.Create(r.Context(), req.QuizID, req.MaxParticipants, domain.UserRef{
		UserID:   req.UserID,
		Username: req.Username,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.RoomStatus(r.URL.Query().Get("status"))
	rooms := h.service.List(r.Context(), status)
	if rooms == nil {
		rooms = []domain.BattleRoom{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// Summary serves the final result of a battle. Finished rooms are evicted
// from the live repository, so this keeps working long after room-ended.
func (h *RoomsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type cancelRoomRequest struct {
	UserID string `json:"userId"`
}

func (h *RoomsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.Cancel(r.Context(), r.PathValue("id"), req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomNotJoinable),
		errors.Is(err, domain.ErrAlreadyJoined), errors.Is(err, domain.ErrUserBusy),
		errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrBattleNotActive), errors.Is(err, domain.ErrSummaryNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
