package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"trivia-live-service/internal/app"
	"trivia-live-service/internal/domain"
)

// RoomsHandler creates rooms over plain HTTP; the host then connects to
// the returned code over the websocket surface.
type RoomsHandler struct {
	router *app.Router
	log    *logrus.Logger
}

func NewRoomsHandler(router *app.Router, log *logrus.Logger) *RoomsHandler {
	return &RoomsHandler{router: router, log: log}
}

type createRoomRequest struct {
	QuizID string `json:"quizId"`
	HostID string `json:"hostId"`
}

type createRoomResponse struct {
	Code string `json:"code"`
}

func (h *RoomsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" || req.HostID == "" {
		http.Error(w, "quizId and hostId are required", http.StatusBadRequest)
		return
	}

	code, err := h.router.CreateRoom(r.Context(), req.QuizID, req.HostID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrQuizEmpty):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		// Retryable: the host can simply try again.
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		h.log.WithError(err).Error("room creation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(createRoomResponse{Code: code})
}
