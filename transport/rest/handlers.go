package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/usecase"
)

type handlers struct {
	rooms usecase.RoomUseCase
}

func newHandlers(rooms usecase.RoomUseCase) *handlers {
	return &handlers{rooms: rooms}
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// getRoomHandler - GET /rooms/{id}: the polling and reconnect snapshot.
func (that *handlers) getRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID := strings.TrimPrefix(r.URL.Path, "/rooms/")
	if roomID == "" {
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	room, err := that.rooms.GetRoom(r.Context(), roomID)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(room); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
