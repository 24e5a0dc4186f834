package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RequestPayload struct {
	PlayerID string `json:"player_id,omitempty"`
	GameKind string `json:"game_kind,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	Code     string `json:"code,omitempty"`
	Cell     int    `json:"cell,omitempty"`
}

type ResponsePayload struct {
	PlayerID string        `json:"player_id,omitempty"`
	Room     *entity.Room  `json:"room,omitempty"`
	Event    *entity.Event `json:"event,omitempty"`
	Notice   string        `json:"notice,omitempty"`
	Error    string        `json:"error,omitempty"`
}
