package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EventFlip        = "flip"
	EventMatchResult = "match_result"
	EventGameStart   = "game_start"
	EventGameEnd     = "game_end"
	EventNewGame     = "new_game"
	EventPlayerLeft  = "player_left"
)

var (
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrMalformedEvent   = errors.New("malformed event")
)

// Event - a broadcast message. Events are advisory: their effect is folded
// into the room record before they are published, and receivers discard any
// event whose Version is not strictly newer than what they already applied.
type Event struct {
	Kind    string          `json:"kind"`
	Version int64           `json:"room_version"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type FlipPayload struct {
	Cell     int   `json:"cell"`
	Revealed []int `json:"revealed_so_far"`
}

type MatchResultPayload struct {
	Matched  bool            `json:"matched"`
	Board    json.RawMessage `json:"board"`
	NextTurn string          `json:"next_turn"`
	Scores   map[string]int  `json:"scores"`
	Revealed []int           `json:"revealed,omitempty"`
}

type GameStartPayload struct {
	Board     json.RawMessage `json:"board"`
	FirstTurn string          `json:"first_turn"`
}

type GameEndPayload struct {
	Winner string         `json:"winner"`
	Scores map[string]int `json:"scores"`
}

type NewGamePayload struct {
	Board     json.RawMessage `json:"board"`
	FirstTurn string          `json:"first_turn"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

func NewEvent(kind string, version int64, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	return &Event{
		Kind:    kind,
		Version: version,
		Payload: raw,
	}, nil
}

// Validate - peers are not trusted: unknown kinds and payloads that do not
// decode into the closed variant set are rejected before projection.
func (that *Event) Validate() error {
	if that.Version <= 0 {
		return fmt.Errorf("%w: version %d", ErrMalformedEvent, that.Version)
	}

	var target any

	switch that.Kind {
	case EventFlip:
		target = &FlipPayload{}
	case EventMatchResult:
		target = &MatchResultPayload{}
	case EventGameStart:
		target = &GameStartPayload{}
	case EventGameEnd:
		target = &GameEndPayload{}
	case EventNewGame:
		target = &NewGamePayload{}
	case EventPlayerLeft:
		target = &PlayerLeftPayload{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, that.Kind)
	}

	if err := json.Unmarshal(that.Payload, target); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrMalformedEvent, that.Kind, err)
	}

	return nil
}

func (that *Event) DecodePayload(target any) error {
	if err := json.Unmarshal(that.Payload, target); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrMalformedEvent, that.Kind, err)
	}

	return nil
}
