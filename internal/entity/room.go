package entity

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
)

const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

const (
	SlotPlayer1 = "player1"
	SlotPlayer2 = "player2"
)

// MaxRoomMembers - rooms host exactly two seats.
const MaxRoomMembers = 2

var ErrUnknownRoomStatus = errors.New("unknown room status")

type Membership struct {
	PlayerID string `json:"player_id"`
	Slot     string `json:"slot"`
	Ready    bool   `json:"ready,omitempty"`
	Score    int    `json:"score"`
}

// Room - one instance of a two-party turn-based game session.
// Version is stamped by the store on every write and is the tie-breaker
// between store truth and broadcast traffic.
type Room struct {
	ID          string          `json:"id"`
	GameKind    string          `json:"game_kind"`
	Status      string          `json:"status"`
	CurrentTurn string          `json:"current_turn,omitempty"`
	Board       json.RawMessage `json:"board,omitempty"`
	InviteCode  string          `json:"invite_code,omitempty"`
	Winner      string          `json:"winner,omitempty"`
	Version     int64           `json:"version"`
	Members     []*Membership   `json:"members,omitempty"`
}

func NewRoom(id, gameKind, inviteCode string) *Room {
	return &Room{
		ID:         id,
		GameKind:   gameKind,
		Status:     StatusWaiting,
		InviteCode: inviteCode,
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Room) IsFull() bool {
	return len(that.Members) >= MaxRoomMembers
}

func (that *Room) ConfirmInProgress() error {
	switch that.Status {
	case StatusInProgress:
		return nil
	case StatusWaiting, StatusFinished:
		return fmt.Errorf("%w: room is %s", apperror.ErrIllegalMove, that.Status)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownRoomStatus, that.Status)
	}
}

func (that *Room) Member(playerID string) *Membership {
	for _, member := range that.Members {
		if member.PlayerID == playerID {
			return member
		}
	}

	return nil
}

func (that *Room) MemberBySlot(slot string) *Membership {
	for _, member := range that.Members {
		if member.Slot == slot {
			return member
		}
	}

	return nil
}

// AddMember - seats a player in the first free slot.
func (that *Room) AddMember(playerID string) (*Membership, error) {
	if that.Member(playerID) != nil {
		return nil, fmt.Errorf("%w: player %s", apperror.ErrAlreadyMember, playerID)
	}

	if that.IsFull() {
		return nil, fmt.Errorf("%w: room %s", apperror.ErrRoomFull, that.ID)
	}

	slot := SlotPlayer1
	if that.MemberBySlot(SlotPlayer1) != nil {
		slot = SlotPlayer2
	}

	member := &Membership{
		PlayerID: playerID,
		Slot:     slot,
	}
	that.Members = append(that.Members, member)

	return member, nil
}

func (that *Room) RemoveMember(playerID string) bool {
	for i, member := range that.Members {
		if member.PlayerID == playerID {
			that.Members = append(that.Members[:i], that.Members[i+1:]...)
			return true
		}
	}

	return false
}

// Opponent - returns the other seated member, if any.
func (that *Room) Opponent(playerID string) *Membership {
	for _, member := range that.Members {
		if member.PlayerID != playerID {
			return member
		}
	}

	return nil
}

// Scores - score per player id, as carried on result events.
func (that *Room) Scores() map[string]int {
	scores := make(map[string]int, len(that.Members))
	for _, member := range that.Members {
		scores[member.PlayerID] = member.Score
	}

	return scores
}

// Clone - deep copy so reducers can work without mutating the stored room.
func (that *Room) Clone() *Room {
	clone := *that

	if that.Board != nil {
		clone.Board = make(json.RawMessage, len(that.Board))
		copy(clone.Board, that.Board)
	}

	clone.Members = make([]*Membership, 0, len(that.Members))
	for _, member := range that.Members {
		memberCopy := *member
		clone.Members = append(clone.Members, &memberCopy)
	}

	return &clone
}
