package engine

import (
	"fmt"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
)

// Action - one player input against a room.
type Action struct {
	PlayerID string
	Move     game.Move
}

// Step - the advanced room plus what happened, for event publication.
type Step struct {
	Room     *entity.Room
	Resolved bool
	Matched  bool
	Finished bool
	Revealed []int
}

// TurnEngine - the state machine over waiting/in_progress/finished.
//
// Apply is a pure reducer: it never mutates the room it is given, and a
// rejected action returns an error with no other effect. Turn ownership is
// the only write guard the system has, so rejection has to happen here,
// before any store write is attempted.
type TurnEngine struct {
	kinds *game.Registry
}

func New(kinds *game.Registry) *TurnEngine {
	return &TurnEngine{kinds: kinds}
}

func (that *TurnEngine) Apply(room *entity.Room, action Action) (*Step, error) {
	if err := room.ConfirmInProgress(); err != nil {
		return nil, err
	}

	member := room.Member(action.PlayerID)
	if member == nil {
		return nil, fmt.Errorf("%w: player %s is not seated", apperror.ErrIllegalMove, action.PlayerID)
	}

	if room.CurrentTurn != action.PlayerID {
		return nil, fmt.Errorf("%w: not player %s's turn", apperror.ErrIllegalMove, action.PlayerID)
	}

	rules, err := that.kinds.Rules(room.GameKind)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rules: %w", err)
	}

	outcome, err := rules.ApplyMove(room.Board, member.Slot, action.Move)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrIllegalMove, err)
	}

	next := room.Clone()
	next.Board = outcome.Board

	if outcome.Resolved {
		actor := next.Member(action.PlayerID)
		actor.Score += outcome.ScoreDelta

		if !outcome.Matched {
			if opponent := next.Opponent(action.PlayerID); opponent != nil {
				next.CurrentTurn = opponent.PlayerID
			}
		}
	}

	terminal, err := rules.IsTerminal(next.Board)
	if err != nil {
		return nil, fmt.Errorf("failed to check terminal state: %w", err)
	}

	if terminal {
		next.Status = entity.StatusFinished
		next.CurrentTurn = ""
		next.Winner = Winner(next)
	}

	return &Step{
		Room:     next,
		Resolved: outcome.Resolved,
		Matched:  outcome.Matched,
		Finished: terminal,
		Revealed: outcome.Revealed,
	}, nil
}

// Winner - the member with the strictly higher score; equal scores fall
// back to the first mover, which keeps the result deterministic.
func Winner(room *entity.Room) string {
	first := room.MemberBySlot(entity.SlotPlayer1)
	second := room.MemberBySlot(entity.SlotPlayer2)

	switch {
	case first == nil:
		return ""
	case second == nil:
		return first.PlayerID
	case second.Score > first.Score:
		return second.PlayerID
	default:
		return first.PlayerID
	}
}
