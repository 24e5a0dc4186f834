package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/rocketscienceinc/gameroom-backend/internal/game"
)

const KindName = "memory"

const defaultPairs = 8

var (
	ErrInvalidCell     = errors.New("invalid cell index")
	ErrCellMatched     = errors.New("cell is already matched")
	ErrCellRevealed    = errors.New("cell is already revealed")
	ErrTooManyRevealed = errors.New("a pair is already pending resolution")
)

type Cell struct {
	Identity string `json:"identity"`
	Matched  bool   `json:"matched"`
	Revealed bool   `json:"revealed"`
}

type Board struct {
	Cells []Cell `json:"cells"`
}

// Rules - the memory-match game. A turn unit is two flips: the first flip
// leaves the turn pending, the second resolves it. A matched pair scores a
// point and keeps the turn; a miss hides both cards again and passes it.
type Rules struct {
	pairs int
}

func NewRules() *Rules {
	return &Rules{pairs: defaultPairs}
}

// NewRulesWithPairs - smaller boards are used by tests.
func NewRulesWithPairs(pairs int) *Rules {
	return &Rules{pairs: pairs}
}

func (that *Rules) Kind() string {
	return KindName
}

func (that *Rules) GenerateBoard() (json.RawMessage, error) {
	cells := make([]Cell, 0, that.pairs*2)
	for i := 0; i < that.pairs; i++ {
		identity := strconv.Itoa(i)
		cells = append(cells, Cell{Identity: identity}, Cell{Identity: identity})
	}

	rand.Shuffle(len(cells), func(i, j int) { //nolint: gosec // board layout is not a secret
		cells[i], cells[j] = cells[j], cells[i]
	})

	raw, err := json.Marshal(Board{Cells: cells})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}

	return raw, nil
}

func (that *Rules) ApplyMove(rawBoard json.RawMessage, _ string, move game.Move) (game.Outcome, error) {
	board, err := decodeBoard(rawBoard)
	if err != nil {
		return game.Outcome{}, err
	}

	if err = validateFlip(board, move.Cell); err != nil {
		return game.Outcome{}, err
	}

	board.Cells[move.Cell].Revealed = true

	pending := revealedUnmatched(board)

	// first card of the pair: turn stays open
	if len(pending) == 1 {
		return encodeOutcome(board, game.Outcome{
			Revealed: pending,
		})
	}

	first, second := pending[0], pending[1]
	matched := board.Cells[first].Identity == board.Cells[second].Identity

	outcome := game.Outcome{
		Resolved: true,
		Matched:  matched,
		Revealed: pending,
	}

	if matched {
		board.Cells[first].Matched = true
		board.Cells[second].Matched = true
		outcome.ScoreDelta = 1
	}

	// the durable record never keeps a missed pair face up; clients show
	// the miss transiently and flip back on their own timers
	board.Cells[first].Revealed = false
	board.Cells[second].Revealed = false

	return encodeOutcome(board, outcome)
}

func (that *Rules) IsTerminal(rawBoard json.RawMessage) (bool, error) {
	board, err := decodeBoard(rawBoard)
	if err != nil {
		return false, err
	}

	for _, cell := range board.Cells {
		if !cell.Matched {
			return false, nil
		}
	}

	return true, nil
}

// MatchedCount - number of matched cells; monotonically non-decreasing
// within one game instance.
func MatchedCount(rawBoard json.RawMessage) (int, error) {
	board, err := decodeBoard(rawBoard)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, cell := range board.Cells {
		if cell.Matched {
			count++
		}
	}

	return count, nil
}

func validateFlip(board *Board, cell int) error {
	if cell < 0 || cell >= len(board.Cells) {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if board.Cells[cell].Matched {
		return fmt.Errorf("%w: cell %d", ErrCellMatched, cell)
	}

	if board.Cells[cell].Revealed {
		return fmt.Errorf("%w: cell %d", ErrCellRevealed, cell)
	}

	if len(revealedUnmatched(board)) >= 2 {
		return ErrTooManyRevealed
	}

	return nil
}

func revealedUnmatched(board *Board) []int {
	var cells []int
	for i, cell := range board.Cells {
		if cell.Revealed && !cell.Matched {
			cells = append(cells, i)
		}
	}

	return cells
}

func decodeBoard(raw json.RawMessage) (*Board, error) {
	var board Board
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	return &board, nil
}

func encodeOutcome(board *Board, outcome game.Outcome) (game.Outcome, error) {
	raw, err := json.Marshal(board)
	if err != nil {
		return game.Outcome{}, fmt.Errorf("failed to marshal board: %w", err)
	}

	outcome.Board = raw

	return outcome, nil
}
