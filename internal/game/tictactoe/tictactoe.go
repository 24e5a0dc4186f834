package tictactoe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
)

const KindName = "tictactoe"

const (
	MarkX     = "X"
	MarkO     = "O"
	emptyCell = ""
)

var (
	ErrInvalidCell  = errors.New("invalid cell index")
	ErrCellOccupied = errors.New("cell is already occupied")

	winCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

type Board struct {
	Cells [9]string `json:"cells"`
}

// Rules - tic-tac-toe as an engine strategy. Every move resolves a turn
// unit; the winning move is reported as a match so the scorer records it.
type Rules struct{}

func NewRules() *Rules {
	return &Rules{}
}

func (that *Rules) Kind() string {
	return KindName
}

func (that *Rules) GenerateBoard() (json.RawMessage, error) {
	raw, err := json.Marshal(Board{})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}

	return raw, nil
}

func (that *Rules) ApplyMove(rawBoard json.RawMessage, slot string, move game.Move) (game.Outcome, error) {
	board, err := decodeBoard(rawBoard)
	if err != nil {
		return game.Outcome{}, err
	}

	if move.Cell < 0 || move.Cell >= len(board.Cells) {
		return game.Outcome{}, fmt.Errorf("%w: cell %d", ErrInvalidCell, move.Cell)
	}

	if board.Cells[move.Cell] != emptyCell {
		return game.Outcome{}, fmt.Errorf("%w: cell %d", ErrCellOccupied, move.Cell)
	}

	board.Cells[move.Cell] = markForSlot(slot)

	outcome := game.Outcome{
		Resolved: true,
		Revealed: []int{move.Cell},
	}

	if winningMark(board) != emptyCell {
		outcome.Matched = true
		outcome.ScoreDelta = 1
	}

	raw, err := json.Marshal(board)
	if err != nil {
		return game.Outcome{}, fmt.Errorf("failed to marshal board: %w", err)
	}

	outcome.Board = raw

	return outcome, nil
}

func (that *Rules) IsTerminal(rawBoard json.RawMessage) (bool, error) {
	board, err := decodeBoard(rawBoard)
	if err != nil {
		return false, err
	}

	if winningMark(board) != emptyCell {
		return true, nil
	}

	for _, cell := range board.Cells {
		if cell == emptyCell {
			return false, nil
		}
	}

	return true, nil
}

func markForSlot(slot string) string {
	if slot == entity.SlotPlayer1 {
		return MarkX
	}

	return MarkO
}

func winningMark(board *Board) string {
	for _, combo := range winCombos {
		a, b, c := board.Cells[combo[0]], board.Cells[combo[1]], board.Cells[combo[2]]
		if a != emptyCell && a == b && b == c {
			return a
		}
	}

	return emptyCell
}

func decodeBoard(raw json.RawMessage) (*Board, error) {
	var board Board
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	return &board, nil
}
