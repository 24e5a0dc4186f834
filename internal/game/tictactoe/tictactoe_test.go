package tictactoe

import (
	"encoding/json"
	"testing"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBoard(t *testing.T, cells [9]string) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(Board{Cells: cells})
	require.NoError(t, err)

	return raw
}

func TestRules_GenerateBoard(t *testing.T) {
	rules := NewRules()

	raw, err := rules.GenerateBoard()
	require.NoError(t, err)

	var board Board
	require.NoError(t, json.Unmarshal(raw, &board))

	for _, cell := range board.Cells {
		assert.Equal(t, emptyCell, cell)
	}
}

func TestRules_ApplyMove(t *testing.T) {
	rules := NewRules()

	t.Run("Places the slot's mark and passes the turn", func(t *testing.T) {
		// Given: an empty board
		raw, err := rules.GenerateBoard()
		require.NoError(t, err)

		// When: player1 plays a cell
		outcome, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 4})
		require.NoError(t, err)

		// Then: the move resolves without a match, so the turn passes
		assert.True(t, outcome.Resolved)
		assert.False(t, outcome.Matched)
		assert.Equal(t, 0, outcome.ScoreDelta)

		var board Board
		require.NoError(t, json.Unmarshal(outcome.Board, &board))
		assert.Equal(t, MarkX, board.Cells[4])
	})

	t.Run("Winning move scores and keeps the turn", func(t *testing.T) {
		// Given: X one move away from a row
		raw := mustBoard(t, [9]string{
			MarkX, MarkX, emptyCell,
			MarkO, MarkO, emptyCell,
			emptyCell, emptyCell, emptyCell,
		})

		// When: player1 completes the row
		outcome, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 2})
		require.NoError(t, err)

		// Then: reported as a match worth one point
		assert.True(t, outcome.Matched)
		assert.Equal(t, 1, outcome.ScoreDelta)

		terminal, err := rules.IsTerminal(outcome.Board)
		require.NoError(t, err)
		assert.True(t, terminal)
	})

	t.Run("Rejects occupied and out-of-range cells", func(t *testing.T) {
		raw := mustBoard(t, [9]string{MarkX})

		_, err := rules.ApplyMove(raw, entity.SlotPlayer2, game.Move{Cell: 0})
		assert.ErrorIs(t, err, ErrCellOccupied)

		_, err = rules.ApplyMove(raw, entity.SlotPlayer2, game.Move{Cell: -1})
		assert.ErrorIs(t, err, ErrInvalidCell)
	})
}

func TestRules_IsTerminal(t *testing.T) {
	rules := NewRules()

	t.Run("Full board without a winner is terminal", func(t *testing.T) {
		raw := mustBoard(t, [9]string{
			MarkX, MarkO, MarkX,
			MarkX, MarkO, MarkO,
			MarkO, MarkX, MarkX,
		})

		terminal, err := rules.IsTerminal(raw)
		require.NoError(t, err)
		assert.True(t, terminal)
	})

	t.Run("Open board is not terminal", func(t *testing.T) {
		raw := mustBoard(t, [9]string{MarkX})

		terminal, err := rules.IsTerminal(raw)
		require.NoError(t, err)
		assert.False(t, terminal)
	})
}
