package memory

import (
	"encoding/json"
	"testing"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBoard(t *testing.T, board Board) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(board)
	require.NoError(t, err)

	return raw
}

func decode(t *testing.T, raw json.RawMessage) Board {
	t.Helper()

	var board Board
	require.NoError(t, json.Unmarshal(raw, &board))

	return board
}

func TestRules_GenerateBoard(t *testing.T) {
	// Given: rules with 4 pairs
	rules := NewRulesWithPairs(4)

	// When: a board is generated
	raw, err := rules.GenerateBoard()
	require.NoError(t, err)

	board := decode(t, raw)

	// Then: 8 cells, every identity appearing exactly twice, all face down
	require.Len(t, board.Cells, 8)

	counts := make(map[string]int)
	for _, cell := range board.Cells {
		counts[cell.Identity]++
		assert.False(t, cell.Matched)
		assert.False(t, cell.Revealed)
	}

	for identity, count := range counts {
		assert.Equalf(t, 2, count, "identity %s", identity)
	}
}

func TestRules_ApplyMove(t *testing.T) {
	rules := NewRulesWithPairs(2)

	t.Run("First flip leaves the turn pending", func(t *testing.T) {
		// Given: a face-down board
		raw := mustBoard(t, Board{Cells: []Cell{
			{Identity: "a"}, {Identity: "b"}, {Identity: "a"}, {Identity: "b"},
		}})

		// When: one cell is flipped
		outcome, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 0})
		require.NoError(t, err)

		// Then: not resolved, the cell is revealed, no score moves
		assert.False(t, outcome.Resolved)
		assert.Equal(t, 0, outcome.ScoreDelta)
		assert.Equal(t, []int{0}, outcome.Revealed)
		assert.True(t, decode(t, outcome.Board).Cells[0].Revealed)
	})

	t.Run("Matching pair resolves with a point and marks both cells", func(t *testing.T) {
		// Given: one card of a pair already revealed
		raw := mustBoard(t, Board{Cells: []Cell{
			{Identity: "a", Revealed: true}, {Identity: "b"}, {Identity: "a"}, {Identity: "b"},
		}})

		// When: its twin is flipped
		outcome, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 2})
		require.NoError(t, err)

		// Then: resolved as a match worth one point
		assert.True(t, outcome.Resolved)
		assert.True(t, outcome.Matched)
		assert.Equal(t, 1, outcome.ScoreDelta)
		assert.ElementsMatch(t, []int{0, 2}, outcome.Revealed)

		board := decode(t, outcome.Board)
		assert.True(t, board.Cells[0].Matched)
		assert.True(t, board.Cells[2].Matched)
	})

	t.Run("Missed pair resolves without a point and hides both cells", func(t *testing.T) {
		// Given: one card revealed
		raw := mustBoard(t, Board{Cells: []Cell{
			{Identity: "a", Revealed: true}, {Identity: "b"}, {Identity: "a"}, {Identity: "b"},
		}})

		// When: a non-matching card is flipped
		outcome, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 1})
		require.NoError(t, err)

		// Then: resolved as a miss; the durable board holds both face down
		assert.True(t, outcome.Resolved)
		assert.False(t, outcome.Matched)
		assert.Equal(t, 0, outcome.ScoreDelta)

		board := decode(t, outcome.Board)
		assert.False(t, board.Cells[0].Revealed)
		assert.False(t, board.Cells[1].Revealed)
		assert.False(t, board.Cells[0].Matched)
	})

	t.Run("Rejects out-of-range, matched and already-revealed cells", func(t *testing.T) {
		raw := mustBoard(t, Board{Cells: []Cell{
			{Identity: "a", Matched: true, Revealed: true}, {Identity: "b", Revealed: true},
			{Identity: "a"}, {Identity: "b"},
		}})

		_, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 9})
		assert.ErrorIs(t, err, ErrInvalidCell)

		_, err = rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 0})
		assert.ErrorIs(t, err, ErrCellMatched)

		_, err = rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 1})
		assert.ErrorIs(t, err, ErrCellRevealed)
	})

	t.Run("Rejects a third flip while a pair is pending", func(t *testing.T) {
		// Given: two unmatched cards already face up
		raw := mustBoard(t, Board{Cells: []Cell{
			{Identity: "a", Revealed: true}, {Identity: "b", Revealed: true},
			{Identity: "a"}, {Identity: "b"},
		}})

		// When: a third card is flipped
		_, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: 2})

		// Then: rejected
		assert.ErrorIs(t, err, ErrTooManyRevealed)
	})
}

func TestRules_IsTerminal(t *testing.T) {
	rules := NewRulesWithPairs(2)

	// Given: a board with one pair still open
	raw := mustBoard(t, Board{Cells: []Cell{
		{Identity: "a", Matched: true}, {Identity: "a", Matched: true},
		{Identity: "b"}, {Identity: "b"},
	}})

	terminal, err := rules.IsTerminal(raw)
	require.NoError(t, err)
	assert.False(t, terminal)

	// Given: everything matched
	raw = mustBoard(t, Board{Cells: []Cell{
		{Identity: "a", Matched: true}, {Identity: "a", Matched: true},
		{Identity: "b", Matched: true}, {Identity: "b", Matched: true},
	}})

	terminal, err = rules.IsTerminal(raw)
	require.NoError(t, err)
	assert.True(t, terminal)
}

func TestMatchedCount_IsMonotonic(t *testing.T) {
	// Given: a fresh two-pair board
	rules := NewRulesWithPairs(2)
	raw := mustBoard(t, Board{Cells: []Cell{
		{Identity: "a"}, {Identity: "b"}, {Identity: "a"}, {Identity: "b"},
	}})

	last, err := MatchedCount(raw)
	require.NoError(t, err)

	// When: playing through flips, matches and misses
	moves := []int{0, 1, 0, 2, 1, 3}
	for _, cell := range moves {
		outcome, err := rules.ApplyMove(raw, entity.SlotPlayer1, game.Move{Cell: cell})
		require.NoError(t, err)
		raw = outcome.Board

		// Then: the matched count never decreases
		count, err := MatchedCount(raw)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, last)
		last = count
	}

	terminal, err := rules.IsTerminal(raw)
	require.NoError(t, err)
	assert.True(t, terminal)
}
