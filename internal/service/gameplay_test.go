package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/engine"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
	"github.com/rocketscienceinc/gameroom-backend/internal/game/memory"
	"github.com/rocketscienceinc/gameroom-backend/internal/repository"
	"github.com/rocketscienceinc/gameroom-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBoard replaces the shuffled board with a known layout so the test can
// script matches and misses deterministically.
func seedBoard(ctx context.Context, t *testing.T, repo repository.RoomRepository, room *entity.Room, identities []string) *entity.Room {
	t.Helper()

	cells := make([]memory.Cell, len(identities))
	for i, identity := range identities {
		cells[i] = memory.Cell{Identity: identity}
	}

	raw, err := json.Marshal(memory.Board{Cells: cells})
	require.NoError(t, err)

	room.Board = raw
	require.NoError(t, repo.Update(ctx, room, room.Version))

	fresh, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)

	return fresh
}

// racingRepo bumps the room version behind the caller's back on every read,
// so the following conditional write always loses.
type racingRepo struct {
	repository.RoomRepository
}

func (that *racingRepo) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	room, err := that.RoomRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	racer := room.Clone()
	if err = that.RoomRepository.Update(ctx, racer, racer.Version); err != nil {
		return nil, err
	}

	return room, nil
}

func TestGamePlayService_MakeMove(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := repository.NewRoomRepository(st.Storage)
	turnEngine := engine.New(newKinds())

	startRoom := func(t *testing.T, identities []string) (*entity.Room, *busRecorder, *archiveRecorder, GamePlayService) {
		t.Helper()

		bus := &busRecorder{}
		archive := &archiveRecorder{}
		registry := NewRegistryService(st.Logger, newKinds(), roomRepo, archive, bus)
		gameplay := NewGamePlayService(st.Logger, turnEngine, roomRepo, archive, bus)

		created, err := registry.CreateRoom(ctx, memory.KindName, "alice")
		require.NoError(t, err)
		room, err := registry.JoinRoom(ctx, created.ID, "bob")
		require.NoError(t, err)

		return seedBoard(ctx, t, roomRepo, room, identities), bus, archive, gameplay
	}

	t.Run("First flip keeps the turn and broadcasts the reveal", func(t *testing.T) {
		room, bus, _, gameplay := startRoom(t, []string{"a", "b", "a", "b"})

		// When: alice flips her first card
		updated, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 0})
		require.NoError(t, err)

		// Then: turn still alice, version bumped, flip broadcast
		assert.Equal(t, "alice", updated.CurrentTurn)
		assert.Equal(t, room.Version+1, updated.Version)
		require.Equal(t, []string{entity.EventFlip}, bus.kinds())

		var payload entity.FlipPayload
		require.NoError(t, bus.events[0].DecodePayload(&payload))
		assert.Equal(t, 0, payload.Cell)
		assert.Equal(t, []int{0}, payload.Revealed)
	})

	t.Run("Matching pair scores and keeps the turn", func(t *testing.T) {
		room, bus, _, gameplay := startRoom(t, []string{"a", "b", "a", "b"})

		_, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 0})
		require.NoError(t, err)

		// When: the second flip completes the pair
		updated, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 2})
		require.NoError(t, err)

		// Then: point awarded, turn retained
		assert.Equal(t, 1, updated.Member("alice").Score)
		assert.Equal(t, "alice", updated.CurrentTurn)

		require.Equal(t, []string{entity.EventFlip, entity.EventMatchResult}, bus.kinds())

		var payload entity.MatchResultPayload
		require.NoError(t, bus.events[1].DecodePayload(&payload))
		assert.True(t, payload.Matched)
		assert.Equal(t, "alice", payload.NextTurn)
		assert.Equal(t, map[string]int{"alice": 1, "bob": 0}, payload.Scores)
	})

	t.Run("Missed pair hides the cards durably and passes the turn", func(t *testing.T) {
		room, bus, _, gameplay := startRoom(t, []string{"a", "b", "a", "b"})

		_, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 0})
		require.NoError(t, err)

		// When: the second flip misses
		updated, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 1})
		require.NoError(t, err)

		// Then: no score, turn passes to bob
		assert.Equal(t, 0, updated.Member("alice").Score)
		assert.Equal(t, "bob", updated.CurrentTurn)

		// Then: the stored board keeps the missed pair face down, while the
		// broadcast carries the pair for transient display
		var board memory.Board
		require.NoError(t, json.Unmarshal(updated.Board, &board))
		assert.False(t, board.Cells[0].Revealed)
		assert.False(t, board.Cells[1].Revealed)

		var payload entity.MatchResultPayload
		require.NoError(t, bus.events[1].DecodePayload(&payload))
		assert.False(t, payload.Matched)
		assert.Equal(t, []int{0, 1}, payload.Revealed)
	})

	t.Run("Out-of-turn move is rejected with no side effects", func(t *testing.T) {
		room, bus, _, gameplay := startRoom(t, []string{"a", "b", "a", "b"})

		// When: bob moves on alice's turn
		_, err := gameplay.MakeMove(ctx, room.ID, "bob", game.Move{Cell: 0})

		// Then: rejected, nothing stored, nothing broadcast
		assert.ErrorIs(t, err, apperror.ErrIllegalMove)
		assert.Empty(t, bus.kinds())

		stored, err := roomRepo.GetByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, room.Version, stored.Version)
	})

	t.Run("Clearing the board finishes the game and archives it", func(t *testing.T) {
		room, bus, archive, gameplay := startRoom(t, []string{"a", "a"})

		_, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 0})
		require.NoError(t, err)

		// When: the last pair is matched
		updated, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 1})
		require.NoError(t, err)

		// Then: finished, alice wins, game_end follows the match_result
		assert.Equal(t, entity.StatusFinished, updated.Status)
		assert.Equal(t, "alice", updated.Winner)
		assert.Empty(t, updated.CurrentTurn)
		assert.Equal(t, []string{entity.EventFlip, entity.EventMatchResult, entity.EventGameEnd}, bus.kinds())

		require.NotEmpty(t, archive.saved)
		assert.Equal(t, updated.ID, archive.saved[0].ID)
	})

	t.Run("Lost write race returns the fresh room with StaleWrite", func(t *testing.T) {
		room, _, _, _ := startRoom(t, []string{"a", "b", "a", "b"})

		// Given: another writer slips in between our read and our write
		bus := &busRecorder{}
		racing := &racingRepo{RoomRepository: roomRepo}
		gameplay := NewGamePlayService(st.Logger, turnEngine, racing, &archiveRecorder{}, bus)

		// When: the move is submitted
		fresh, err := gameplay.MakeMove(ctx, room.ID, "alice", game.Move{Cell: 0})

		// Then: the stale write is reported along with the store truth, and
		// nothing was broadcast for the lost move
		require.ErrorIs(t, err, apperror.ErrStaleWrite)
		require.NotNil(t, fresh)
		assert.Equal(t, room.Version+1, fresh.Version)
		assert.Empty(t, bus.kinds())
	})
}
