package entity

import (
	"testing"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomStatusMethods(t *testing.T) {
	t.Run("IsWaiting returns true for a fresh room", func(t *testing.T) {
		// Given: a newly created room
		room := NewRoom("room-1", "memory", "AB12CD")

		// Then: it should be waiting
		assert.True(t, room.IsWaiting())
		assert.False(t, room.IsInProgress())
		assert.False(t, room.IsFinished())
	})

	t.Run("ConfirmInProgress rejects waiting and finished rooms", func(t *testing.T) {
		// Given: a waiting room
		room := NewRoom("room-1", "memory", "AB12CD")

		// When: confirming it is playable
		err := room.ConfirmInProgress()

		// Then: the action is an illegal move
		assert.ErrorIs(t, err, apperror.ErrIllegalMove)

		// Given: a finished room
		room.Status = StatusFinished

		// Then: still illegal
		assert.ErrorIs(t, room.ConfirmInProgress(), apperror.ErrIllegalMove)

		// Given: an in-progress room
		room.Status = StatusInProgress

		// Then: no error
		assert.NoError(t, room.ConfirmInProgress())
	})

	t.Run("ConfirmInProgress rejects unknown status", func(t *testing.T) {
		room := &Room{Status: "unknown"}

		err := room.ConfirmInProgress()

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownRoomStatus)
	})
}

func TestRoom_AddMember(t *testing.T) {
	t.Run("Seats first player as player1 and second as player2", func(t *testing.T) {
		// Given: an empty room
		room := NewRoom("room-1", "memory", "AB12CD")

		// When: two players join
		first, err := room.AddMember("alice")
		require.NoError(t, err)

		second, err := room.AddMember("bob")
		require.NoError(t, err)

		// Then: slots are distinct and assigned in order
		assert.Equal(t, SlotPlayer1, first.Slot)
		assert.Equal(t, SlotPlayer2, second.Slot)
		assert.True(t, room.IsFull())
	})

	t.Run("Rejects a third member", func(t *testing.T) {
		// Given: a full room
		room := NewRoom("room-1", "memory", "AB12CD")
		_, err := room.AddMember("alice")
		require.NoError(t, err)
		_, err = room.AddMember("bob")
		require.NoError(t, err)

		// When: a third player tries to join
		_, err = room.AddMember("carol")

		// Then: the room is full and membership is unchanged
		assert.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Len(t, room.Members, MaxRoomMembers)
	})

	t.Run("Rejects a duplicate member", func(t *testing.T) {
		// Given: a room with one member
		room := NewRoom("room-1", "memory", "AB12CD")
		_, err := room.AddMember("alice")
		require.NoError(t, err)

		// When: the same player joins again
		_, err = room.AddMember("alice")

		// Then: it is rejected with no new seat
		assert.ErrorIs(t, err, apperror.ErrAlreadyMember)
		assert.Len(t, room.Members, 1)
	})
}

func TestRoom_RemoveMember(t *testing.T) {
	// Given: a full room
	room := NewRoom("room-1", "memory", "AB12CD")
	_, err := room.AddMember("alice")
	require.NoError(t, err)
	_, err = room.AddMember("bob")
	require.NoError(t, err)

	// When: one player is removed
	removed := room.RemoveMember("alice")

	// Then: only the other remains
	assert.True(t, removed)
	assert.Nil(t, room.Member("alice"))
	assert.NotNil(t, room.Member("bob"))

	// When: removing an unknown player
	removed = room.RemoveMember("carol")

	// Then: nothing changes
	assert.False(t, removed)
	assert.Len(t, room.Members, 1)
}

func TestRoom_Opponent(t *testing.T) {
	room := NewRoom("room-1", "memory", "AB12CD")
	_, err := room.AddMember("alice")
	require.NoError(t, err)
	_, err = room.AddMember("bob")
	require.NoError(t, err)

	opponent := room.Opponent("alice")

	require.NotNil(t, opponent)
	assert.Equal(t, "bob", opponent.PlayerID)
}

func TestRoom_Clone(t *testing.T) {
	// Given: a room with members, board and scores
	room := NewRoom("room-1", "memory", "AB12CD")
	_, err := room.AddMember("alice")
	require.NoError(t, err)
	room.Board = []byte(`{"cells":[]}`)
	room.Members[0].Score = 3

	// When: the clone is mutated
	clone := room.Clone()
	clone.Members[0].Score = 7
	clone.Board[0] = 'X'
	clone.Status = StatusFinished

	// Then: the original is untouched
	assert.Equal(t, 3, room.Members[0].Score)
	assert.Equal(t, byte('{'), room.Board[0])
	assert.Equal(t, StatusWaiting, room.Status)
}
