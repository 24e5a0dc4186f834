package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

// finished rooms stay readable for reconnecting peers, then expire
const finishedRoomTTL = 24 * time.Hour

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	GetByInviteCode(ctx context.Context, code string) (*entity.Room, error)
	Update(ctx context.Context, room *entity.Room, expectedVersion int64) error
	Delete(ctx context.Context, room *entity.Room) error
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

// Create - stores a fresh room at version 1 and indexes its invite code.
func (that *dbRoom) Create(ctx context.Context, room *entity.Room) error {
	room.Version = 1

	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	pipe := that.client.TxPipeline()
	pipe.Set(ctx, roomKey(room.ID), roomJSON, 0)
	if room.InviteCode != "" {
		pipe.Set(ctx, inviteKey(room.InviteCode), room.ID, 0)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (that *dbRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrRoomNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

func (that *dbRoom) GetByInviteCode(ctx context.Context, code string) (*entity.Room, error) {
	roomID, err := that.client.Get(ctx, inviteKey(code)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: invite code %s", apperror.ErrRoomNotFound, code)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve invite code: %w", err)
	}

	return that.GetByID(ctx, roomID)
}

// Update - conditional write: succeeds only if the stored version still
// equals expectedVersion, then stamps expectedVersion+1 on the room. A lost
// race surfaces as ErrStaleWrite and leaves the stored room untouched.
func (that *dbRoom) Update(ctx context.Context, room *entity.Room, expectedVersion int64) error {
	key := roomKey(room.ID)

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		response, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: id %s", apperror.ErrRoomNotFound, room.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to get room: %w", err)
		}

		var stored entity.Room
		if err = json.Unmarshal([]byte(response), &stored); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}

		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: have %d, expected %d", apperror.ErrStaleWrite, stored.Version, expectedVersion)
		}

		room.Version = expectedVersion + 1

		// the invite index lives only while the room is waiting
		dropInvite := ""
		if !room.IsWaiting() && room.InviteCode != "" {
			dropInvite = room.InviteCode
			room.InviteCode = ""
		}

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		ttl := time.Duration(0)
		if room.IsFinished() {
			ttl = finishedRoomTTL
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomJSON, ttl)
			if dropInvite != "" {
				pipe.Del(ctx, inviteKey(dropInvite))
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write room: %w", err)
		}

		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: concurrent write on room %s", apperror.ErrStaleWrite, room.ID)
	}

	return err
}

func (that *dbRoom) Delete(ctx context.Context, room *entity.Room) error {
	pipe := that.client.TxPipeline()
	pipe.Del(ctx, roomKey(room.ID))
	if room.InviteCode != "" {
		pipe.Del(ctx, inviteKey(room.InviteCode))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	return nil
}

func roomKey(id string) string {
	return "room:" + id
}

func inviteKey(code string) string {
	return "invite:" + code
}
