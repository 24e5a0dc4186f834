package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/engine"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
)

type GamePlayService interface {
	MakeMove(ctx context.Context, roomID, playerID string, move game.Move) (*entity.Room, error)
}

type gamePlayService struct {
	logger *slog.Logger

	engine      *engine.TurnEngine
	roomRepo    roomRepo
	archiveRepo archiveRepo
	bus         eventBus
}

func NewGamePlayService(logger *slog.Logger, turnEngine *engine.TurnEngine, roomRepo roomRepo, archiveRepo archiveRepo, bus eventBus) GamePlayService {
	return &gamePlayService{
		logger:      logger.With("component", "gameplay"),
		engine:      turnEngine,
		roomRepo:    roomRepo,
		archiveRepo: archiveRepo,
		bus:         bus,
	}
}

// MakeMove - the authoritative move path: load, reduce, conditional write,
// then broadcast the store-confirmed change. A rejected move has no side
// effects; a lost write race returns the fresh room with ErrStaleWrite so
// the caller can resync instead of retrying blindly.
func (that *gamePlayService) MakeMove(ctx context.Context, roomID, playerID string, move game.Move) (*entity.Room, error) {
	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	step, err := that.engine.Apply(room, engine.Action{PlayerID: playerID, Move: move})
	if err != nil {
		return room, err
	}

	err = that.roomRepo.Update(ctx, step.Room, room.Version)
	if errors.Is(err, apperror.ErrStaleWrite) {
		fresh, getErr := that.roomRepo.GetByID(ctx, roomID)
		if getErr != nil {
			return nil, getErr
		}

		return fresh, fmt.Errorf("%w: move on room %s", apperror.ErrStaleWrite, roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	that.publishStep(ctx, step, move)

	if step.Finished {
		that.archive(ctx, step.Room)
	}

	return step.Room, nil
}

func (that *gamePlayService) publishStep(ctx context.Context, step *engine.Step, move game.Move) {
	room := step.Room

	if !step.Resolved {
		that.publishEvent(ctx, room, entity.EventFlip, entity.FlipPayload{
			Cell:     move.Cell,
			Revealed: step.Revealed,
		})

		return
	}

	that.publishEvent(ctx, room, entity.EventMatchResult, entity.MatchResultPayload{
		Matched:  step.Matched,
		Board:    room.Board,
		NextTurn: room.CurrentTurn,
		Scores:   room.Scores(),
		Revealed: step.Revealed,
	})

	if step.Finished {
		that.publishEvent(ctx, room, entity.EventGameEnd, entity.GameEndPayload{
			Winner: room.Winner,
			Scores: room.Scores(),
		})
	}
}

func (that *gamePlayService) publishEvent(ctx context.Context, room *entity.Room, kind string, payload any) {
	event, err := entity.NewEvent(kind, room.Version, payload)
	if err != nil {
		that.logger.Error("failed to build event", "kind", kind, "error", err)
		return
	}

	if err = that.bus.Publish(ctx, room.GameKind, room.ID, event); err != nil {
		that.logger.Warn("failed to publish event", "kind", kind, "roomID", room.ID, "error", err)
	}
}

func (that *gamePlayService) archive(ctx context.Context, room *entity.Room) {
	if err := that.archiveRepo.Save(ctx, room); err != nil {
		that.logger.Warn("failed to archive room", "roomID", room.ID, "error", err)
	}
}
