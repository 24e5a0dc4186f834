package usecase

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
)

// RoomUseCase - the surface consumed by transports.
type RoomUseCase interface {
	CreateRoom(ctx context.Context, gameKind, playerID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, codeOrID, playerID string) (*entity.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	Rematch(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	MakeMove(ctx context.Context, roomID, playerID string, move game.Move) (*entity.Room, error)
	GetRoom(ctx context.Context, roomID string) (*entity.Room, error)
}

type registryService interface {
	CreateRoom(ctx context.Context, gameKind, playerID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, codeOrID, playerID string) (*entity.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	NewGame(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	GetRoom(ctx context.Context, roomID string) (*entity.Room, error)
}

type gamePlayService interface {
	MakeMove(ctx context.Context, roomID, playerID string, move game.Move) (*entity.Room, error)
}

type roomUseCase struct {
	registry registryService
	gamePlay gamePlayService
}

func NewRoomUseCase(registry registryService, gamePlay gamePlayService) RoomUseCase {
	return &roomUseCase{
		registry: registry,
		gamePlay: gamePlay,
	}
}

func (that *roomUseCase) CreateRoom(ctx context.Context, gameKind, playerID string) (*entity.Room, error) {
	room, err := that.registry.CreateRoom(ctx, gameKind, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

func (that *roomUseCase) JoinRoom(ctx context.Context, codeOrID, playerID string) (*entity.Room, error) {
	room, err := that.registry.JoinRoom(ctx, codeOrID, playerID)
	if err != nil {
		return room, fmt.Errorf("failed to join room: %w", err)
	}

	return room, nil
}

func (that *roomUseCase) LeaveRoom(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	room, err := that.registry.LeaveRoom(ctx, roomID, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to leave room: %w", err)
	}

	return room, nil
}

func (that *roomUseCase) Rematch(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	room, err := that.registry.NewGame(ctx, roomID, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start rematch: %w", err)
	}

	return room, nil
}

func (that *roomUseCase) MakeMove(ctx context.Context, roomID, playerID string, move game.Move) (*entity.Room, error) {
	room, err := that.gamePlay.MakeMove(ctx, roomID, playerID, move)
	if err != nil {
		return room, fmt.Errorf("failed to make move: %w", err)
	}

	return room, nil
}

func (that *roomUseCase) GetRoom(ctx context.Context, roomID string) (*entity.Room, error) {
	room, err := that.registry.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}
