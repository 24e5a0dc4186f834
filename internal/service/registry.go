package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
	"github.com/rocketscienceinc/gameroom-backend/internal/pkg"
)

const (
	maxInviteAttempts = 5
	maxWriteAttempts  = 3
)

var ErrInviteCodeExhausted = errors.New("could not allocate a unique invite code")

type roomRepo interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	GetByInviteCode(ctx context.Context, code string) (*entity.Room, error)
	Update(ctx context.Context, room *entity.Room, expectedVersion int64) error
	Delete(ctx context.Context, room *entity.Room) error
}

type archiveRepo interface {
	Save(ctx context.Context, room *entity.Room) error
}

type eventBus interface {
	Publish(ctx context.Context, gameKind, roomID string, event *entity.Event) error
}

type RegistryService interface {
	CreateRoom(ctx context.Context, gameKind, playerID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, codeOrID, playerID string) (*entity.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	NewGame(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	GetRoom(ctx context.Context, roomID string) (*entity.Room, error)
}

type registryService struct {
	logger *slog.Logger

	kinds       *game.Registry
	roomRepo    roomRepo
	archiveRepo archiveRepo
	bus         eventBus
}

func NewRegistryService(logger *slog.Logger, kinds *game.Registry, roomRepo roomRepo, archiveRepo archiveRepo, bus eventBus) RegistryService {
	return &registryService{
		logger:      logger.With("component", "registry"),
		kinds:       kinds,
		roomRepo:    roomRepo,
		archiveRepo: archiveRepo,
		bus:         bus,
	}
}

// CreateRoom - allocates a waiting room with the creator seated as player1
// and an invite code unique among currently waiting rooms.
func (that *registryService) CreateRoom(ctx context.Context, gameKind, playerID string) (*entity.Room, error) {
	if _, err := that.kinds.Rules(gameKind); err != nil {
		return nil, fmt.Errorf("failed to resolve rules: %w", err)
	}

	code, err := that.allocateInviteCode(ctx)
	if err != nil {
		return nil, err
	}

	room := entity.NewRoom(pkg.GenerateRoomID(), gameKind, code)
	if _, err = room.AddMember(playerID); err != nil {
		return nil, fmt.Errorf("failed to seat creator: %w", err)
	}

	if err = that.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.logger.Info("room created", "roomID", room.ID, "gameKind", gameKind, "inviteCode", code)

	return room, nil
}

// JoinRoom - seats a player by invite code or room id. The second seat
// starts the game: board generated, turn handed to player1.
func (that *registryService) JoinRoom(ctx context.Context, codeOrID, playerID string) (*entity.Room, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		room, err := that.resolveRoom(ctx, codeOrID)
		if err != nil {
			return nil, err
		}

		if room.Member(playerID) != nil {
			return room, fmt.Errorf("%w: player %s", apperror.ErrAlreadyMember, playerID)
		}

		// only waiting rooms accept new players; a started or finished room
		// is no longer joinable even when addressed by its id
		if !room.IsWaiting() {
			if room.IsFull() {
				return nil, fmt.Errorf("%w: room %s", apperror.ErrRoomFull, room.ID)
			}

			return nil, fmt.Errorf("%w: room %s is not open", apperror.ErrRoomNotFound, room.ID)
		}

		expected := room.Version
		if _, err = room.AddMember(playerID); err != nil {
			return room, err
		}

		if room.IsFull() {
			if err = that.startGame(room); err != nil {
				return nil, err
			}
		}

		err = that.roomRepo.Update(ctx, room, expected)
		if errors.Is(err, apperror.ErrStaleWrite) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update room: %w", err)
		}

		if room.IsInProgress() {
			that.publish(ctx, room, entity.EventGameStart, entity.GameStartPayload{
				Board:     room.Board,
				FirstTurn: room.CurrentTurn,
			})
		}

		that.logger.Info("player joined", "roomID", room.ID, "playerID", playerID, "status", room.Status)

		return room, nil
	}

	return nil, fmt.Errorf("%w: join room %s", apperror.ErrStaleWrite, codeOrID)
}

// LeaveRoom - removes the membership. A waiting room is deleted; an
// in-progress room finishes with no winner, and the terminal state is
// written durably before any broadcast so a reconnecting peer still
// observes it even if the player_left message is lost.
func (that *registryService) LeaveRoom(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		room, err := that.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return nil, err
		}

		if room.Member(playerID) == nil {
			return room, nil
		}

		if room.IsWaiting() {
			if err = that.roomRepo.Delete(ctx, room); err != nil {
				return nil, fmt.Errorf("failed to delete room: %w", err)
			}

			that.logger.Info("waiting room deleted", "roomID", room.ID)

			return room, nil
		}

		expected := room.Version
		wasInProgress := room.IsInProgress()

		room.RemoveMember(playerID)

		if len(room.Members) == 0 {
			if err = that.roomRepo.Delete(ctx, room); err != nil {
				return nil, fmt.Errorf("failed to delete room: %w", err)
			}

			return room, nil
		}

		if wasInProgress {
			room.Status = entity.StatusFinished
			room.CurrentTurn = ""
			room.Winner = ""
		}

		err = that.roomRepo.Update(ctx, room, expected)
		if errors.Is(err, apperror.ErrStaleWrite) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update room: %w", err)
		}

		if wasInProgress {
			that.archive(ctx, room)
			that.publish(ctx, room, entity.EventPlayerLeft, entity.PlayerLeftPayload{PlayerID: playerID})
		}

		that.logger.Info("player left", "roomID", room.ID, "playerID", playerID)

		return room, nil
	}

	return nil, fmt.Errorf("%w: leave room %s", apperror.ErrStaleWrite, roomID)
}

// NewGame - rematch. Only a finished room with both seats still occupied
// can be restarted; scores reset, a fresh board is generated and the full
// snapshot is broadcast so both clients start from an identical base.
func (that *registryService) NewGame(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		room, err := that.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return nil, err
		}

		if room.Member(playerID) == nil {
			return nil, fmt.Errorf("%w: player %s is not seated", apperror.ErrIllegalMove, playerID)
		}

		if !room.IsFinished() {
			return nil, fmt.Errorf("%w: room is %s", apperror.ErrIllegalMove, room.Status)
		}

		if !room.IsFull() {
			return nil, fmt.Errorf("%w: opponent has left", apperror.ErrIllegalMove)
		}

		expected := room.Version

		if err = that.startGame(room); err != nil {
			return nil, err
		}

		err = that.roomRepo.Update(ctx, room, expected)
		if errors.Is(err, apperror.ErrStaleWrite) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update room: %w", err)
		}

		that.publish(ctx, room, entity.EventNewGame, entity.NewGamePayload{
			Board:     room.Board,
			FirstTurn: room.CurrentTurn,
		})

		that.logger.Info("rematch started", "roomID", room.ID)

		return room, nil
	}

	return nil, fmt.Errorf("%w: rematch room %s", apperror.ErrStaleWrite, roomID)
}

func (that *registryService) GetRoom(ctx context.Context, roomID string) (*entity.Room, error) {
	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

func (that *registryService) startGame(room *entity.Room) error {
	rules, err := that.kinds.Rules(room.GameKind)
	if err != nil {
		return fmt.Errorf("failed to resolve rules: %w", err)
	}

	board, err := rules.GenerateBoard()
	if err != nil {
		return fmt.Errorf("failed to generate board: %w", err)
	}

	first := room.MemberBySlot(entity.SlotPlayer1)

	room.Board = board
	room.Status = entity.StatusInProgress
	room.CurrentTurn = first.PlayerID
	room.Winner = ""
	for _, member := range room.Members {
		member.Score = 0
	}

	return nil
}

func (that *registryService) resolveRoom(ctx context.Context, codeOrID string) (*entity.Room, error) {
	room, err := that.roomRepo.GetByInviteCode(ctx, codeOrID)
	if err == nil {
		return room, nil
	}

	if !errors.Is(err, apperror.ErrRoomNotFound) {
		return nil, err
	}

	return that.roomRepo.GetByID(ctx, codeOrID)
}

func (that *registryService) allocateInviteCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxInviteAttempts; attempt++ {
		code, err := pkg.GenerateInviteCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}

		_, err = that.roomRepo.GetByInviteCode(ctx, code)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
	}

	return "", ErrInviteCodeExhausted
}

func (that *registryService) archive(ctx context.Context, room *entity.Room) {
	if err := that.archiveRepo.Save(ctx, room); err != nil {
		// bookkeeping gap, not a gameplay failure
		that.logger.Warn("failed to archive room", "roomID", room.ID, "error", err)
	}
}

func (that *registryService) publish(ctx context.Context, room *entity.Room, kind string, payload any) {
	event, err := entity.NewEvent(kind, room.Version, payload)
	if err != nil {
		that.logger.Error("failed to build event", "kind", kind, "error", err)
		return
	}

	if err = that.bus.Publish(ctx, room.GameKind, room.ID, event); err != nil {
		// the store already holds the change; peers recover it on resync
		that.logger.Warn("failed to publish event", "kind", kind, "roomID", room.ID, "error", err)
	}
}
