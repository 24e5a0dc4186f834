package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

type ArchiveRepository interface {
	Save(ctx context.Context, room *entity.Room) error
	Find(ctx context.Context, id string) (*entity.Room, error)
}

type archiveRepository struct {
	conn *sql.DB
}

func NewArchiveRepository(conn *sql.DB) ArchiveRepository {
	return &archiveRepository{
		conn: conn,
	}
}

// Save - persists a room and its memberships as one transaction. Called
// when a room finishes; replaces any earlier archived snapshot.
func (that *archiveRepository) Save(ctx context.Context, room *entity.Room) error {
	tx, err := that.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck // rollback after commit is a no-op

	query := `INSERT OR REPLACE INTO rooms (id, game_kind, status, current_turn, board, winner, invite_code)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		room.ID, room.GameKind, room.Status, room.CurrentTurn, string(room.Board), room.Winner, room.InviteCode)
	if err != nil {
		return fmt.Errorf("can't save room: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM memberships WHERE room_id = ?`, room.ID); err != nil {
		return fmt.Errorf("can't clear memberships: %w", err)
	}

	for _, member := range room.Members {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memberships (room_id, player_id, slot, ready, score) VALUES (?, ?, ?, ?, ?)`,
			room.ID, member.PlayerID, member.Slot, member.Ready, member.Score)
		if err != nil {
			return fmt.Errorf("can't save membership: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}

	return nil
}

func (that *archiveRepository) Find(ctx context.Context, id string) (*entity.Room, error) {
	query := `SELECT id, game_kind, status, current_turn, board, winner, invite_code FROM rooms WHERE id = ?`

	var room entity.Room
	var board string

	err := that.conn.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.GameKind, &room.Status, &room.CurrentTurn, &board, &room.Winner, &room.InviteCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrRoomNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("can't find room: %w", err)
	}

	if board != "" {
		room.Board = []byte(board)
	}

	rows, err := that.conn.QueryContext(ctx,
		`SELECT player_id, slot, ready, score FROM memberships WHERE room_id = ? ORDER BY slot`, id)
	if err != nil {
		return nil, fmt.Errorf("can't find memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var member entity.Membership
		if err = rows.Scan(&member.PlayerID, &member.Slot, &member.Ready, &member.Score); err != nil {
			return nil, fmt.Errorf("can't scan membership: %w", err)
		}
		room.Members = append(room.Members, &member)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read memberships: %w", err)
	}

	return &room, nil
}
