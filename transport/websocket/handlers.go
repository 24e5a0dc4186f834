package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
)

func (that *Server) handleCreate(ctx context.Context, client *Client, msg *Message) error {
	var payload RequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, err := that.rooms.CreateRoom(ctx, payload.GameKind, client.playerID)
	if err != nil {
		that.sendError(client, msg.Action, "could not create room")
		return err
	}

	if err = that.startEventPump(ctx, client, room); err != nil {
		that.sendError(client, msg.Action, "room created but events are unavailable")
		return err
	}

	that.sendRoom(client, msg.Action, room, "")

	return nil
}

func (that *Server) handleJoin(ctx context.Context, client *Client, msg *Message) error {
	var payload RequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	codeOrID := payload.Code
	if codeOrID == "" {
		codeOrID = payload.RoomID
	}

	room, err := that.rooms.JoinRoom(ctx, codeOrID, client.playerID)

	switch {
	case errors.Is(err, apperror.ErrAlreadyMember):
		// the player keeps their existing seat
		that.sendRoom(client, msg.Action, room, "already seated")
	case errors.Is(err, apperror.ErrRoomFull):
		that.sendError(client, msg.Action, "room is full")
		return nil
	case errors.Is(err, apperror.ErrRoomNotFound):
		that.sendError(client, msg.Action, "room not found")
		return nil
	case err != nil:
		that.sendError(client, msg.Action, "could not join room")
		return err
	default:
		that.sendRoom(client, msg.Action, room, "")
	}

	if err = that.startEventPump(ctx, client, room); err != nil {
		return err
	}

	return nil
}

func (that *Server) handleLeave(ctx context.Context, client *Client, msg *Message) error {
	client.mu.Lock()
	roomID := client.roomID
	client.mu.Unlock()

	if roomID == "" {
		that.sendError(client, msg.Action, "not in a room")
		return nil
	}

	that.stopEventPump(client)

	room, err := that.rooms.LeaveRoom(ctx, roomID, client.playerID)
	if err != nil {
		that.sendError(client, msg.Action, "could not leave room")
		return err
	}

	that.sendRoom(client, msg.Action, room, "left room")

	return nil
}

func (that *Server) handleMove(ctx context.Context, client *Client, msg *Message) error {
	var payload RequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	client.mu.Lock()
	roomID := client.roomID
	client.mu.Unlock()

	if roomID == "" {
		that.sendError(client, msg.Action, "not in a room")
		return nil
	}

	room, err := that.rooms.MakeMove(ctx, roomID, client.playerID, game.Move{Cell: payload.Cell})

	switch {
	case errors.Is(err, apperror.ErrIllegalMove):
		// rejected with no side effects; a lightweight notice is enough
		that.sendRoom(client, msg.Action, room, "illegal move")
		return nil
	case errors.Is(err, apperror.ErrStaleWrite):
		// lost a race; the fresh snapshot lets the client resync
		that.sendRoom(client, msg.Action, room, "out of date, resynced")
		return nil
	case err != nil:
		that.sendError(client, msg.Action, "could not apply move")
		return err
	}

	that.sendRoom(client, msg.Action, room, "")

	return nil
}

func (that *Server) handleRematch(ctx context.Context, client *Client, msg *Message) error {
	client.mu.Lock()
	roomID := client.roomID
	client.mu.Unlock()

	if roomID == "" {
		that.sendError(client, msg.Action, "not in a room")
		return nil
	}

	room, err := that.rooms.Rematch(ctx, roomID, client.playerID)

	switch {
	case errors.Is(err, apperror.ErrIllegalMove):
		that.sendError(client, msg.Action, "rematch is not available")
		return nil
	case err != nil:
		that.sendError(client, msg.Action, "could not start rematch")
		return err
	}

	that.sendRoom(client, msg.Action, room, "")

	return nil
}

// handleState - store snapshot on demand; the reconnect path.
func (that *Server) handleState(ctx context.Context, client *Client, msg *Message) error {
	var payload RequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	roomID := payload.RoomID
	if roomID == "" {
		client.mu.Lock()
		roomID = client.roomID
		client.mu.Unlock()
	}

	room, err := that.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		that.sendError(client, msg.Action, "room not found")
		return nil
	}
	if err != nil {
		that.sendError(client, msg.Action, "could not fetch room")
		return err
	}

	client.mu.Lock()
	resubscribe := client.sub == nil && room.Member(client.playerID) != nil
	client.mu.Unlock()

	if resubscribe {
		if err = that.startEventPump(ctx, client, room); err != nil {
			return err
		}
	}

	that.sendRoom(client, msg.Action, room, "")

	return nil
}
