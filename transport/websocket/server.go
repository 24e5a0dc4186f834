package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/pkg"
	"github.com/rocketscienceinc/gameroom-backend/internal/transport/broadcast"
	"github.com/rocketscienceinc/gameroom-backend/internal/usecase"
)

type handlerFunc func(ctx context.Context, client *Client, message *Message) error

type Server struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	rooms    usecase.RoomUseCase
	bus      *broadcast.Bus
	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, rooms usecase.RoomUseCase, bus *broadcast.Bus) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		rooms:    rooms,
		bus:      bus,
		handlers: make(map[string]handlerFunc),
	}

	server.handlers["room:create"] = server.handleCreate
	server.handlers["room:join"] = server.handleJoin
	server.handlers["room:leave"] = server.handleLeave
	server.handlers["room:move"] = server.handleMove
	server.handlers["room:rematch"] = server.handleRematch
	server.handlers["room:state"] = server.handleState

	return server
}

// Start - starts the WebSocket server and shuts it down when ctx ends.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Client - one connected player. Writes are serialized; gorilla allows a
// single concurrent writer per connection.
type Client struct {
	conn     *websocket.Conn
	playerID string

	mu       sync.Mutex
	roomID   string
	gameKind string
	sub      *broadcast.Subscription
	pumpStop context.CancelFunc
}

func (that *Client) send(message *Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = pkg.GeneratePlayerID()
	}

	client := &Client{
		conn:     conn,
		playerID: playerID,
	}

	log.Info("connection established", "playerID", playerID)

	if err = client.send(&Message{Action: "connect", Payload: mustMarshal(ResponsePayload{PlayerID: playerID})}); err != nil {
		log.Error("failed to send hello", "error", err)
		return
	}

	that.handleMessages(ctx, client)
	that.teardown(ctx, client)
}

// handleMessages - processes messages from the client.
func (that *Server) handleMessages(ctx context.Context, client *Client) {
	log := that.logger.With("method", "handleMessages", "playerID", client.playerID)

	for {
		var message Message
		if err := client.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			that.sendError(client, message.Action, "unknown action")
			continue
		}

		if err := handler(ctx, client, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// teardown - a dropped connection is a leave: the durable record must
// reach its terminal state even if the peer never hears the broadcast.
func (that *Server) teardown(ctx context.Context, client *Client) {
	client.mu.Lock()
	roomID := client.roomID
	client.mu.Unlock()

	that.stopEventPump(client)

	if roomID == "" {
		return
	}

	if _, err := that.rooms.LeaveRoom(ctx, roomID, client.playerID); err != nil {
		that.logger.Error("failed to leave room on disconnect", "roomID", roomID, "error", err)
	}
}

// startEventPump - forwards the room's broadcast stream to the socket.
func (that *Server) startEventPump(ctx context.Context, client *Client, room *entity.Room) error {
	that.stopEventPump(client)

	sub, err := that.bus.Subscribe(ctx, room.GameKind, room.ID)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(ctx)

	client.mu.Lock()
	client.roomID = room.ID
	client.gameKind = room.GameKind
	client.sub = sub
	client.pumpStop = cancel
	client.mu.Unlock()

	go func() {
		for {
			select {
			case <-pumpCtx.Done():
				return
			case event, ok := <-sub.Events():
				if !ok {
					return
				}

				message := &Message{Action: "room:event", Payload: mustMarshal(ResponsePayload{Event: event})}
				if err := client.send(message); err != nil {
					that.logger.Warn("failed to forward event", "playerID", client.playerID, "error", err)
					return
				}
			}
		}
	}()

	return nil
}

func (that *Server) stopEventPump(client *Client) {
	client.mu.Lock()
	sub := client.sub
	stop := client.pumpStop
	client.sub = nil
	client.pumpStop = nil
	client.roomID = ""
	client.gameKind = ""
	client.mu.Unlock()

	if stop != nil {
		stop()
	}

	if sub != nil {
		if err := sub.Close(); err != nil {
			that.logger.Warn("failed to close subscription", "error", err)
		}
	}
}

func (that *Server) sendRoom(client *Client, action string, room *entity.Room, notice string) {
	payload := ResponsePayload{
		PlayerID: client.playerID,
		Room:     room,
		Notice:   notice,
	}

	if err := client.send(&Message{Action: action, Payload: mustMarshal(payload)}); err != nil {
		that.logger.Warn("failed to send response", "action", action, "error", err)
	}
}

func (that *Server) sendError(client *Client, action, text string) {
	payload := ResponsePayload{
		PlayerID: client.playerID,
		Error:    text,
	}

	if err := client.send(&Message{Action: action, Payload: mustMarshal(payload)}); err != nil {
		that.logger.Warn("failed to send error", "action", action, "error", err)
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return b
}
