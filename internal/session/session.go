package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/engine"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/game"
)

const defaultFlipBackDelay = time.Second

var (
	ErrMoveInFlight = errors.New("a move resolution is already outstanding")
	ErrDisconnected = errors.New("session is reconnecting; local state is frozen")
	ErrNoRoom       = errors.New("session has no room snapshot")
)

type snapshotStore interface {
	GetByID(ctx context.Context, id string) (*entity.Room, error)
}

type mover interface {
	MakeMove(ctx context.Context, roomID, playerID string, move game.Move) (*entity.Room, error)
}

// Session - one client's projection of a room.
//
// The local room copy is updated twice per own move: optimistically on
// submit for responsiveness, then authoritatively from the store-confirmed
// reply. Incoming broadcasts are projected only when their version is
// strictly newer than the last applied one; the store snapshot wins every
// disagreement.
type Session struct {
	logger *slog.Logger

	playerID string
	store    snapshotStore
	mover    mover
	engine   *engine.TurnEngine

	flipBackDelay time.Duration

	mu           sync.Mutex
	room         *entity.Room
	rec          Reconciler
	processing   bool
	disconnected bool
	transient    []int
	flipBack     *time.Timer
}

func New(logger *slog.Logger, playerID string, store snapshotStore, mover mover, turnEngine *engine.TurnEngine) *Session {
	return &Session{
		logger:        logger.With("component", "session", "playerID", playerID),
		playerID:      playerID,
		store:         store,
		mover:         mover,
		engine:        turnEngine,
		flipBackDelay: defaultFlipBackDelay,
	}
}

// AdoptSnapshot - replaces local state with a store snapshot, discarding
// speculative state, transient reveals and pending timers.
func (that *Session) AdoptSnapshot(room *entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.adoptLocked(room)
}

// Resync - fetches store truth; the only recovery path after reconnect,
// late join or a lost write race.
func (that *Session) Resync(ctx context.Context) error {
	that.mu.Lock()
	if that.room == nil {
		that.mu.Unlock()
		return ErrNoRoom
	}
	roomID := that.room.ID
	that.mu.Unlock()

	room, err := that.store.GetByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.adoptLocked(room)
	that.disconnected = false

	return nil
}

// Run - projects events until the subscription closes or the context ends.
// A closed channel means the transport dropped; the session freezes local
// moves until a Resync succeeds.
func (that *Session) Run(ctx context.Context, events <-chan *entity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				that.mu.Lock()
				that.disconnected = true
				that.mu.Unlock()

				that.logger.Info("event stream closed, freezing session")

				return
			}

			that.HandleEvent(event)
		}
	}
}

// SubmitMove - validates locally, applies optimistically, then forwards to
// the authoritative store path. Rollback is always to store truth.
func (that *Session) SubmitMove(ctx context.Context, move game.Move) error {
	that.mu.Lock()

	if that.disconnected {
		that.mu.Unlock()
		return ErrDisconnected
	}

	if that.processing {
		that.mu.Unlock()
		return ErrMoveInFlight
	}

	if that.room == nil {
		that.mu.Unlock()
		return ErrNoRoom
	}

	previous := that.room

	step, err := that.engine.Apply(that.room, engine.Action{PlayerID: that.playerID, Move: move})
	if err != nil {
		that.mu.Unlock()
		return err
	}

	// optimistic: local board moves now, the version does not advance
	// until the store confirms
	that.room = step.Room
	that.processing = true
	roomID := step.Room.ID

	that.mu.Unlock()

	confirmed, err := that.mover.MakeMove(ctx, roomID, that.playerID, move)

	that.mu.Lock()
	defer that.mu.Unlock()

	that.processing = false

	switch {
	case err == nil:
		that.projectConfirmedMove(confirmed, step)
		return nil
	case errors.Is(err, apperror.ErrStaleWrite):
		// lost the race: the returned room is a fresh store read
		that.adoptLocked(confirmed)
		return err
	case errors.Is(err, apperror.ErrIllegalMove):
		// the reply carries the store room the move was judged against
		if confirmed != nil {
			that.adoptLocked(confirmed)
		} else {
			that.room = previous
		}
		return err
	default:
		that.room = previous
		that.disconnected = true
		return fmt.Errorf("move not confirmed, freezing session: %w", err)
	}
}

// HandleEvent - projects one broadcast event onto local state. Stale and
// duplicate events are discarded.
func (that *Session) HandleEvent(event *entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.rec.ShouldApply(event.Version) {
		that.logger.Debug("discarding stale event",
			"kind", event.Kind, "version", event.Version, "applied", that.rec.AppliedVersion())
		return
	}

	if that.room == nil {
		return
	}

	switch event.Kind {
	case entity.EventFlip:
		that.applyFlip(event)
	case entity.EventMatchResult:
		that.applyMatchResult(event)
	case entity.EventGameStart:
		that.applyGameStart(event)
	case entity.EventNewGame:
		that.applyNewGame(event)
	case entity.EventGameEnd:
		that.applyGameEnd(event)
	case entity.EventPlayerLeft:
		that.applyPlayerLeft(event)
	}
}

// State - a copy of the local room projection.
func (that *Session) State() *entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.room == nil {
		return nil
	}

	return that.room.Clone()
}

// TransientReveals - cells shown face up pending a flip-back; a UI overlay
// on top of the authoritative board.
func (that *Session) TransientReveals() []int {
	that.mu.Lock()
	defer that.mu.Unlock()

	out := make([]int, len(that.transient))
	copy(out, that.transient)

	return out
}

func (that *Session) IsProcessing() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.processing
}

func (that *Session) IsDisconnected() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.disconnected
}

func (that *Session) AppliedVersion() int64 {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rec.AppliedVersion()
}

func (that *Session) projectConfirmedMove(confirmed *entity.Room, step *engine.Step) {
	local := that.room
	that.room = that.rec.Resolve(local, confirmed)
	that.cancelFlipBackLocked()

	if step.Resolved && !step.Matched {
		that.transient = step.Revealed
		that.scheduleFlipBackLocked(confirmed.Version)

		return
	}

	that.transient = nil
}

func (that *Session) applyFlip(event *entity.Event) {
	var payload entity.FlipPayload
	if err := event.DecodePayload(&payload); err != nil {
		that.logger.Warn("failed to decode flip", "error", err)
		return
	}

	that.rec.Advance(event.Version)
	that.room.Version = event.Version
	that.cancelFlipBackLocked()
	that.transient = payload.Revealed
}

func (that *Session) applyMatchResult(event *entity.Event) {
	var payload entity.MatchResultPayload
	if err := event.DecodePayload(&payload); err != nil {
		that.logger.Warn("failed to decode match_result", "error", err)
		return
	}

	that.rec.Advance(event.Version)
	that.cancelFlipBackLocked()

	that.room.Version = event.Version
	that.room.Board = payload.Board
	that.room.CurrentTurn = payload.NextTurn
	that.applyScores(payload.Scores)

	if payload.Matched {
		that.transient = nil
		return
	}

	// show the missed pair until the deferred flip-back fires or a newer
	// authoritative update supersedes it
	that.transient = payload.Revealed
	that.scheduleFlipBackLocked(event.Version)
}

func (that *Session) applyGameStart(event *entity.Event) {
	var payload entity.GameStartPayload
	if err := event.DecodePayload(&payload); err != nil {
		that.logger.Warn("failed to decode game_start", "error", err)
		return
	}

	that.rec.Advance(event.Version)
	that.cancelFlipBackLocked()

	that.room.Version = event.Version
	that.room.Status = entity.StatusInProgress
	that.room.Board = payload.Board
	that.room.CurrentTurn = payload.FirstTurn
	that.room.Winner = ""
	that.transient = nil
}

func (that *Session) applyNewGame(event *entity.Event) {
	var payload entity.NewGamePayload
	if err := event.DecodePayload(&payload); err != nil {
		that.logger.Warn("failed to decode new_game", "error", err)
		return
	}

	that.rec.Advance(event.Version)
	that.cancelFlipBackLocked()

	that.room.Version = event.Version
	that.room.Status = entity.StatusInProgress
	that.room.Board = payload.Board
	that.room.CurrentTurn = payload.FirstTurn
	that.room.Winner = ""
	for _, member := range that.room.Members {
		member.Score = 0
	}
	that.transient = nil
	that.processing = false
}

func (that *Session) applyGameEnd(event *entity.Event) {
	var payload entity.GameEndPayload
	if err := event.DecodePayload(&payload); err != nil {
		that.logger.Warn("failed to decode game_end", "error", err)
		return
	}

	that.rec.Advance(event.Version)
	that.cancelFlipBackLocked()

	that.room.Version = event.Version
	that.room.Status = entity.StatusFinished
	that.room.CurrentTurn = ""
	that.room.Winner = payload.Winner
	that.applyScores(payload.Scores)
	that.transient = nil
}

func (that *Session) applyPlayerLeft(event *entity.Event) {
	var payload entity.PlayerLeftPayload
	if err := event.DecodePayload(&payload); err != nil {
		that.logger.Warn("failed to decode player_left", "error", err)
		return
	}

	that.rec.Advance(event.Version)
	that.cancelFlipBackLocked()

	that.room.Version = event.Version
	that.room.Status = entity.StatusFinished
	that.room.CurrentTurn = ""
	that.room.Winner = ""
	that.room.RemoveMember(payload.PlayerID)
	that.transient = nil

	that.logger.Info("peer left the room", "roomID", that.room.ID)
}

func (that *Session) applyScores(scores map[string]int) {
	for _, member := range that.room.Members {
		if score, ok := scores[member.PlayerID]; ok {
			member.Score = score
		}
	}
}

func (that *Session) adoptLocked(room *entity.Room) {
	that.room = that.rec.Resolve(that.room, room.Clone())
	that.transient = nil
	that.processing = false
	that.cancelFlipBackLocked()
}

// scheduleFlipBackLocked - arms the deferred flip-back, keyed by the
// version that created it. By the time the timer fires the room may have
// moved on; the key check keeps a stale timer from corrupting newer state.
func (that *Session) scheduleFlipBackLocked(version int64) {
	that.cancelFlipBackLocked()

	that.flipBack = time.AfterFunc(that.flipBackDelay, func() {
		that.mu.Lock()
		defer that.mu.Unlock()

		if that.rec.AppliedVersion() != version {
			return
		}

		that.transient = nil
	})
}

func (that *Session) cancelFlipBackLocked() {
	if that.flipBack != nil {
		that.flipBack.Stop()
		that.flipBack = nil
	}
}
