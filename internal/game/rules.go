package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownKind = errors.New("unknown game kind")

// Move - a player action. Cell addressing covers every board game the
// engine currently hosts; kinds ignore fields they do not use.
type Move struct {
	Cell int `json:"cell"`
}

// Outcome - the result of applying one move to a board.
//
// Resolved reports whether the move completed a full turn unit. A memory
// flip that reveals the first card of a pair is not resolved: the turn
// stays with the actor and no score moves. Once a turn unit resolves,
// Matched decides the advance policy: the actor keeps the turn on a match
// and the turn passes otherwise.
type Outcome struct {
	Board      json.RawMessage
	Resolved   bool
	Matched    bool
	ScoreDelta int
	Revealed   []int
}

// Rules - the per-kind strategy consumed by the turn engine. Implementations
// must be pure: ApplyMove never mutates the board it is given.
type Rules interface {
	Kind() string
	GenerateBoard() (json.RawMessage, error)
	ApplyMove(board json.RawMessage, slot string, move Move) (Outcome, error)
	IsTerminal(board json.RawMessage) (bool, error)
}

// Registry - the set of kinds a deployment hosts, keyed by Rules.Kind.
type Registry struct {
	kinds map[string]Rules
}

func NewRegistry(rules ...Rules) *Registry {
	kinds := make(map[string]Rules, len(rules))
	for _, r := range rules {
		kinds[r.Kind()] = r
	}

	return &Registry{kinds: kinds}
}

func (that *Registry) Rules(kind string) (Rules, error) {
	rules, ok := that.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	return rules, nil
}
