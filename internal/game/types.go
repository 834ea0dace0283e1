// internal/game/types.go
//
// Core contracts for turn-based game engines.
// Defines:
//   - Engine: the rule-engine interface every game implements.
//   - Options: construction parameters for a fresh game state.
//   - Result/Event: the outcome of applying a validated move.
//   - Common: the shared fields every serialized state must carry.
//   - Registry: an immutable gameId -> Engine table built at startup.

package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Options carry the parameters for a fresh game state.
type Options struct {
	Rows    int      // box-grid rows (not dot rows)
	Cols    int      // box-grid columns
	Players []string // ordered, stable player identities
}

// Event is a semantic side effect of a move (e.g. a score event).
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Result is the outcome of a successful Apply.
type Result struct {
	State  json.RawMessage // new serialized state
	Events []Event         // semantic events, may be empty
}

// Engine is the rule-engine contract. Implementations are pure over the
// serialized state value: no I/O, no network awareness, no clock.
//
// State travels as self-describing JSON so the coordinator can persist it
// opaquely; every engine's state must embed the Common field names.
type Engine interface {
	// ID is the stable game identifier used for registry dispatch.
	ID() string

	// Name is the human-readable game name.
	Name() string

	// MinPlayers/MaxPlayers bound the player list length.
	MinPlayers() int
	MaxPlayers() int

	// NewState builds the initial serialized state for the given options.
	// Dimensions below the engine's minimum are clamped, not rejected.
	NewState(opts Options) (json.RawMessage, error)

	// Validate checks a move against the state for the acting player.
	// Returns nil if legal, or an error naming the failure reason.
	// Must not mutate state.
	Validate(state, move json.RawMessage, player string) error

	// Apply executes an already-validated move and returns the new state
	// plus any semantic events.
	Apply(state, move json.RawMessage, player string) (Result, error)

	// SupportsUndo reports whether Undo is available for this game.
	SupportsUndo() bool

	// Undo reverts exactly the most recent move. Returns an error if
	// there is no recorded move to revert.
	Undo(state json.RawMessage) (json.RawMessage, error)
}

// Common holds the fields every serialized game state must expose.
// The coordinator peeks at these without knowing the concrete game.
type Common struct {
	Players       []string       `json:"players"`
	CurrentPlayer string         `json:"currentPlayer"`
	Finished      bool           `json:"finished"`
	Scores        map[string]int `json:"scores,omitempty"`
	LastMove      *LastMove      `json:"lastMove,omitempty"`
}

// LastMove identifies the most recent applied move, used by the undo
// negotiation to decide who may request a reversal.
type LastMove struct {
	Player string `json:"player"`
}

// Peek decodes the common fields out of a serialized state.
func Peek(state json.RawMessage) (Common, error) {
	var c Common
	if err := json.Unmarshal(state, &c); err != nil {
		return Common{}, fmt.Errorf("decode game state: %w", err)
	}
	return c, nil
}

// Info is the registry listing entry exposed on the admin surface.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry is an immutable gameId -> Engine table. Build it once at
// process start and pass it by reference; there is no mutable global.
type Registry struct {
	byID  map[string]Engine
	order []string
}

// ErrUnknownGame is returned when a gameId has no registered engine.
var ErrUnknownGame = errors.New("unknown_game")

// NewRegistry builds a registry from the given engines.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{byID: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		if _, dup := r.byID[e.ID()]; dup {
			continue
		}
		r.byID[e.ID()] = e
		r.order = append(r.order, e.ID())
	}
	return r
}

// Get returns the engine registered under id.
func (r *Registry) Get(id string) (Engine, error) {
	e, ok := r.byID[id]
	if !ok {
		return nil, ErrUnknownGame
	}
	return e, nil
}

// List returns the registered games in registration order.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		e := r.byID[id]
		out = append(out, Info{ID: e.ID(), Name: e.Name()})
	}
	return out
}
