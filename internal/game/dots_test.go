// internal/game/dots_test.go
//
// Rule-engine tests for Dots and Boxes: initial state, validation
// taxonomy, chain-reaction scoring, board-exhaustion invariants, and
// one-move undo.

package game_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashanddots/go-server/internal/game"
)

// dotsView mirrors the serialized state shape for assertions.
type dotsView struct {
	Players        []string          `json:"players"`
	CurrentPlayer  string            `json:"currentPlayer"`
	Finished       bool              `json:"finished"`
	Rows           int               `json:"rows"`
	Cols           int               `json:"cols"`
	Edges          map[string]int    `json:"edges"`
	EdgeOwners     map[string]string `json:"edgeOwners"`
	Owners         map[string]string `json:"owners"`
	RemainingEdges int               `json:"remainingEdges"`
	Scores         map[string]int    `json:"scores"`
}

func decode(t *testing.T, raw json.RawMessage) dotsView {
	t.Helper()
	var v dotsView
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func mv(r1, c1, r2, c2 int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"a":[%d,%d],"b":[%d,%d]}`, r1, c1, r2, c2))
}

func newBoard(t *testing.T, rows, cols int) json.RawMessage {
	t.Helper()
	st, err := game.NewDots().NewState(game.Options{
		Rows: rows, Cols: cols, Players: []string{"p1", "p2"},
	})
	require.NoError(t, err)
	return st
}

// apply validates then applies, failing the test on any error.
func apply(t *testing.T, st json.RawMessage, move json.RawMessage, player string) (json.RawMessage, []game.Event) {
	t.Helper()
	eng := game.NewDots()
	require.NoError(t, eng.Validate(st, move, player))
	res, err := eng.Apply(st, move, player)
	require.NoError(t, err)
	return res.State, res.Events
}

func TestNewState_3x3(t *testing.T) {
	st := decode(t, newBoard(t, 3, 3))

	// (rows+1)*cols + (cols+1)*rows = 4*3 + 4*3.
	assert.Equal(t, 24, st.RemainingEdges)
	assert.Equal(t, "p1", st.CurrentPlayer)
	assert.Empty(t, st.Edges)
	assert.Empty(t, st.Owners)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, st.Scores)
	assert.False(t, st.Finished)
}

func TestNewState_ClampsDimensions(t *testing.T) {
	raw, err := game.NewDots().NewState(game.Options{Rows: 0, Cols: 1, Players: []string{"a", "b"}})
	require.NoError(t, err)
	st := decode(t, raw)
	assert.Equal(t, 2, st.Rows)
	assert.Equal(t, 2, st.Cols)
}

func TestValidate(t *testing.T) {
	eng := game.NewDots()

	tests := []struct {
		name    string
		move    json.RawMessage
		player  string
		wantErr error
	}{
		{"ok horizontal", mv(0, 0, 0, 1), "p1", nil},
		{"ok vertical", mv(1, 1, 2, 1), "p1", nil},
		{"wrong turn", mv(0, 0, 0, 1), "p2", game.ErrNotYourTurn},
		{"missing endpoints", json.RawMessage(`{"a":[0,0]}`), "p1", game.ErrMissingEdge},
		{"malformed payload", json.RawMessage(`"nope"`), "p1", game.ErrMissingEdge},
		{"not adjacent", mv(0, 0, 0, 2), "p1", game.ErrNotAdjacent},
		{"diagonal", mv(0, 0, 1, 1), "p1", game.ErrNotAdjacent},
		{"negative coordinate", mv(-1, 0, 0, 0), "p1", game.ErrOutOfBounds},
		{"row beyond dot range", mv(4, 0, 5, 0), "p1", game.ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newBoard(t, 3, 3)
			err := eng.Validate(st, tt.move, tt.player)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_FinishedGame(t *testing.T) {
	eng := game.NewDots()
	st := playOut(t, 2, 2)
	require.True(t, decode(t, st).Finished)
	assert.ErrorIs(t, eng.Validate(st, mv(0, 0, 0, 1), decode(t, st).CurrentPlayer), game.ErrGameFinished)
}

func TestValidate_EdgeAlreadyTaken(t *testing.T) {
	eng := game.NewDots()
	st := newBoard(t, 3, 3)
	st, _ = apply(t, st, mv(0, 0, 0, 1), "p1")

	// Same edge in either endpoint order must be rejected.
	assert.ErrorIs(t, eng.Validate(st, mv(0, 0, 0, 1), "p2"), game.ErrEdgeTaken)
	assert.ErrorIs(t, eng.Validate(st, mv(0, 1, 0, 0), "p2"), game.ErrEdgeTaken)
}

func TestApply_TurnAdvancesWithoutBox(t *testing.T) {
	st, events := apply(t, newBoard(t, 3, 3), mv(0, 0, 0, 1), "p1")
	v := decode(t, st)
	assert.Equal(t, "p2", v.CurrentPlayer)
	assert.Equal(t, 23, v.RemainingEdges)
	assert.Equal(t, "p1", v.EdgeOwners["0,0|0,1"])
	assert.Empty(t, events)
}

func TestApply_CompletingBoxScoresAndKeepsTurn(t *testing.T) {
	st := newBoard(t, 3, 3)

	// Three sides of cell (0,0), alternating turns without completions.
	st, _ = apply(t, st, mv(0, 0, 0, 1), "p1") // top
	st, _ = apply(t, st, mv(0, 0, 1, 0), "p2") // left
	st, _ = apply(t, st, mv(0, 1, 1, 1), "p1") // right

	// p2 closes the box with the bottom edge.
	st, events := apply(t, st, mv(1, 0, 1, 1), "p2")
	v := decode(t, st)

	assert.Equal(t, "p2", v.Owners["0,0"])
	assert.Equal(t, 1, v.Scores["p2"])
	assert.Equal(t, "p2", v.CurrentPlayer, "box completion grants an extra turn")
	require.Len(t, events, 1)
	assert.Equal(t, "score", events[0].Type)
	assert.Equal(t, map[string]any{"player": "p2", "boxes": 1}, events[0].Payload)
}

func TestApply_DoubleCrossCompletesTwoBoxes(t *testing.T) {
	st := newBoard(t, 2, 2)

	// Fill every edge of cells (0,0) and (0,1) except their shared edge.
	// None of these six moves completes a box, so turns alternate and
	// the seventh move comes back to p1.
	st, _ = apply(t, st, mv(0, 0, 0, 1), "p1") // (0,0) top
	st, _ = apply(t, st, mv(0, 0, 1, 0), "p2") // (0,0) left
	st, _ = apply(t, st, mv(1, 0, 1, 1), "p1") // (0,0) bottom
	st, _ = apply(t, st, mv(0, 1, 0, 2), "p2") // (0,1) top
	st, _ = apply(t, st, mv(0, 2, 1, 2), "p1") // (0,1) right
	st, _ = apply(t, st, mv(1, 1, 1, 2), "p2") // (0,1) bottom

	// The shared edge closes both cells at once.
	st, events := apply(t, st, mv(0, 1, 1, 1), "p1")
	v := decode(t, st)

	assert.Equal(t, "p1", v.Owners["0,0"])
	assert.Equal(t, "p1", v.Owners["0,1"])
	assert.Equal(t, 2, v.Scores["p1"])
	assert.Equal(t, "p1", v.CurrentPlayer)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{"player": "p1", "boxes": 2}, events[0].Payload)
}

// playOut claims every edge of a rows×cols board in scan order, always
// acting as whoever holds the turn.
func playOut(t *testing.T, rows, cols int) json.RawMessage {
	t.Helper()
	_ = game.NewDots()
	st := newBoard(t, rows, cols)

	turn := func() string {
		c, err := game.Peek(st)
		require.NoError(t, err)
		return c.CurrentPlayer
	}

	// Horizontal edges.
	for r := 0; r <= rows; r++ {
		for c := 0; c < cols; c++ {
			st, _ = apply(t, st, mv(r, c, r, c+1), turn())
		}
	}
	// Vertical edges.
	for c := 0; c <= cols; c++ {
		for r := 0; r < rows; r++ {
			st, _ = apply(t, st, mv(r, c, r+1, c), turn())
		}
	}
	return st
}

func TestApply_FullGameInvariants(t *testing.T) {
	st := playOut(t, 2, 2)
	v := decode(t, st)

	assert.True(t, v.Finished)
	assert.Zero(t, v.RemainingEdges)
	assert.Len(t, v.Edges, 12) // 3*2 + 3*2
	assert.Len(t, v.Owners, 4)
	assert.Equal(t, 4, v.Scores["p1"]+v.Scores["p2"], "every box is owned exactly once")
}

func TestApply_RemainingEdgesInvariant(t *testing.T) {
	st := newBoard(t, 3, 4)
	total := 4*4 + 5*3

	moves := []struct {
		m json.RawMessage
		p string
	}{
		{mv(0, 0, 0, 1), "p1"},
		{mv(2, 2, 3, 2), "p2"},
		{mv(1, 1, 1, 2), "p1"},
	}
	for i, step := range moves {
		var events []game.Event
		st, events = apply(t, st, step.m, step.p)
		_ = events
		v := decode(t, st)
		assert.Equal(t, total-(i+1), v.RemainingEdges)
		assert.Len(t, v.Edges, i+1)
	}
}

func TestUndo_RevertsLastMove(t *testing.T) {
	eng := game.NewDots()
	st := newBoard(t, 3, 3)

	before := decode(t, st)
	after, _ := apply(t, st, mv(0, 0, 0, 1), "p1")

	restored, err := eng.Undo(after)
	require.NoError(t, err)
	v := decode(t, restored)

	assert.Equal(t, before.Edges, v.Edges)
	assert.Equal(t, before.RemainingEdges, v.RemainingEdges)
	assert.Equal(t, "p1", v.CurrentPlayer, "turn returns to the mover")
}

func TestUndo_RevertsBoxAndScore(t *testing.T) {
	eng := game.NewDots()
	st := newBoard(t, 3, 3)
	st, _ = apply(t, st, mv(0, 0, 0, 1), "p1")
	st, _ = apply(t, st, mv(0, 0, 1, 0), "p2")
	st, _ = apply(t, st, mv(0, 1, 1, 1), "p1")
	st, _ = apply(t, st, mv(1, 0, 1, 1), "p2") // closes (0,0)

	require.Equal(t, 1, decode(t, st).Scores["p2"])

	restored, err := eng.Undo(st)
	require.NoError(t, err)
	v := decode(t, restored)

	assert.Zero(t, v.Scores["p2"])
	assert.NotContains(t, v.Owners, "0,0")
	assert.NotContains(t, v.Edges, "1,0|1,1")
	assert.Equal(t, "p2", v.CurrentPlayer)
}

func TestUndo_OnlyOneMoveDeep(t *testing.T) {
	eng := game.NewDots()
	st := newBoard(t, 3, 3)
	st, _ = apply(t, st, mv(0, 0, 0, 1), "p1")

	restored, err := eng.Undo(st)
	require.NoError(t, err)

	_, err = eng.Undo(restored)
	assert.ErrorIs(t, err, game.ErrNothingToUndo)
}

func TestUndo_FreshBoard(t *testing.T) {
	_, err := game.NewDots().Undo(newBoard(t, 3, 3))
	assert.ErrorIs(t, err, game.ErrNothingToUndo)
}

func TestRegistry(t *testing.T) {
	reg := game.NewRegistry(game.NewDots())

	eng, err := reg.Get(game.DotsID)
	require.NoError(t, err)
	assert.Equal(t, game.DotsID, eng.ID())

	_, err = reg.Get("chess")
	assert.ErrorIs(t, err, game.ErrUnknownGame)

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Dots & Boxes", list[0].Name)
}

func TestPeek(t *testing.T) {
	st := newBoard(t, 3, 3)
	c, err := game.Peek(st)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, c.Players)
	assert.Equal(t, "p1", c.CurrentPlayer)
	assert.Nil(t, c.LastMove)

	st, _ = apply(t, st, mv(0, 0, 0, 1), "p1")
	c, err = game.Peek(st)
	require.NoError(t, err)
	require.NotNil(t, c.LastMove)
	assert.Equal(t, "p1", c.LastMove.Player)
}
