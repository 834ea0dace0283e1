// internal/game/dots.go
//
// Dots and Boxes rule engine.
// Responsibilities:
//   - Create initial states for an R×C box grid ((R+1)×(C+1) dots).
//   - Validate moves: turn order, adjacency, bounds, duplicate edges.
//   - Apply moves with chain-reaction scoring: completing one or more
//     boxes claims them and grants the same player another turn.
//   - Revert exactly the most recent move for the undo negotiation.
//
// Notes:
//   - Edge keys are canonical: both endpoint strings sorted and joined
//     with "|", so (a,b) and (b,a) name the same edge.
//   - All arithmetic is integer; no floating point enters this package.

package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validation failure reasons surfaced to the acting client.
var (
	ErrGameFinished  = errors.New("game is finished")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrMissingEdge   = errors.New("missing edge endpoints")
	ErrNotAdjacent   = errors.New("dots must be adjacent")
	ErrOutOfBounds   = errors.New("out of bounds")
	ErrEdgeTaken     = errors.New("edge already taken")
	ErrNothingToUndo = errors.New("nothing to undo")
)

const (
	// DotsID is the registry identifier for this engine.
	DotsID = "dots-and-boxes"

	minDim = 2 // smallest supported box grid; callers clamp to 5..40
)

// dotsState is the serialized Dots and Boxes state. Field names embed
// the Common contract (players/currentPlayer/finished/scores/lastMove).
type dotsState struct {
	Players        []string          `json:"players"`
	CurrentPlayer  string            `json:"currentPlayer"`
	Finished       bool              `json:"finished"`
	Rows           int               `json:"rows"`
	Cols           int               `json:"cols"`
	Edges          map[string]int    `json:"edges"`      // canonical edge key -> 1
	EdgeOwners     map[string]string `json:"edgeOwners"` // edge key -> claiming player
	Owners         map[string]string `json:"owners"`     // "r,c" cell key -> owning player
	RemainingEdges int               `json:"remainingEdges"`
	Scores         map[string]int    `json:"scores"`
	LastMove       *dotsLastMove     `json:"lastMove,omitempty"`
}

// dotsLastMove records just enough of the most recent move to revert it.
type dotsLastMove struct {
	Player string   `json:"player"`
	Edge   string   `json:"edge"`
	Cells  []string `json:"cells,omitempty"` // cells claimed by this move
}

// dotsMove is the wire payload: two dot coordinates as [row, col] pairs.
type dotsMove struct {
	A []int `json:"a"`
	B []int `json:"b"`
}

// Dots is the Dots and Boxes Engine implementation.
type Dots struct{}

// NewDots returns the Dots and Boxes engine.
func NewDots() Dots { return Dots{} }

func (Dots) ID() string      { return DotsID }
func (Dots) Name() string    { return "Dots & Boxes" }
func (Dots) MinPlayers() int { return 2 }
func (Dots) MaxPlayers() int { return 2 }

func (Dots) SupportsUndo() bool { return true }

// totalEdges for an R×C box grid: (R+1) rows of C horizontal edges plus
// (C+1) columns of R vertical edges.
func totalEdges(rows, cols int) int {
	return (rows+1)*cols + (cols+1)*rows
}

// NewState builds an empty board. Dimensions below 2 are clamped up;
// a missing player list defaults to p1/p2.
func (Dots) NewState(opts Options) (json.RawMessage, error) {
	rows, cols := opts.Rows, opts.Cols
	if rows < minDim {
		rows = minDim
	}
	if cols < minDim {
		cols = minDim
	}
	players := opts.Players
	if len(players) == 0 {
		players = []string{"p1", "p2"}
	}

	scores := make(map[string]int, len(players))
	for _, p := range players {
		scores[p] = 0
	}

	st := dotsState{
		Players:        players,
		CurrentPlayer:  players[0],
		Rows:           rows,
		Cols:           cols,
		Edges:          map[string]int{},
		EdgeOwners:     map[string]string{},
		Owners:         map[string]string{},
		RemainingEdges: totalEdges(rows, cols),
		Scores:         scores,
	}
	return json.Marshal(st)
}

// Validate checks a proposed edge claim without mutating state.
func (Dots) Validate(state, move json.RawMessage, player string) error {
	var st dotsState
	if err := json.Unmarshal(state, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if st.Finished {
		return ErrGameFinished
	}
	if player != st.CurrentPlayer {
		return ErrNotYourTurn
	}

	var mv dotsMove
	if err := json.Unmarshal(move, &mv); err != nil || len(mv.A) != 2 || len(mv.B) != 2 {
		return ErrMissingEdge
	}
	if !adjacent(mv.A, mv.B) {
		return ErrNotAdjacent
	}
	r1, c1, r2, c2 := mv.A[0], mv.A[1], mv.B[0], mv.B[1]
	if r1 < 0 || c1 < 0 || r2 < 0 || c2 < 0 {
		return ErrOutOfBounds
	}
	// Dot coordinates run 0..rows / 0..cols inclusive.
	if r1 > st.Rows || r2 > st.Rows || c1 > st.Cols || c2 > st.Cols {
		return ErrOutOfBounds
	}

	if _, taken := st.Edges[edgeKey(mv.A, mv.B)]; taken {
		return ErrEdgeTaken
	}
	return nil
}

// Apply executes an already-validated move.
//
// Claiming the fourth edge of a box assigns the box to the acting player
// and grants an extra turn; a single edge can complete two boxes at once
// (both candidates are checked independently). Turn advances only when
// no box was completed.
func (Dots) Apply(state, move json.RawMessage, player string) (Result, error) {
	var st dotsState
	if err := json.Unmarshal(state, &st); err != nil {
		return Result{}, fmt.Errorf("decode state: %w", err)
	}
	var mv dotsMove
	if err := json.Unmarshal(move, &mv); err != nil {
		return Result{}, fmt.Errorf("decode move: %w", err)
	}

	k := edgeKey(mv.A, mv.B)
	st.Edges[k] = 1
	st.EdgeOwners[k] = player

	// The 1 or 2 cells bounded by the new edge.
	var candidates [][2]int
	r1, c1 := mv.A[0], mv.A[1]
	r2, c2 := mv.B[0], mv.B[1]
	if r1 == r2 { // horizontal edge
		r, c := r1, minInt(c1, c2)
		if r > 0 {
			candidates = append(candidates, [2]int{r - 1, c}) // cell above
		}
		if r < st.Rows {
			candidates = append(candidates, [2]int{r, c}) // cell below
		}
	} else { // vertical edge
		c, r := c1, minInt(r1, r2)
		if c > 0 {
			candidates = append(candidates, [2]int{r, c - 1}) // cell left
		}
		if c < st.Cols {
			candidates = append(candidates, [2]int{r, c}) // cell right
		}
	}

	var claimed []string
	for _, cell := range candidates {
		if !cellComplete(st.Edges, cell[0], cell[1]) {
			continue
		}
		ck := fmt.Sprintf("%d,%d", cell[0], cell[1])
		if _, owned := st.Owners[ck]; owned {
			continue
		}
		st.Owners[ck] = player
		claimed = append(claimed, ck)
	}

	if len(claimed) > 0 {
		st.Scores[player] += len(claimed)
		// extra turn: currentPlayer unchanged
	} else {
		st.CurrentPlayer = nextPlayer(st.Players, st.CurrentPlayer)
	}

	st.RemainingEdges = totalEdges(st.Rows, st.Cols) - len(st.Edges)
	if st.RemainingEdges <= 0 {
		st.Finished = true
	}
	st.LastMove = &dotsLastMove{Player: player, Edge: k, Cells: claimed}

	raw, err := json.Marshal(st)
	if err != nil {
		return Result{}, err
	}
	res := Result{State: raw}
	if n := len(claimed); n > 0 {
		res.Events = []Event{{Type: "score", Payload: map[string]any{"player": player, "boxes": n}}}
	}
	return res, nil
}

// Undo reverts the most recent move: the edge is released, any boxes it
// claimed are unclaimed, the score is rolled back, and the turn returns
// to the mover. Only one move deep; a second Undo without an intervening
// move fails.
func (Dots) Undo(state json.RawMessage) (json.RawMessage, error) {
	var st dotsState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	lm := st.LastMove
	if lm == nil {
		return nil, ErrNothingToUndo
	}

	delete(st.Edges, lm.Edge)
	delete(st.EdgeOwners, lm.Edge)
	for _, ck := range lm.Cells {
		delete(st.Owners, ck)
	}
	if n := len(lm.Cells); n > 0 {
		st.Scores[lm.Player] -= n
	}

	// A legal move always came from the mover's own turn.
	st.CurrentPlayer = lm.Player
	st.RemainingEdges = totalEdges(st.Rows, st.Cols) - len(st.Edges)
	st.Finished = st.RemainingEdges <= 0
	st.LastMove = nil

	return json.Marshal(st)
}

// edgeKey canonicalizes an edge: both endpoints rendered "r,c", sorted
// lexicographically, joined with "|".
func edgeKey(a, b []int) string {
	k1 := fmt.Sprintf("%d,%d", a[0], a[1])
	k2 := fmt.Sprintf("%d,%d", b[0], b[1])
	if k1 < k2 {
		return k1 + "|" + k2
	}
	return k2 + "|" + k1
}

// adjacent reports whether two dots differ by exactly 1 in exactly one axis.
func adjacent(a, b []int) bool {
	dr := absInt(a[0] - b[0])
	dc := absInt(a[1] - b[1])
	return (dr == 1 && dc == 0) || (dr == 0 && dc == 1)
}

// cellEdges returns the four canonical edge keys bounding cell (r,c).
func cellEdges(r, c int) [4]string {
	return [4]string{
		edgeKey([]int{r, c}, []int{r, c + 1}),         // top
		edgeKey([]int{r, c + 1}, []int{r + 1, c + 1}), // right
		edgeKey([]int{r + 1, c}, []int{r + 1, c + 1}), // bottom
		edgeKey([]int{r, c}, []int{r + 1, c}),         // left
	}
}

// cellComplete reports whether all four bounding edges of (r,c) are taken.
func cellComplete(edges map[string]int, r, c int) bool {
	for _, e := range cellEdges(r, c) {
		if _, ok := edges[e]; !ok {
			return false
		}
	}
	return true
}

// nextPlayer advances through the fixed rotation with wrap-around.
func nextPlayer(players []string, cur string) string {
	for i, p := range players {
		if p == cur {
			return players[(i+1)%len(players)]
		}
	}
	return players[0]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
