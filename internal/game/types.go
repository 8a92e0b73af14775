// apps/go-server/internal/game/types.go
//
// Core type definitions for the Connections game engine.
// Defines:
//   - Status: coarse session state (playing / mistakes_exhausted / won / lost).
//   - Result: what a single intent did to the session.
//   - Signal: a transient feedback instruction for the host to time out.
//   - RevealedGroup: a solved or force-revealed category summary.
//   - View: a read-only snapshot for rendering.

package game

import (
	"time"

	"github.com/robalobadob/connections/apps/go-server/internal/pool"
)

// Status is the coarse state of a session.
type Status string

const (
	StatusPlaying   Status = "playing"
	StatusExhausted Status = "mistakes_exhausted"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
)

// Result describes the effect of Submit or RevealRemaining.
type Result string

const (
	ResultIgnored           Result = "ignored"
	ResultGroupSolved       Result = "group_solved"
	ResultAllSolved         Result = "all_solved"
	ResultMistake           Result = "mistake"
	ResultMistakesExhausted Result = "mistakes_exhausted"
	ResultRevealed          Result = "revealed"
)

// LossRule selects what happens when the last mistake is spent.
type LossRule int

const (
	// LossReveal moves to StatusExhausted; the player then reveals the rest.
	LossReveal LossRule = iota
	// LossImmediate ends the game at once with StatusLost.
	LossImmediate
)

// ParseLossRule maps a config string ("reveal" | "immediate") to a LossRule.
func ParseLossRule(s string) (LossRule, bool) {
	switch s {
	case "", "reveal":
		return LossReveal, true
	case "immediate":
		return LossImmediate, true
	}
	return LossReveal, false
}

// SignalKind names one of the transient feedback channels.
type SignalKind string

const (
	SignalMessage SignalKind = "message"
	SignalFlash   SignalKind = "flash"
)

// Signal tells the host that a transient value changed at sequence Seq.
// TTL > 0 asks for expiry after TTL; TTL == 0 means the value was cleared
// and any pending expiry can be dropped.
type Signal struct {
	Kind SignalKind
	Seq  uint64
	TTL  time.Duration
}

// Outcome is returned by state-changing operations.
type Outcome struct {
	Result  Result
	Group   *RevealedGroup // set when a group was solved
	Signals []Signal
}

// RevealedGroup is the rendered summary of a category.
type RevealedGroup struct {
	CategoryID string   `json:"categoryId"`
	Title      string   `json:"title"`
	Words      string   `json:"words"`    // joined in category order
	WordList   []string `json:"wordList"` // category order
	Color      string   `json:"color"`
	Order      int      `json:"order"`  // difficulty
	Solved     bool     `json:"solved"` // false when force-revealed
}

// View is an immutable snapshot of a session for rendering.
type View struct {
	ID                string
	Status            Status
	Pool              []pool.Tile
	Selection         []pool.Tile
	Flashed           []pool.Tile
	Revealed          []RevealedGroup
	MistakesRemaining int
	Message           string
	CanSubmit         bool
	CanReveal         bool
}

// Selected reports whether t is in the view's selection.
func (v View) Selected(t pool.Tile) bool { return pool.Contains(v.Selection, t) }

// IsFlashed reports whether t is currently highlighted as part of a wrong guess.
func (v View) IsFlashed(t pool.Tile) bool { return pool.Contains(v.Flashed, t) }
