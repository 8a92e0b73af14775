// apps/go-server/internal/game/engine.go
//
// Core game engine for a single Connections session.
// Responsibilities:
//   - Build a session from a puzzle definition (shuffled pool, full mistake budget).
//   - Track the selection (at most four tiles, always drawn from the pool).
//   - Evaluate submitted selections: solve a group, or spend a mistake with a
//     near-miss hint.
//   - Reveal the remaining groups once the mistake budget is spent.
//   - Track state transitions: playing → won, playing → mistakes_exhausted → lost
//     (or playing → lost under LossImmediate).
//
// Notes:
//   - The engine owns no timers. Transient feedback (message, flash) is reported
//     as Signals; the host schedules expiry and calls Expire.
//   - Precondition violations are no-ops (ResultIgnored / false), never errors.
//   - A Session is not safe for concurrent use; hosts serialize access.
package game

import (
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zyedidia/generic/mapset"

	"github.com/robalobadob/connections/apps/go-server/internal/pool"
	"github.com/robalobadob/connections/apps/go-server/internal/puzzle"
)

const (
	// MaxMistakes is the mistake budget of a fresh session.
	MaxMistakes = 4
	// SelectionSize is the number of tiles a submission needs.
	SelectionSize = puzzle.GroupSize

	DefaultMessageTTL = 2500 * time.Millisecond
	DefaultFlashTTL   = 800 * time.Millisecond
)

// Player-facing messages.
const (
	MessageOneAway   = "One away..."
	MessageInvalid   = "Not a valid group."
	MessageWon       = "Congratulations! You found all groups!"
	MessageExhausted = "Out of mistakes! Reveal the remaining groups."
	MessageGameOver  = "Game Over! Better luck next time."
)

// Session is the mutable state of one game.
type Session struct {
	ID        string
	StartedAt time.Time

	def        *puzzle.Definition
	rule       LossRule
	rng        *rand.Rand
	messageTTL time.Duration
	flashTTL   time.Duration

	pool      []pool.Tile
	selection []pool.Tile
	flashed   []pool.Tile
	revealed  []RevealedGroup
	solvedIDs mapset.Set[string] // every revealed category id

	mistakes   int
	message    string
	status     Status
	messageSeq uint64
	flashSeq   uint64
}

// Option configures a Session at construction.
type Option func(*Session)

// WithID overrides the generated session id.
func WithID(id string) Option { return func(s *Session) { s.ID = id } }

// WithLossRule selects the behavior when the last mistake is spent.
func WithLossRule(r LossRule) Option { return func(s *Session) { s.rule = r } }

// WithRand sets the source used for the initial shuffle.
func WithRand(rng *rand.Rand) Option { return func(s *Session) { s.rng = rng } }

// WithTTLs overrides how long the message and flash signals live.
// Non-positive values keep the defaults.
func WithTTLs(message, flash time.Duration) Option {
	return func(s *Session) {
		if message > 0 {
			s.messageTTL = message
		}
		if flash > 0 {
			s.flashTTL = flash
		}
	}
}

// New starts a session for def with a freshly shuffled pool.
func New(def *puzzle.Definition, opts ...Option) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		def:        def,
		rule:       LossReveal,
		messageTTL: DefaultMessageTTL,
		flashTTL:   DefaultFlashTTL,
		solvedIDs:  mapset.New[string](),
		mistakes:   MaxMistakes,
		status:     StatusPlaying,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = pool.Initialize(def, s.rng)
	s.rng = nil
	return s
}

// Definition returns the puzzle this session plays.
func (s *Session) Definition() *puzzle.Definition { return s.def }

// Status reports the current session state.
func (s *Session) Status() Status { return s.status }

// Finished reports whether the session reached won or lost.
func (s *Session) Finished() bool { return s.status == StatusWon || s.status == StatusLost }

// MistakesRemaining reports the unspent mistake budget.
func (s *Session) MistakesRemaining() int { return s.mistakes }

// Message returns the current transient message ("" when none).
func (s *Session) Message() string { return s.message }

// SolvedCount returns how many categories the player found by submission.
func (s *Session) SolvedCount() int {
	n := 0
	for _, g := range s.revealed {
		if g.Solved {
			n++
		}
	}
	return n
}

// ------------------------------ selection ----------------------------------

// Toggle selects or deselects t.
// No-op when the session is not playing, t is not in the pool, or four
// tiles are already selected. Returns whether the selection changed.
func (s *Session) Toggle(t pool.Tile) bool {
	if s.status != StatusPlaying || !pool.Contains(s.pool, t) {
		return false
	}
	for i, x := range s.selection {
		if x == t {
			s.selection = append(s.selection[:i:i], s.selection[i+1:]...)
			return true
		}
	}
	if len(s.selection) >= SelectionSize {
		return false
	}
	s.selection = append(s.selection, t)
	return true
}

// ToggleWord resolves word in the pool and toggles that tile.
func (s *Session) ToggleWord(word string) bool {
	t, ok := pool.Find(s.pool, word)
	if !ok {
		return false
	}
	return s.Toggle(t)
}

// ClearSelection deselects everything. Returns whether anything was selected.
func (s *Session) ClearSelection() bool {
	if len(s.selection) == 0 {
		return false
	}
	s.selection = nil
	return true
}

// ------------------------------ evaluation ---------------------------------

// Submit evaluates the current selection.
// Requires exactly SelectionSize selected tiles and StatusPlaying; otherwise
// ResultIgnored with no state change.
func (s *Session) Submit() Outcome {
	if s.status != StatusPlaying || len(s.selection) != SelectionSize {
		return Outcome{Result: ResultIgnored}
	}
	picked := s.selection

	counts := make(map[string]int, SelectionSize)
	for _, t := range picked {
		counts[t.CategoryID]++
	}
	if len(counts) == 1 {
		if cat, ok := s.def.Category(picked[0].CategoryID); ok {
			s.selection = nil
			return s.solve(cat, picked)
		}
	}
	s.selection = nil
	return s.miss(picked, counts)
}

// solve reveals cat as found by the player and removes its tiles.
func (s *Session) solve(cat puzzle.Category, picked []pool.Tile) Outcome {
	g := s.reveal(cat, true)
	s.pool = pool.Remove(s.pool, picked...)

	out := Outcome{Result: ResultGroupSolved, Group: &g}
	if s.solvedIDs.Size() == len(s.def.Categories()) {
		s.status = StatusWon
		out.Result = ResultAllSolved
		s.setMessage(MessageWon, &out)
		return out
	}
	s.setMessage("", &out)
	return out
}

// miss spends a mistake, flashes the wrong tiles and sets the hint message.
func (s *Session) miss(picked []pool.Tile, counts map[string]int) Outcome {
	if s.mistakes > 0 {
		s.mistakes--
	}

	s.flashed = append([]pool.Tile(nil), picked...)
	s.flashSeq++
	out := Outcome{
		Result:  ResultMistake,
		Signals: []Signal{{Kind: SignalFlash, Seq: s.flashSeq, TTL: s.flashTTL}},
	}

	// With four tiles a count of three can only come from one category.
	msg := MessageInvalid
	for _, n := range counts {
		if n == SelectionSize-1 {
			msg = MessageOneAway
		}
	}

	if s.mistakes == 0 {
		out.Result = ResultMistakesExhausted
		if s.rule == LossImmediate {
			s.status = StatusLost
			msg = MessageGameOver
		} else {
			s.status = StatusExhausted
			msg = MessageExhausted
		}
	}
	s.setMessage(msg, &out)
	return out
}

// RevealRemaining discloses every unsolved category after the mistake
// budget is spent. Only valid in StatusExhausted; otherwise ResultIgnored.
func (s *Session) RevealRemaining() Outcome {
	if s.status != StatusExhausted {
		return Outcome{Result: ResultIgnored}
	}
	for _, c := range s.def.ByDifficulty() {
		if !s.solvedIDs.Has(c.ID) {
			s.reveal(c, false)
		}
	}
	s.pool = pool.Clear(s.pool)
	s.selection = nil
	s.status = StatusLost

	out := Outcome{Result: ResultRevealed}
	s.setMessage("", &out)
	return out
}

// reveal appends cat to the revealed list, keeping it ordered by difficulty.
func (s *Session) reveal(cat puzzle.Category, solved bool) RevealedGroup {
	g := RevealedGroup{
		CategoryID: cat.ID,
		Title:      cat.Title,
		Words:      strings.Join(cat.Words, ", "),
		WordList:   append([]string(nil), cat.Words...),
		Color:      puzzle.Color(cat.Difficulty),
		Order:      cat.Difficulty,
		Solved:     solved,
	}
	s.revealed = append(s.revealed, g)
	sort.SliceStable(s.revealed, func(i, j int) bool { return s.revealed[i].Order < s.revealed[j].Order })
	s.solvedIDs.Put(cat.ID)
	return g
}

// ------------------------------ feedback -----------------------------------

// setMessage replaces the message and records the matching signal in out.
// Clearing an already empty message emits nothing.
func (s *Session) setMessage(m string, out *Outcome) {
	if m == "" && s.message == "" {
		return
	}
	s.message = m
	s.messageSeq++
	sig := Signal{Kind: SignalMessage, Seq: s.messageSeq}
	if m != "" {
		sig.TTL = s.messageTTL
	}
	out.Signals = append(out.Signals, sig)
}

// Expire clears the signal's value if sig is still the latest for its kind.
// Stale or unknown signals are ignored. Returns whether state changed.
func (s *Session) Expire(sig Signal) bool {
	switch sig.Kind {
	case SignalMessage:
		if sig.Seq != s.messageSeq || s.message == "" {
			return false
		}
		s.message = ""
		return true
	case SignalFlash:
		if sig.Seq != s.flashSeq || len(s.flashed) == 0 {
			return false
		}
		s.flashed = nil
		return true
	}
	return false
}

// -------------------------------- view -------------------------------------

// View returns a snapshot safe to hand to renderers.
func (s *Session) View() View {
	revealed := make([]RevealedGroup, len(s.revealed))
	copy(revealed, s.revealed)
	return View{
		ID:                s.ID,
		Status:            s.status,
		Pool:              append([]pool.Tile{}, s.pool...),
		Selection:         append([]pool.Tile{}, s.selection...),
		Flashed:           append([]pool.Tile{}, s.flashed...),
		Revealed:          revealed,
		MistakesRemaining: s.mistakes,
		Message:           s.message,
		CanSubmit:         s.status == StatusPlaying && len(s.selection) == SelectionSize,
		CanReveal:         s.status == StatusExhausted,
	}
}
