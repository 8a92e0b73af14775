// apps/go-server/internal/pool/pool.go
//
// Word pool for a Connections session.
// Responsibilities:
//   - Flatten a puzzle definition into tiles tagged with their category id.
//   - Shuffle tiles uniformly (Fisher–Yates).
//   - Remove solved tiles while keeping the survivors' order.
//
// Pools are plain slices; every operation that shrinks a pool returns a new slice
// and never mutates its input.

package pool

import (
	"math/rand/v2"
	"strings"

	"github.com/robalobadob/connections/apps/go-server/internal/puzzle"
)

// Tile is a single word shown to the player, tagged with its owning category.
type Tile struct {
	Word       string `json:"word"`
	CategoryID string `json:"categoryId"`
}

// Initialize builds the full, shuffled pool for a definition.
// A nil rng uses the global math/rand/v2 source.
func Initialize(def *puzzle.Definition, rng *rand.Rand) []Tile {
	cats := def.Categories()
	tiles := make([]Tile, 0, len(cats)*puzzle.GroupSize)
	for _, c := range cats {
		for _, w := range c.Words {
			tiles = append(tiles, Tile{Word: w, CategoryID: c.ID})
		}
	}
	Shuffle(tiles, rng)
	return tiles
}

// Shuffle permutes tiles in place: for i from the last index down to 1,
// swap i with a uniformly chosen j in [0, i].
func Shuffle(tiles []Tile, rng *rand.Rand) {
	for i := len(tiles) - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
}

// Remove returns p without the given tiles, preserving the relative order of the rest.
func Remove(p []Tile, tiles ...Tile) []Tile {
	drop := make(map[Tile]struct{}, len(tiles))
	for _, t := range tiles {
		drop[t] = struct{}{}
	}
	out := make([]Tile, 0, len(p))
	for _, t := range p {
		if _, ok := drop[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// Clear returns an empty pool.
func Clear([]Tile) []Tile { return []Tile{} }

// Contains reports whether t is in p.
func Contains(p []Tile, t Tile) bool {
	for _, x := range p {
		if x == t {
			return true
		}
	}
	return false
}

// Find looks up a tile by word (case-insensitive, surrounding space ignored).
func Find(p []Tile, word string) (Tile, bool) {
	word = strings.TrimSpace(word)
	for _, t := range p {
		if strings.EqualFold(t.Word, word) {
			return t, true
		}
	}
	return Tile{}, false
}
