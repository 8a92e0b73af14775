// apps/go-server/internal/puzzle/puzzle.go
//
// Static puzzle definition for a Connections game.
// Defines:
//   - Category: one hidden group (title, difficulty, four words) with a stable id.
//   - Definition: the validated set of four categories.
//
// Category ids are derived from titles exactly once, at load time (see Slug).
// A Definition is immutable after New returns.

package puzzle

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	// GroupCount is the number of hidden categories in a puzzle.
	GroupCount = 4
	// GroupSize is the number of words in each category.
	GroupSize = 4
)

var (
	ErrGroupCount    = errors.New("puzzle: wrong number of groups")
	ErrGroupSize     = errors.New("puzzle: wrong number of words in group")
	ErrDifficulty    = errors.New("puzzle: difficulties must be a permutation of 1..4")
	ErrEmptyTitle    = errors.New("puzzle: group title is empty")
	ErrEmptyWord     = errors.New("puzzle: word is empty")
	ErrDuplicateWord = errors.New("puzzle: duplicate word")
	ErrIDCollision   = errors.New("puzzle: group ids collide")
)

// Category is one of the four hidden word groupings.
type Category struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Difficulty int      `json:"difficulty"`
	Words      []string `json:"words"`
}

// GroupSpec is the on-disk shape of a category (no id; it is derived).
type GroupSpec struct {
	Title      string   `json:"title"`
	Difficulty int      `json:"difficulty"`
	Words      []string `json:"words"`
}

// file is the JSON document accepted by Parse.
type file struct {
	Name   string      `json:"name"`
	Groups []GroupSpec `json:"groups"`
}

// Definition holds a validated puzzle.
type Definition struct {
	name       string
	categories []Category
	byID       map[string]int
}

// New validates groups and builds a Definition.
func New(name string, groups []GroupSpec) (*Definition, error) {
	if len(groups) != GroupCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrGroupCount, len(groups), GroupCount)
	}

	d := &Definition{
		name:       strings.TrimSpace(name),
		categories: make([]Category, 0, GroupCount),
		byID:       make(map[string]int, GroupCount),
	}
	var seenDifficulty [GroupCount + 1]bool
	seenWords := make(map[string]string, GroupCount*GroupSize)

	for _, g := range groups {
		title := strings.TrimSpace(g.Title)
		if title == "" {
			return nil, ErrEmptyTitle
		}
		if g.Difficulty < 1 || g.Difficulty > GroupCount || seenDifficulty[g.Difficulty] {
			return nil, fmt.Errorf("%w: %q has %d", ErrDifficulty, title, g.Difficulty)
		}
		seenDifficulty[g.Difficulty] = true

		if len(g.Words) != GroupSize {
			return nil, fmt.Errorf("%w: %q has %d", ErrGroupSize, title, len(g.Words))
		}
		words := make([]string, 0, GroupSize)
		for _, w := range g.Words {
			w = strings.TrimSpace(w)
			if w == "" {
				return nil, fmt.Errorf("%w: in %q", ErrEmptyWord, title)
			}
			key := strings.ToLower(w)
			if other, ok := seenWords[key]; ok {
				return nil, fmt.Errorf("%w: %q in %q and %q", ErrDuplicateWord, w, other, title)
			}
			seenWords[key] = title
			words = append(words, w)
		}

		id := Slug(title)
		if id == "" {
			return nil, fmt.Errorf("%w: %q has no usable characters", ErrIDCollision, title)
		}
		if i, ok := d.byID[id]; ok {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrIDCollision, d.categories[i].Title, title, id)
		}
		d.byID[id] = len(d.categories)
		d.categories = append(d.categories, Category{
			ID:         id,
			Title:      title,
			Difficulty: g.Difficulty,
			Words:      words,
		})
	}
	return d, nil
}

// Parse decodes a JSON puzzle document and validates it.
func Parse(data []byte) (*Definition, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode puzzle: %w", err)
	}
	return New(f.Name, f.Groups)
}

// Name is the display name of the puzzle (may be empty).
func (d *Definition) Name() string { return d.name }

// Categories returns the categories in definition order.
func (d *Definition) Categories() []Category {
	out := make([]Category, len(d.categories))
	copy(out, d.categories)
	return out
}

// ByDifficulty returns the categories sorted by ascending difficulty.
func (d *Definition) ByDifficulty() []Category {
	out := d.Categories()
	sort.Slice(out, func(i, j int) bool { return out[i].Difficulty < out[j].Difficulty })
	return out
}

// Category looks up a category by id.
func (d *Definition) Category(id string) (Category, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Category{}, false
	}
	return d.categories[i], true
}

// Slug normalizes a title into a category id: lowercase, every run of
// non-alphanumeric characters collapsed to "_", no leading/trailing "_".
func Slug(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Color maps a difficulty to its display color tag.
func Color(difficulty int) string {
	switch difficulty {
	case 1:
		return "yellow"
	case 2:
		return "green"
	case 3:
		return "blue"
	case 4:
		return "purple"
	}
	return ""
}
