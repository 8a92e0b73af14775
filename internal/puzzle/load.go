// apps/go-server/internal/puzzle/load.go
//
// Loading of the puzzle definition.
//
// Sources:
//   1. A JSON file, when a path is configured (PUZZLE_FILE).
//   2. Otherwise the embedded default from the assets package.
//
// The embedded default is parsed once (sync.Once) and shared.

package puzzle

import (
	"fmt"
	"os"
	"sync"

	"github.com/robalobadob/connections/apps/go-server/assets"
)

var (
	defaultOnce sync.Once
	defaultDef  *Definition
	defaultErr  error
)

// Default returns the embedded puzzle.
func Default() (*Definition, error) {
	defaultOnce.Do(func() {
		raw, err := assets.DefaultPuzzle()
		if err != nil {
			defaultErr = fmt.Errorf("read embedded puzzle: %w", err)
			return
		}
		defaultDef, defaultErr = Parse(raw)
	})
	return defaultDef, defaultErr
}

// Load reads the puzzle at path, or the embedded default when path is empty.
func Load(path string) (*Definition, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read puzzle %s: %w", path, err)
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
