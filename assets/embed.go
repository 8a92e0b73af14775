package assets

import (
	"embed"
)

//go:embed puzzle.json
var FS embed.FS

// DefaultPuzzle returns the raw JSON of the puzzle shipped with the server.
func DefaultPuzzle() ([]byte, error) {
	return FS.ReadFile("puzzle.json")
}
