package httpserver

import "github.com/robalobadob/connections/apps/go-server/internal/game"

// Wire shapes sent to clients. Category ids stay on the server: a tile only
// says whether it is selected or flashed.

type tileDTO struct {
	Word     string `json:"word"`
	Selected bool   `json:"selected"`
	Flashed  bool   `json:"flashed"`
}

type groupDTO struct {
	Title    string   `json:"title"`
	Words    string   `json:"words"`
	WordList []string `json:"wordList"`
	Color    string   `json:"color"`
	Order    int      `json:"order"`
	Solved   bool     `json:"solved"`
}

type viewDTO struct {
	GameID            string     `json:"gameId"`
	State             string     `json:"state"`
	Tiles             []tileDTO  `json:"tiles"`
	Revealed          []groupDTO `json:"revealed"`
	MistakesRemaining int        `json:"mistakesRemaining"`
	Message           string     `json:"message"`
	CanSubmit         bool       `json:"canSubmit"`
	CanReveal         bool       `json:"canReveal"`
}

func newGroupDTO(g game.RevealedGroup) groupDTO {
	return groupDTO{
		Title:    g.Title,
		Words:    g.Words,
		WordList: g.WordList,
		Color:    g.Color,
		Order:    g.Order,
		Solved:   g.Solved,
	}
}

func newViewDTO(v game.View) viewDTO {
	out := viewDTO{
		GameID:            v.ID,
		State:             string(v.Status),
		Tiles:             make([]tileDTO, 0, len(v.Pool)),
		Revealed:          make([]groupDTO, 0, len(v.Revealed)),
		MistakesRemaining: v.MistakesRemaining,
		Message:           v.Message,
		CanSubmit:         v.CanSubmit,
		CanReveal:         v.CanReveal,
	}
	for _, t := range v.Pool {
		out.Tiles = append(out.Tiles, tileDTO{Word: t.Word, Selected: v.Selected(t), Flashed: v.IsFlashed(t)})
	}
	for _, g := range v.Revealed {
		out.Revealed = append(out.Revealed, newGroupDTO(g))
	}
	return out
}
