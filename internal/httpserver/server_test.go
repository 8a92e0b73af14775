package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"

	"github.com/robalobadob/connections/apps/go-server/internal/config"
	"github.com/robalobadob/connections/apps/go-server/internal/feedback"
	"github.com/robalobadob/connections/apps/go-server/internal/game"
	"github.com/robalobadob/connections/apps/go-server/internal/history"
	"github.com/robalobadob/connections/apps/go-server/internal/puzzle"
	"github.com/robalobadob/connections/apps/go-server/internal/store"
)

type fixture struct {
	srv     *Server
	h       http.Handler
	def     *puzzle.Definition
	clock   *feedback.ManualClock
	history *history.Store
}

func testConfig() config.Config {
	return config.Config{
		ClientOrigin: "http://localhost:5173",
		JWTSecret:    "test_secret",
		JWTExpiry:    time.Hour,
		CookieName:   "connections_token",
		DailySalt:    "test_salt",
		LossRule:     game.LossReveal,
		IdleTimeout:  time.Hour,
	}
}

func newFixture(t *testing.T, cfg config.Config, opts ...Option) *fixture {
	t.Helper()
	def, err := puzzle.Default()
	if err != nil {
		t.Fatalf("default puzzle: %v", err)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	schema, err := os.ReadFile("../../sql/001_games.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	hist := history.NewStore(db)

	clock := feedback.NewManualClock()
	opts = append([]Option{WithHistory(hist), WithFeedbackOptions(feedback.WithScheduler(clock))}, opts...)
	srv := New(store.NewMemoryStore(), def, cfg, opts...)
	return &fixture{srv: srv, h: srv.Router(), def: def, clock: clock, history: hist}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (f *fixture) newGame(t *testing.T, mode string) newGameRes {
	t.Helper()
	body := ""
	if mode != "" {
		body = `{"mode":"` + mode + `"}`
	}
	rec := f.do(t, http.MethodPost, "/game/new", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("new game: %d %s", rec.Code, rec.Body.String())
	}
	return decode[newGameRes](t, rec)
}

func (f *fixture) toggle(t *testing.T, g newGameRes, word string) intentRes {
	t.Helper()
	body, _ := json.Marshal(toggleReq{Word: word})
	rec := f.do(t, http.MethodPost, "/game/"+g.GameID+"/toggle", g.Token, string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle %q: %d %s", word, rec.Code, rec.Body.String())
	}
	return decode[intentRes](t, rec)
}

func (f *fixture) intent(t *testing.T, g newGameRes, action string) intentRes {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/game/"+g.GameID+"/"+action, g.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("%s: %d %s", action, rec.Code, rec.Body.String())
	}
	return decode[intentRes](t, rec)
}

func (f *fixture) submitWords(t *testing.T, g newGameRes, words []string) intentRes {
	t.Helper()
	for _, w := range words {
		if res := f.toggle(t, g, w); res.Result != resultToggled {
			t.Fatalf("toggle %q: %q", w, res.Result)
		}
	}
	return f.intent(t, g, "submit")
}

// missWords picks a 2+1+1 split from the first three categories.
func (f *fixture) missWords(round int) []string {
	c := f.def.Categories()
	i := round % 2 * 2
	return []string{c[0].Words[i], c[0].Words[i+1], c[1].Words[round%4], c[2].Words[round%4]}
}

func TestHealthAndPuzzle(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/puzzle", "", "")
	got := decode[puzzleRes](t, rec)
	want := puzzleRes{Name: "MyConnections", Groups: 4, GroupSize: 4, MaxMistakes: 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("puzzle mismatch (-want +got):\n%s", diff)
	}

	rec = f.do(t, http.MethodGet, "/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestNewGame(t *testing.T) {
	f := newFixture(t, testConfig())
	rec := f.do(t, http.MethodPost, "/game/new", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("new game: %d", rec.Code)
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "connections_token" {
			cookie = c
		}
	}
	g := decode[newGameRes](t, rec)

	if g.GameID == "" || g.Token == "" || g.Date != "" {
		t.Fatalf("unexpected response: %+v", g)
	}
	if cookie == nil || cookie.Value != g.Token || cookie.Path != "/game/"+g.GameID || !cookie.HttpOnly {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
	v := g.View
	if v.State != "playing" || len(v.Tiles) != 16 || v.MistakesRemaining != 4 || v.CanSubmit || v.CanReveal {
		t.Fatalf("unexpected initial view: %+v", v)
	}
	if strings.Contains(rec.Body.String(), "categoryId") {
		t.Fatal("category ids must not be sent to clients")
	}

	got, err := f.history.Get(context.Background(), g.GameID)
	if err != nil || got.Mode != "normal" || got.Status != "playing" || got.Puzzle != "MyConnections" {
		t.Fatalf("history row: %+v %v", got, err)
	}

	if rec := f.do(t, http.MethodPost, "/game/new", "", `{"mode":"cheat"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mode: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/game/new", "", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
}

func TestWinOutOfOrder(t *testing.T) {
	f := newFixture(t, testConfig())
	g := f.newGame(t, "")

	cats := f.def.Categories()
	order := []int{3, 0, 2, 1}
	var res intentRes
	for n, i := range order {
		res = f.submitWords(t, g, cats[i].Words)
		if n < len(order)-1 && res.Result != string(game.ResultGroupSolved) {
			t.Fatalf("group %d: %q", i, res.Result)
		}
		if res.Group == nil || res.Group.Title != cats[i].Title || !res.Group.Solved {
			t.Fatalf("unexpected group: %+v", res.Group)
		}
	}
	if res.Result != string(game.ResultAllSolved) {
		t.Fatalf("last submit: %q", res.Result)
	}
	v := res.View
	if v.State != "won" || len(v.Tiles) != 0 || v.Message != game.MessageWon {
		t.Fatalf("unexpected final view: %+v", v)
	}
	var titles []string
	for _, grp := range v.Revealed {
		titles = append(titles, grp.Title)
	}
	want := []string{cats[0].Title, cats[1].Title, cats[2].Title, cats[3].Title}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Fatalf("revealed order (-want +got):\n%s", diff)
	}

	rec, err := f.history.Get(context.Background(), g.GameID)
	if err != nil || rec.Status != "won" || rec.GroupsSolved != 4 || rec.MistakesUsed != 0 || rec.FinishedAt == nil {
		t.Fatalf("history row: %+v %v", rec, err)
	}

	// Further intents are inert.
	if res := f.intent(t, g, "submit"); res.Result != string(game.ResultIgnored) {
		t.Fatalf("submit after win: %q", res.Result)
	}
}

func TestInertIntentsAreIgnored(t *testing.T) {
	f := newFixture(t, testConfig())
	g := f.newGame(t, "")

	if res := f.toggle(t, g, "Banana"); res.Result != string(game.ResultIgnored) {
		t.Fatalf("unknown word: %q", res.Result)
	}
	if res := f.intent(t, g, "clear"); res.Result != string(game.ResultIgnored) {
		t.Fatalf("clear with no selection: %q", res.Result)
	}
	words := f.def.Categories()[0].Words
	f.toggle(t, g, words[0])
	if res := f.intent(t, g, "submit"); res.Result != string(game.ResultIgnored) || res.View.MistakesRemaining != 4 {
		t.Fatalf("short submit: %+v", res)
	}
	if res := f.intent(t, g, "reveal"); res.Result != string(game.ResultIgnored) {
		t.Fatalf("reveal while playing: %q", res.Result)
	}

	res := f.intent(t, g, "clear")
	if res.Result != resultCleared {
		t.Fatalf("clear: %q", res.Result)
	}
	for _, tile := range res.View.Tiles {
		if tile.Selected {
			t.Fatalf("tile %q still selected", tile.Word)
		}
	}

	// Five words: the fifth toggle is inert.
	for _, w := range words {
		f.toggle(t, g, w)
	}
	if res := f.toggle(t, g, f.def.Categories()[1].Words[0]); res.Result != string(game.ResultIgnored) {
		t.Fatalf("fifth toggle: %q", res.Result)
	}

	rec := f.do(t, http.MethodPost, "/game/"+g.GameID+"/toggle", g.Token, "not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
}

func TestMistakesThenReveal(t *testing.T) {
	f := newFixture(t, testConfig())
	g := f.newGame(t, "")

	cats := f.def.Categories()
	f.submitWords(t, g, cats[3].Words)

	var res intentRes
	for round := range game.MaxMistakes {
		res = f.submitWords(t, g, f.missWords(round))
		if round < game.MaxMistakes-1 {
			if res.Result != string(game.ResultMistake) || res.View.Message != game.MessageInvalid {
				t.Fatalf("miss %d: %+v", round, res)
			}
		}
		flashed := 0
		for _, tile := range res.View.Tiles {
			if tile.Flashed {
				flashed++
			}
		}
		if flashed != 4 {
			t.Fatalf("miss %d flashed %d tiles", round, flashed)
		}
	}
	if res.Result != string(game.ResultMistakesExhausted) || res.View.State != "mistakes_exhausted" ||
		!res.View.CanReveal || res.View.MistakesRemaining != 0 {
		t.Fatalf("exhausted: %+v", res)
	}
	if r := f.toggle(t, g, cats[0].Words[0]); r.Result != string(game.ResultIgnored) {
		t.Fatalf("toggle after exhaustion: %q", r.Result)
	}

	res = f.intent(t, g, "reveal")
	if res.Result != string(game.ResultRevealed) || res.View.State != "lost" || len(res.View.Tiles) != 0 {
		t.Fatalf("reveal: %+v", res)
	}
	if len(res.View.Revealed) != 4 {
		t.Fatalf("revealed %d groups", len(res.View.Revealed))
	}
	for i, grp := range res.View.Revealed {
		if grp.Order != i+1 || grp.Solved != (grp.Title == cats[3].Title) {
			t.Fatalf("revealed[%d] = %+v", i, grp)
		}
	}

	row, err := f.history.Get(context.Background(), g.GameID)
	if err != nil || row.Status != "lost" || row.MistakesUsed != 4 || row.GroupsSolved != 1 {
		t.Fatalf("history row: %+v %v", row, err)
	}
}

func TestImmediateLoss(t *testing.T) {
	cfg := testConfig()
	cfg.LossRule = game.LossImmediate
	f := newFixture(t, cfg)
	g := f.newGame(t, "")

	var res intentRes
	for round := range game.MaxMistakes {
		res = f.submitWords(t, g, f.missWords(round))
	}
	if res.View.State != "lost" || res.View.Message != game.MessageGameOver || res.View.CanReveal {
		t.Fatalf("immediate loss: %+v", res.View)
	}
}

func TestMessageExpires(t *testing.T) {
	f := newFixture(t, testConfig())
	g := f.newGame(t, "")
	f.submitWords(t, g, f.missWords(0))

	f.clock.Advance(game.DefaultFlashTTL)
	v := decode[viewDTO](t, f.do(t, http.MethodGet, "/game/"+g.GameID, g.Token, ""))
	for _, tile := range v.Tiles {
		if tile.Flashed {
			t.Fatal("flash should have expired")
		}
	}
	if v.Message == "" {
		t.Fatal("message outlives the flash")
	}

	f.clock.Advance(game.DefaultMessageTTL)
	v = decode[viewDTO](t, f.do(t, http.MethodGet, "/game/"+g.GameID, g.Token, ""))
	if v.Message != "" {
		t.Fatalf("message should have expired: %q", v.Message)
	}
}

func TestDailyModeSharesTileOrder(t *testing.T) {
	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, testConfig(), WithClock(func() time.Time { return day }))

	a, b := f.newGame(t, "daily"), f.newGame(t, "daily")
	if a.Date != "2024-03-01" || b.Date != a.Date {
		t.Fatalf("dates: %q %q", a.Date, b.Date)
	}
	if diff := cmp.Diff(a.View.Tiles, b.View.Tiles); diff != "" {
		t.Fatalf("daily games differ (-a +b):\n%s", diff)
	}
	row, _ := f.history.Get(context.Background(), a.GameID)
	if row == nil || row.Mode != "daily" {
		t.Fatalf("history row: %+v", row)
	}
}

func TestGameAuth(t *testing.T) {
	f := newFixture(t, testConfig())
	a, b := f.newGame(t, ""), f.newGame(t, "")

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"own token", "/game/" + a.GameID, a.Token, http.StatusOK},
		{"no token", "/game/" + a.GameID, "", http.StatusUnauthorized},
		{"garbage token", "/game/" + a.GameID, "not.a.jwt", http.StatusUnauthorized},
		{"other game's token", "/game/" + a.GameID, b.Token, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := f.do(t, http.MethodGet, tc.path, tc.token, ""); rec.Code != tc.want {
				t.Fatalf("got %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := newFixture(t, config.Config{JWTSecret: "other", JWTExpiry: time.Hour})
		tok, _, _ := other.srv.signGameToken(a.GameID)
		if rec := f.do(t, http.MethodGet, "/game/"+a.GameID, tok, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("expired", func(t *testing.T) {
		cfg := testConfig()
		past := time.Now().Add(-2 * time.Hour)
		old := newFixture(t, cfg, WithClock(func() time.Time { return past }))
		tok, _, _ := old.srv.signGameToken(a.GameID)
		if rec := f.do(t, http.MethodGet, "/game/"+a.GameID, tok, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("unknown game", func(t *testing.T) {
		tok, _, _ := f.srv.signGameToken("missing")
		if rec := f.do(t, http.MethodGet, "/game/missing", tok, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/game/"+a.GameID, nil)
		req.AddCookie(&http.Cookie{Name: "connections_token", Value: a.Token})
		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
	})
}

func TestDeleteGame(t *testing.T) {
	f := newFixture(t, testConfig())
	g := f.newGame(t, "")

	rec := f.do(t, http.MethodDelete, "/game/"+g.GameID, g.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/game/"+g.GameID, g.Token, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, testConfig())
	rec := f.do(t, http.MethodOptions, "/game/new", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin: %q", got)
	}
}
