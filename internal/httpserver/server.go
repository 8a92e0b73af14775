// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the Connections backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/puzzle", POST /game/new.
//   - Game endpoints (require the game's token): view, toggle, clear, submit,
//     reveal, delete, and the WebSocket view stream.
//   - Best-effort history rows for started and finished games.
//
// Notes:
//   - Malformed intents (unknown word, wrong count, wrong state) are not errors.
//     They answer 200 with result "ignored" and the unchanged view.
//   - The WebSocket route lives outside the Timeout group; it is long-lived.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/apps/go-server/internal/config"
	"github.com/robalobadob/connections/apps/go-server/internal/daily"
	"github.com/robalobadob/connections/apps/go-server/internal/feedback"
	"github.com/robalobadob/connections/apps/go-server/internal/game"
	"github.com/robalobadob/connections/apps/go-server/internal/history"
	"github.com/robalobadob/connections/apps/go-server/internal/live"
	"github.com/robalobadob/connections/apps/go-server/internal/puzzle"
	"github.com/robalobadob/connections/apps/go-server/internal/store"
)

const (
	modeNormal = "normal"
	modeDaily  = "daily"
)

// Server bundles router, live game store, puzzle and optional history.
type Server struct {
	r        *chi.Mux
	store    store.Store
	def      *puzzle.Definition
	cfg      config.Config
	history  *history.Store // nil disables history
	fbOpts   []feedback.Option
	now      func() time.Time
	upgrader websocket.Upgrader
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory records game lifecycles in h.
func WithHistory(h *history.Store) Option { return func(s *Server) { s.history = h } }

// WithFeedbackOptions is passed to every new table (tests inject a manual clock).
func WithFeedbackOptions(opts ...feedback.Option) Option {
	return func(s *Server) { s.fbOpts = opts }
}

// WithClock overrides time.Now (daily seed, token expiry).
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, def *puzzle.Definition, cfg config.Config, opts ...Option) *Server {
	s := &Server{r: chi.NewRouter(), store: st, def: def, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)               // add X-Request-ID
	s.r.Use(chimw.RealIP)                  // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))   // request-scoped zerolog logger
	s.r.Use(hlog.AccessHandler(accessLog)) // one line per request
	s.r.Use(chimw.Recoverer)               // recover from panics
	s.r.Use(jsonContentType)               // default JSON responses
	s.r.Use(s.cors)                        // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"connections-go","endpoints":["/health","/puzzle","POST /game/new","/game/{id}/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Get("/puzzle", s.handlePuzzle)
		r.Post("/game/new", s.handleNewGame)

		// Game endpoints: REQUIRE the game token
		r.Group(func(r chi.Router) {
			r.Use(s.requireGame)
			r.Get("/game/{id}", s.handleView)
			r.Post("/game/{id}/toggle", s.handleToggle)
			r.Post("/game/{id}/clear", s.handleIntent("clear"))
			r.Post("/game/{id}/submit", s.handleIntent("submit"))
			r.Post("/game/{id}/reveal", s.handleIntent("reveal"))
			r.Delete("/game/{id}", s.handleDelete)
		})
	})

	// Live stream (no timeout)
	s.r.With(s.requireGame).Get("/game/{id}/ws", s.handleWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("reqId", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

// checkOrigin admits same-origin requests, non-browser clients, and the
// configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}

// writeError writes {"error": code} with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// ------------------------------ PUZZLE -------------------------------------

type puzzleRes struct {
	Name        string `json:"name"`
	Groups      int    `json:"groups"`
	GroupSize   int    `json:"groupSize"`
	MaxMistakes int    `json:"maxMistakes"`
}

// handlePuzzle describes the loaded puzzle without giving away answers.
func (s *Server) handlePuzzle(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(puzzleRes{
		Name:        s.def.Name(),
		Groups:      puzzle.GroupCount,
		GroupSize:   puzzle.GroupSize,
		MaxMistakes: game.MaxMistakes,
	})
}

// ------------------------------- GAME --------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Mode string `json:"mode"` // "normal" | "daily"
}
type newGameRes struct {
	GameID string  `json:"gameId"`
	Token  string  `json:"token"`
	Date   string  `json:"date,omitempty"` // daily mode only
	View   viewDTO `json:"view"`
}

// handleNewGame creates a live table, records a history row and hands out the
// game token (body + cookie).
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}
	if req.Mode == "" {
		req.Mode = modeNormal
	}

	opts := []game.Option{game.WithLossRule(s.cfg.LossRule)}
	var date string
	switch req.Mode {
	case modeNormal:
	case modeDaily:
		now := s.now()
		date = daily.DateKey(now)
		opts = append(opts, game.WithRand(daily.Rand(now, s.cfg.DailySalt)))
	default:
		writeError(w, http.StatusBadRequest, "bad_mode")
		return
	}

	t := live.New(game.New(s.def, opts...), s.fbOpts...)
	if err := s.store.Save(r.Context(), t); err != nil {
		log.Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	s.recordStart(r.Context(), t, req.Mode)

	tok, exp, err := s.signGameToken(t.ID)
	if err != nil {
		log.Error().Err(err).Str("gameId", t.ID).Msg("sign game token")
		_ = s.store.Delete(r.Context(), t.ID)
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setGameCookie(w, t.ID, tok, exp)

	hlog.FromRequest(r).Info().Str("gameId", t.ID).Str("mode", req.Mode).Msg("game started")
	_ = json.NewEncoder(w).Encode(newGameRes{
		GameID: t.ID,
		Token:  tok,
		Date:   date,
		View:   newViewDTO(t.View()),
	})
}

// handleView returns the current view.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(newViewDTO(tableFrom(r).View()))
}

type toggleReq struct {
	Word string `json:"word"`
}

// handleToggle selects or deselects one word.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	res, _ := s.dispatch(r.Context(), tableFrom(r), intent{Action: "toggle", Word: req.Word})
	_ = json.NewEncoder(w).Encode(res)
}

// handleIntent serves the body-less intents (clear, submit, reveal).
func (s *Server) handleIntent(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, _ := s.dispatch(r.Context(), tableFrom(r), intent{Action: action})
		_ = json.NewEncoder(w).Encode(res)
	}
}

// handleDelete abandons a game: timers stop, streams close, the token is dropped.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r)
	if err := s.store.Delete(r.Context(), t.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	s.clearGameCookie(w, t.ID)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// ------------------------------ intents ------------------------------------

// intent is one player action, shared by the HTTP routes and the WebSocket.
type intent struct {
	Action string `json:"action"` // toggle | clear | submit | reveal
	Word   string `json:"word,omitempty"`
}

type intentRes struct {
	Result string    `json:"result"`
	Group  *groupDTO `json:"group,omitempty"`
	View   viewDTO   `json:"view"`
}

const (
	resultToggled = "toggled"
	resultCleared = "cleared"
)

// dispatch applies in to t. ok is false for an unknown action.
func (s *Server) dispatch(ctx context.Context, t *live.Table, in intent) (res intentRes, ok bool) {
	var (
		v       game.View
		changed bool
	)
	switch in.Action {
	case "toggle":
		v, changed = t.Toggle(in.Word)
		res.Result = resultIf(changed, resultToggled)
	case "clear":
		v, changed = t.ClearSelection()
		res.Result = resultIf(changed, resultCleared)
	case "submit", "reveal":
		var out game.Outcome
		if in.Action == "submit" {
			out, v = t.Submit()
		} else {
			out, v = t.Reveal()
		}
		res.Result = string(out.Result)
		if out.Group != nil {
			g := newGroupDTO(*out.Group)
			res.Group = &g
		}
		if out.Result != game.ResultIgnored && (v.Status == game.StatusWon || v.Status == game.StatusLost) {
			s.recordFinish(ctx, v)
		}
	default:
		return intentRes{Result: string(game.ResultIgnored), View: newViewDTO(t.View())}, false
	}
	res.View = newViewDTO(v)
	return res, true
}

func resultIf(changed bool, result string) string {
	if changed {
		return result
	}
	return string(game.ResultIgnored)
}

// ------------------------------ history ------------------------------------

// recordStart inserts the history row; failures are logged only.
func (s *Server) recordStart(ctx context.Context, t *live.Table, mode string) {
	if s.history == nil {
		return
	}
	var started time.Time
	t.Inspect(func(sess *game.Session) { started = sess.StartedAt })
	err := s.history.Start(ctx, history.Record{
		ID:        t.ID,
		Mode:      mode,
		Puzzle:    s.def.Name(),
		Status:    string(game.StatusPlaying),
		StartedAt: started,
	})
	if err != nil {
		log.Warn().Err(err).Str("gameId", t.ID).Msg("history start")
	}
}

// recordFinish stores the final outcome; failures are logged only.
func (s *Server) recordFinish(ctx context.Context, v game.View) {
	log.Info().Str("gameId", v.ID).Str("status", string(v.Status)).Msg("game finished")
	if s.history == nil {
		return
	}
	solved := 0
	for _, g := range v.Revealed {
		if g.Solved {
			solved++
		}
	}
	err := s.history.Finish(ctx, history.Record{
		ID:           v.ID,
		Status:       string(v.Status),
		MistakesUsed: game.MaxMistakes - v.MistakesRemaining,
		GroupsSolved: solved,
	})
	if err != nil {
		log.Warn().Err(err).Str("gameId", v.ID).Msg("history finish")
	}
}
