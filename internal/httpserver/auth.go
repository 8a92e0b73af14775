// apps/go-server/internal/httpserver/auth.go
//
// Game tokens. Creating a game hands out an HS256 JWT whose "gid" claim names
// that game; every /game/{id} route requires a token for exactly that id.
// The token travels as a Bearer header, a ?token= query (WebSocket clients
// cannot set headers), or a cookie scoped to the game's path.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/connections/apps/go-server/internal/live"
	"github.com/robalobadob/connections/apps/go-server/internal/store"
)

var errNoGameClaim = errors.New("token has no game claim")

// gameClaims is the JWT payload of a game token.
type gameClaims struct {
	GameID string `json:"gid"`
	jwt.RegisteredClaims
}

// signGameToken creates an HS256 JWT for game id with the configured expiry.
func (s *Server) signGameToken(id string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.JWTExpiry)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, gameClaims{
		GameID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

// parseGameToken validates tok and returns its game id.
func (s *Server) parseGameToken(tok string) (string, error) {
	claims := &gameClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if claims.GameID == "" {
		return "", errNoGameClaim
	}
	return claims.GameID, nil
}

// gameCookie builds the token cookie for game id.
func (s *Server) gameCookie(id, value string) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.cfg.Production {
		sameSite = http.SameSiteNoneMode // required for third‑party contexts when Secure
	}
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/game/" + id,
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: sameSite,
	}
}

// setGameCookie writes the token cookie with appropriate security attributes.
func (s *Server) setGameCookie(w http.ResponseWriter, id, token string, exp time.Time) {
	c := s.gameCookie(id, token)
	c.Expires = exp
	http.SetCookie(w, c)
}

// clearGameCookie deletes the token cookie of game id.
func (s *Server) clearGameCookie(w http.ResponseWriter, id string) {
	c := s.gameCookie(id, "")
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// tokenFrom extracts a token from the Authorization header, the token query
// parameter, or the game cookie, in that order.
func (s *Server) tokenFrom(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ---------------------------- game middleware ------------------------------

// ctxTableKey is the context key type for the resolved *live.Table.
type ctxTableKey struct{}

// requireGame enforces a valid token for the {id} path parameter and puts the
// game's table into the request context.
func (s *Server) requireGame(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		tok := s.tokenFrom(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		gid, err := s.parseGameToken(tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if gid != id {
			writeError(w, http.StatusForbidden, "Token is for another game")
			return
		}
		t, err := s.store.Get(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game_not_found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store_error")
			return
		}
		ctx := context.WithValue(r.Context(), ctxTableKey{}, t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tableFrom returns the table placed by requireGame.
func tableFrom(r *http.Request) *live.Table {
	t, _ := r.Context().Value(ctxTableKey{}).(*live.Table)
	return t
}
