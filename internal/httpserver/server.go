// internal/httpserver/server.go
//
// HTTP wiring for the rooms service.
// Responsibilities:
//   - Router + middleware (JSON, CORS, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", GET /games, GET /rooms/{id}.
//   - POST /rooms creates a room and issues an owner token.
//   - Owner endpoints (require token): POST /rooms/{id}/lock, /rooms/{id}/kick.
//   - GET /matches/recent reads the finished-match archive.
//   - GET /ws upgrades to the realtime socket.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - The owner token is an HS256 JWT bound to a single room; it is the
//     out-of-band counterpart to in-room lock/kick intents, so a creator
//     can administer a room without holding a live socket.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dashanddots/go-server/internal/coord"
	"github.com/dashanddots/go-server/internal/hub"
)

// MatchReader serves the query side of the match archive.
type MatchReader interface {
	RecentMatches(ctx context.Context, limit int) ([]coord.MatchRecord, error)
	WinLeaderboard(ctx context.Context, limit int) ([]WinRow, error)
}

// WinRow is one leaderboard entry: total archived wins for a player.
type WinRow struct {
	Player string `json:"player"`
	Wins   int    `json:"wins"`
}

// Server bundles the router, the coordinator, and the websocket hub.
type Server struct {
	r       *chi.Mux
	coord   *coord.Coordinator
	hub     *hub.Hub
	matches MatchReader // nil disables /matches/recent
}

// New constructs a Server, installs middleware, and registers routes.
func New(c *coord.Coordinator, ws *hub.Hub, matches MatchReader) *Server {
	s := &Server{r: chi.NewRouter(), coord: c, hub: ws, matches: matches}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(corsFromEnv)                     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"dots-rooms","endpoints":["/health","/ws","POST /rooms","GET /rooms/{id}","GET /games"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Room admin surface
	s.r.Post("/rooms", s.handleCreateRoom)
	s.r.Get("/rooms/{id}", s.handleGetRoom)
	s.r.Get("/games", s.handleListGames)
	s.r.With(s.requireRoomOwner()).Post("/rooms/{id}/lock", s.handleLock)
	s.r.With(s.requireRoomOwner()).Post("/rooms/{id}/kick", s.handleKick)

	if matches != nil {
		s.r.Get("/matches/recent", s.handleRecentMatches)
		s.r.Get("/matches/leaderboard", s.handleWinLeaderboard)
	}

	// Realtime socket. Long-lived, so no handler timeout is installed
	// on the router.
	s.r.Get("/ws", s.hub.ServeWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

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

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- ROOMS -------------------------------------

// createRoomReq/Res payloads for POST /rooms.
type createRoomReq struct {
	GameID       string            `json:"gameId"`
	Rows         int               `json:"rows"`
	Cols         int               `json:"cols"`
	Players      []string          `json:"players"`
	Owner        string            `json:"owner"`
	Locked       bool              `json:"locked"`
	ChatDisabled bool              `json:"chatDisabled"`
	Colors       map[string]string `json:"colors"`
	Passcode     string            `json:"passcode"`
}
type createRoomRes struct {
	RoomID     string `json:"roomId"`
	OwnerToken string `json:"ownerToken"`
}

// handleCreateRoom opens a fresh room and returns its id plus a token
// that authorizes lock/kick over HTTP.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		if len(req.Players) > 0 {
			owner = req.Players[0]
		} else {
			owner = "p1"
		}
	}

	id, err := s.coord.CreateRoom(r.Context(), coord.CreateRoomParams{
		GameID:       req.GameID,
		Rows:         req.Rows,
		Cols:         req.Cols,
		Players:      req.Players,
		Owner:        owner,
		Locked:       req.Locked,
		ChatDisabled: req.ChatDisabled,
		Colors:       req.Colors,
		Passcode:     req.Passcode,
	})
	if err != nil {
		writeCoordError(w, err)
		return
	}

	tok, err := signOwnerToken(id, owner)
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("sign owner token")
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createRoomRes{RoomID: id, OwnerToken: tok})
}

// handleGetRoom returns the redacted room view plus who is connected.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.coord.GetRoom(r.Context(), id)
	if err != nil {
		writeCoordError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"room":      snap,
		"occupancy": s.coord.Occupancy(id),
	})
}

// handleListGames lists the registered game implementations.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.coord.Games())
}

// lockReq is the payload for POST /rooms/{id}/lock.
type lockReq struct {
	Locked bool `json:"locked"`
}

// handleLock toggles the join lock. Owner token required.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req lockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	owner, _ := r.Context().Value(ctxOwnerKey{}).(string)
	if err := s.coord.SetLocked(r.Context(), id, owner, req.Locked); err != nil {
		writeCoordError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "locked": req.Locked})
}

// kickReq is the payload for POST /rooms/{id}/kick.
type kickReq struct {
	Target string `json:"target"`
}

// handleKick removes a connected player. Owner token required.
func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	var req kickReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	owner, _ := r.Context().Value(ctxOwnerKey{}).(string)
	if err := s.coord.KickByName(r.Context(), id, owner, req.Target); err != nil {
		writeCoordError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// handleRecentMatches reads the tail of the finished-match archive.
func (s *Server) handleRecentMatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	recs, err := s.matches.RecentMatches(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("recent matches")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []coord.MatchRecord{}
	}
	_ = json.NewEncoder(w).Encode(recs)
}

// handleWinLeaderboard ranks players by archived wins.
func (s *Server) handleWinLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	rows, err := s.matches.WinLeaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("win leaderboard")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []WinRow{}
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// writeCoordError maps coordinator errors onto HTTP statuses; the JSON
// body always carries the same machine code the socket ack would.
func writeCoordError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, coord.ErrRoomNotFound), errors.Is(err, coord.ErrTargetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, coord.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, coord.ErrStoreFailed):
		status = http.StatusInternalServerError
	}
	http.Error(w, `{"error":"`+err.Error()+`"}`, status)
}

// ------------------------------ owner tokens -------------------------------

// ctxOwnerKey is the context key for the authenticated owner name.
type ctxOwnerKey struct{}

// signOwnerToken creates an HS256 JWT scoped to one room. Its lifetime
// matches the room TTL, so the token dies with the room.
func signOwnerToken(roomID, owner string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"room":  roomID,
		"owner": owner,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})
	return t.SignedString([]byte(jwtSecret()))
}

// requireRoomOwner enforces a valid owner token whose room claim matches
// the {id} path parameter, and injects the owner name into context.
func (s *Server) requireRoomOwner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret()), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
				return
			}
			roomClaim, _ := claims["room"].(string)
			owner, _ := claims["owner"].(string)
			if owner == "" || roomClaim == "" || roomClaim != chi.URLParam(r, "id") {
				http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxOwnerKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts a bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}

// jwtSecret returns the signing secret, with a dev fallback.
func jwtSecret() string {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		return v
	}
	return "dev_secret_change_me"
}
