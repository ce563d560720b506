package web

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/auralis-fm/auralis/internal/recs"
)

// userIDHeader carries the caller's identity, resolved by the upstream
// gateway. Authentication itself is out of scope here.
const userIDHeader = "X-User-ID"

// Handlers contains HTTP handlers adapting engine operations to JSON.
type Handlers struct {
	engine *recs.Engine
	log    zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(engine *recs.Engine, logger zerolog.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		log:    logger.With().Str("component", "handlers").Logger(),
	}
}

// DailyMixes serves the day's shared mixes (GET /api/mixes). Known callers
// get personalized ordering; anonymous callers get the stored order.
func (h *Handlers) DailyMixes(w http.ResponseWriter, r *http.Request) {
	mixes, err := h.engine.DailyMixes(r.Context(), r.Header.Get(userIDHeader))
	if err != nil {
		h.serveEmpty(w, "daily mixes", err)
		return
	}
	writeJSON(w, toDailyMixes(mixes))
}

// DiscoverWeekly serves the weekly novelty playlist (GET /api/discover-weekly).
func (h *Handlers) DiscoverWeekly(w http.ResponseWriter, r *http.Request) {
	h.serveSongList(w, r, "discover weekly", h.engine.DiscoverWeekly)
}

// OnRepeat serves the all-time habit playlist (GET /api/on-repeat).
func (h *Handlers) OnRepeat(w http.ResponseWriter, r *http.Request) {
	h.serveSongList(w, r, "on repeat", h.engine.OnRepeat)
}

// OnRepeatRewind serves the forgotten-favorites playlist
// (GET /api/on-repeat-rewind).
func (h *Handlers) OnRepeatRewind(w http.ResponseWriter, r *http.Request) {
	h.serveSongList(w, r, "on repeat rewind", h.engine.OnRepeatRewind)
}

// Featured serves the quick-pick list (GET /api/featured).
func (h *Handlers) Featured(w http.ResponseWriter, r *http.Request) {
	songs, err := h.engine.Featured(r.Context(), r.Header.Get(userIDHeader))
	if err != nil {
		h.serveEmpty(w, "featured", err)
		return
	}
	writeJSON(w, toSongs(songs))
}

// PlaylistsForYou serves scored playlist recommendations
// (GET /api/playlists/for-you).
func (h *Handlers) PlaylistsForYou(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	playlists, err := h.engine.PlaylistsForYou(r.Context(), userID)
	if err != nil {
		h.serveEmpty(w, "playlists for you", err)
		return
	}
	writeJSON(w, toPlaylists(playlists))
}

// NewReleases serves recent albums by followed artists
// (GET /api/releases/new).
func (h *Handlers) NewReleases(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	albums, err := h.engine.NewReleases(r.Context(), userID)
	if err != nil {
		h.serveEmpty(w, "new releases", err)
		return
	}
	writeJSON(w, toAlbums(albums))
}

type songListFunc func(ctx context.Context, userID string) (*recs.SongList, error)

func (h *Handlers) serveSongList(w http.ResponseWriter, r *http.Request, name string, generate songListFunc) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	list, err := generate(r.Context(), userID)
	if err != nil {
		h.serveEmpty(w, name, err)
		return
	}
	if list == nil {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, toSongList(list))
}

func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		http.Error(w, "missing "+userIDHeader+" header", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

// serveEmpty resolves a generation failure: personalization is best-effort,
// so the caller gets an empty result, never a 5xx.
func (h *Handlers) serveEmpty(w http.ResponseWriter, name string, err error) {
	h.log.Error().Err(err).Str("endpoint", name).Msg("generation failed")
	writeJSON(w, nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
