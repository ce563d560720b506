package recs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/auralis-fm/auralis/internal/db"
)

// PlaylistsForYou returns scored public-playlist recommendations based on
// the tags of the user's own and saved playlists. Regenerates daily; skipped
// when the user's playlists hold too few songs to read taste from.
func (e *Engine) PlaylistsForYou(ctx context.Context, userID string) ([]db.Playlist, error) {
	generationTotal.WithLabelValues("playlist_for_you").Inc()
	ctx, cancel := e.generationCtx(ctx)
	defer cancel()

	prior, err := e.artifacts.Get(ctx, userID, db.TypePlaylistForYou)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		generationFailures.WithLabelValues("playlist_for_you").Inc()
		return nil, fmt.Errorf("loading playlist recommendations: %w", err)
	}
	if prior != nil && sameDay(prior.GeneratedOn, e.now()) {
		return e.playlistsInOrder(ctx, prior.ItemIDs)
	}

	fresh, err := e.generatePlaylistsForYou(ctx, userID)
	if err != nil {
		if prior != nil {
			generationStale.WithLabelValues("playlist_for_you").Inc()
			e.log.Warn().Err(err).Msg("playlist regeneration failed, serving prior artifact")
			return e.playlistsInOrder(ctx, prior.ItemIDs)
		}
		if errors.Is(err, ErrInsufficientSignal) || errors.Is(err, ErrCandidatePoolExhausted) {
			return nil, nil
		}
		generationFailures.WithLabelValues("playlist_for_you").Inc()
		return nil, err
	}
	return e.playlistsInOrder(ctx, fresh.ItemIDs)
}

func (e *Engine) generatePlaylistsForYou(ctx context.Context, userID string) (*db.Artifact, error) {
	cfg := e.cfg.PlaylistRecs

	library, err := e.signals.LibraryState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching library state: %w", err)
	}

	ownIDs := make(map[string]struct{}, len(library.OwnedPlaylistIDs)+len(library.SavedPlaylistIDs))
	for _, id := range library.OwnedPlaylistIDs {
		ownIDs[id] = struct{}{}
	}
	for _, id := range library.SavedPlaylistIDs {
		ownIDs[id] = struct{}{}
	}
	if len(ownIDs) == 0 {
		return nil, fmt.Errorf("%w: no owned or saved playlists", ErrInsufficientSignal)
	}

	owned, err := e.catalog.PlaylistsByIDs(ctx, sortedIDs(ownIDs))
	if err != nil {
		return nil, fmt.Errorf("hydrating user playlists: %w", err)
	}

	songSet := make(map[string]struct{})
	for _, pl := range owned {
		for _, id := range pl.SongIDs {
			songSet[id] = struct{}{}
		}
	}
	if len(songSet) < cfg.MinSongs {
		return nil, fmt.Errorf("%w: %d playlist songs, need %d", ErrInsufficientSignal, len(songSet), cfg.MinSongs)
	}

	ownedSongs, err := e.catalog.SongsByIDs(ctx, sortedIDs(songSet))
	if err != nil {
		return nil, fmt.Errorf("hydrating playlist songs: %w", err)
	}
	profile := &TasteProfile{
		TopGenreIDs: topK(tagSongCounts(ownedSongs, func(s db.Song) []string { return s.GenreIDs }), topGenres),
		TopMoodIDs:  topK(tagSongCounts(ownedSongs, func(s db.Song) []string { return s.MoodIDs }), topMoods),
	}

	candidates, err := e.catalog.PublicPlaylists(ctx, userID, 1)
	if err != nil {
		return nil, fmt.Errorf("fetching public playlists: %w", err)
	}

	// One hydration pass covers every candidate's songs.
	candidateSongs := make(map[string]struct{})
	for _, pl := range candidates {
		if _, mine := ownIDs[pl.ID]; mine {
			continue
		}
		for _, id := range pl.SongIDs {
			candidateSongs[id] = struct{}{}
		}
	}
	hydrated, err := e.catalog.SongsByIDs(ctx, sortedIDs(candidateSongs))
	if err != nil {
		return nil, fmt.Errorf("hydrating candidate songs: %w", err)
	}
	byID := make(map[string]db.Song, len(hydrated))
	for _, s := range hydrated {
		byID[s.ID] = s
	}

	type scored struct {
		pl    db.Playlist
		score float64
	}
	var kept []scored
	for _, pl := range candidates {
		if _, mine := ownIDs[pl.ID]; mine {
			continue
		}
		songs := make([]db.Song, 0, len(pl.SongIDs))
		for _, id := range pl.SongIDs {
			if s, ok := byID[id]; ok {
				songs = append(songs, s)
			}
		}
		score := scorePlaylist(pl, songs, profile, e.cfg.Weights)
		if score > cfg.MinScore {
			kept = append(kept, scored{pl: pl, score: score})
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no playlist above score threshold", ErrCandidatePoolExhausted)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		if kept[i].pl.LikeCount != kept[j].pl.LikeCount {
			return kept[i].pl.LikeCount > kept[j].pl.LikeCount
		}
		return kept[i].pl.ID < kept[j].pl.ID
	})
	if len(kept) > cfg.Size {
		kept = kept[:cfg.Size]
	}

	itemIDs := make([]string, len(kept))
	for i, s := range kept {
		itemIDs[i] = s.pl.ID
	}

	a := &db.Artifact{
		UserID:      userID,
		Type:        db.TypePlaylistForYou,
		ItemIDs:     itemIDs,
		GeneratedOn: e.day(),
	}
	if err := e.upsertArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("materializing playlist recommendations: %w", err)
	}
	return a, nil
}

// playlistsInOrder hydrates playlist ids preserving the stored order.
func (e *Engine) playlistsInOrder(ctx context.Context, ids []string) ([]db.Playlist, error) {
	playlists, err := e.catalog.PlaylistsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating playlists: %w", err)
	}
	byID := make(map[string]db.Playlist, len(playlists))
	for _, pl := range playlists {
		byID[pl.ID] = pl
	}
	ordered := make([]db.Playlist, 0, len(ids))
	for _, id := range ids {
		if pl, ok := byID[id]; ok {
			ordered = append(ordered, pl)
		}
	}
	return ordered, nil
}
