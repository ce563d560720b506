package recs

import (
	"context"
	"fmt"
	"sort"
)

// Top-set sizes per profile dimension.
const (
	topGenres  = 5
	topMoods   = 3
	topArtists = 10
)

// TasteProfile holds a user's ranked preference sets, derived from recent
// listen events. It is recomputed on every generation call and never cached,
// so it always reflects the signal store at generation time.
type TasteProfile struct {
	TopGenreIDs  []string
	TopMoodIDs   []string
	TopArtistIDs []string

	ListenedSongIDs map[string]struct{}
	LikedSongIDs    map[string]struct{}
}

// Exclusions returns the union of listened and liked song ids.
func (p *TasteProfile) Exclusions() map[string]struct{} {
	out := make(map[string]struct{}, len(p.ListenedSongIDs)+len(p.LikedSongIDs))
	for id := range p.ListenedSongIDs {
		out[id] = struct{}{}
	}
	for id := range p.LikedSongIDs {
		out[id] = struct{}{}
	}
	return out
}

// BuildProfile derives a taste profile from the user's most recent window
// listen events. It returns ErrInsufficientSignal when fewer than floor
// events exist; the caller applies its own fallback policy.
func (e *Engine) BuildProfile(ctx context.Context, userID string, window, floor int) (*TasteProfile, error) {
	events, err := e.signals.RecentListens(ctx, userID, window)
	if err != nil {
		return nil, fmt.Errorf("fetching recent listens: %w", err)
	}
	if len(events) < floor {
		return nil, fmt.Errorf("%w: %d events, need %d", ErrInsufficientSignal, len(events), floor)
	}

	library, err := e.signals.LibraryState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching library state: %w", err)
	}

	listened := make(map[string]struct{}, len(events))
	playCounts := make(map[string]int, len(events))
	for _, ev := range events {
		listened[ev.SongID] = struct{}{}
		playCounts[ev.SongID]++
	}

	ids := make([]string, 0, len(listened))
	for id := range listened {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	songs, err := e.catalog.SongsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating listened songs: %w", err)
	}

	// Occurrence counts weighted by how often each song was played. Count
	// maps are local to this call: nothing is shared across calls or users.
	genreCounts := make(map[string]int)
	moodCounts := make(map[string]int)
	artistCounts := make(map[string]int)
	for _, s := range songs {
		n := playCounts[s.ID]
		for _, id := range s.GenreIDs {
			genreCounts[id] += n
		}
		for _, id := range s.MoodIDs {
			moodCounts[id] += n
		}
		for _, id := range s.ArtistIDs {
			artistCounts[id] += n
		}
	}

	liked := make(map[string]struct{}, len(library.LikedSongIDs))
	for _, id := range library.LikedSongIDs {
		liked[id] = struct{}{}
	}

	return &TasteProfile{
		TopGenreIDs:     topK(genreCounts, topGenres),
		TopMoodIDs:      topK(moodCounts, topMoods),
		TopArtistIDs:    topK(artistCounts, topArtists),
		ListenedSongIDs: listened,
		LikedSongIDs:    liked,
	}, nil
}

// topK returns the k highest-count ids, count descending. Ties break on id
// ordering: deterministic, with no semantic meaning.
func topK(counts map[string]int, k int) []string {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}
