package recs

import (
	"context"
	"fmt"
	"sort"

	"github.com/auralis-fm/auralis/internal/db"
)

// sourceCandidates fetches up to limit songs sharing at least one tag or
// artist with the profile's top sets, omitting the exclusion set. When fewer
// than minViable candidates remain it returns the pool it found together with
// ErrCandidatePoolExhausted, so fallback chains can still use the partial
// pool.
func (e *Engine) sourceCandidates(ctx context.Context, profile *TasteProfile, exclude map[string]struct{}, limit, minViable int) ([]db.Song, error) {
	excludeIDs := make([]string, 0, len(exclude))
	for id := range exclude {
		excludeIDs = append(excludeIDs, id)
	}
	sort.Strings(excludeIDs)

	pool, err := e.catalog.SongsByTags(ctx, profile.TopGenreIDs, profile.TopMoodIDs, profile.TopArtistIDs, excludeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("sourcing candidates: %w", err)
	}

	// The query already excludes; re-check locally so the invariant holds
	// for every Catalog implementation.
	candidates := pool[:0]
	for _, s := range pool {
		if _, excluded := exclude[s.ID]; excluded {
			continue
		}
		candidates = append(candidates, s)
	}

	if len(candidates) < minViable {
		return candidates, fmt.Errorf("%w: %d candidates, need %d", ErrCandidatePoolExhausted, len(candidates), minViable)
	}
	return candidates, nil
}
