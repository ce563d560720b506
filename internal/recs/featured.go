package recs

import (
	"context"
	"errors"
	"fmt"

	"github.com/auralis-fm/auralis/internal/db"
)

// featuredPool caps the candidate pool for the personalized featured path.
const featuredPool = 150

// Featured returns a short quick-pick list. Known users with enough recent
// signal get profile-scored picks; everyone else gets global trending songs.
// The personalized path pads with trending until the configured limit is
// met, so the result size is always exactly the limit when the catalog
// allows. Featured lists are computed per request and never materialized.
func (e *Engine) Featured(ctx context.Context, userID string) ([]db.Song, error) {
	generationTotal.WithLabelValues("featured").Inc()
	ctx, cancel := e.generationCtx(ctx)
	defer cancel()

	limit := e.cfg.Featured.Limit
	if userID == "" {
		return e.trending(ctx, nil, limit)
	}

	profile, err := e.BuildProfile(ctx, userID, e.cfg.Featured.Window, e.cfg.Featured.MinEvents)
	if errors.Is(err, ErrInsufficientSignal) {
		return e.trending(ctx, nil, limit)
	}
	if err != nil {
		generationFailures.WithLabelValues("featured").Inc()
		return nil, err
	}

	candidates, err := e.sourceCandidates(ctx, profile, profile.Exclusions(), featuredPool, minViablePool)
	if err != nil && !errors.Is(err, ErrCandidatePoolExhausted) {
		generationFailures.WithLabelValues("featured").Inc()
		return nil, err
	}

	ranked := rankSongs(candidates, profile, e.cfg.Weights)
	if len(ranked) > limit {
		// Sample the picks from a slightly wider head so the list varies
		// between visits.
		head := limit * 2
		if head > len(ranked) {
			head = len(ranked)
		}
		ranked = ranked[:head]
		e.shuffle(ranked)
		ranked = ranked[:limit]
	}

	if len(ranked) < limit {
		// Padding honors the same exclusion set as the personalized picks.
		picked := profile.Exclusions()
		for _, s := range ranked {
			picked[s.ID] = struct{}{}
		}
		pad, err := e.trending(ctx, sortedIDs(picked), limit-len(ranked))
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, pad...)
	}
	return ranked, nil
}

func (e *Engine) trending(ctx context.Context, excludeIDs []string, limit int) ([]db.Song, error) {
	songs, err := e.catalog.TrendingSongs(ctx, excludeIDs, limit)
	if err != nil {
		generationFailures.WithLabelValues("featured").Inc()
		return nil, fmt.Errorf("fetching trending songs: %w", err)
	}
	return songs, nil
}
