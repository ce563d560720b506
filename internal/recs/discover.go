package recs

import (
	"context"
	"errors"
	"fmt"

	"github.com/auralis-fm/auralis/internal/db"
)

// minViablePool is the smallest candidate pool a strategy will rank before
// routing into its fallback chain.
const minViablePool = 10

// SongList is a materialized song artifact hydrated for serving.
type SongList struct {
	Type        db.ArtifactType
	GeneratedOn string
	Songs       []db.Song
}

func (e *Engine) songList(ctx context.Context, a *db.Artifact) (*SongList, error) {
	songs, err := e.songsInOrder(ctx, a.ItemIDs)
	if err != nil {
		return nil, err
	}
	return &SongList{
		Type:        a.Type,
		GeneratedOn: a.GeneratedOn.Format("2006-01-02"),
		Songs:       songs,
	}, nil
}

// DiscoverWeekly returns the user's novelty playlist: songs matching the
// taste profile that the user has neither listened to nor liked. The
// artifact regenerates once per ISO week. Returns nil when the user's signal
// is below the eligibility floor and no prior artifact exists.
func (e *Engine) DiscoverWeekly(ctx context.Context, userID string) (*SongList, error) {
	generationTotal.WithLabelValues("discover_weekly").Inc()
	ctx, cancel := e.generationCtx(ctx)
	defer cancel()

	prior, err := e.artifacts.Get(ctx, userID, db.TypeDiscoverWeekly)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		generationFailures.WithLabelValues("discover_weekly").Inc()
		return nil, fmt.Errorf("loading discover weekly: %w", err)
	}
	if prior != nil && sameISOWeek(prior.GeneratedOn, e.now()) {
		return e.songList(ctx, prior)
	}

	fresh, err := e.generateDiscoverWeekly(ctx, userID)
	if err != nil {
		return e.fallbackToPrior(ctx, "discover_weekly", prior, err)
	}
	return e.songList(ctx, fresh)
}

func (e *Engine) generateDiscoverWeekly(ctx context.Context, userID string) (*db.Artifact, error) {
	cfg := e.cfg.Discover

	profile, err := e.BuildProfile(ctx, userID, cfg.Window, cfg.MinEvents)
	if err != nil {
		return nil, err
	}

	candidates, err := e.sourceCandidates(ctx, profile, profile.Exclusions(), cfg.Pool, minViablePool)
	if err != nil {
		return nil, err
	}

	// Rank the pool, then sample the playlist from the scored head so the
	// mix is novel without losing relevance: the head is twice the playlist
	// size, so only well-matched candidates can be drawn.
	ranked := rankSongs(candidates, profile, e.cfg.Weights)
	head := cfg.Size * 2
	if head > len(ranked) {
		head = len(ranked)
	}
	picks := ranked[:head]
	e.shuffle(picks)
	if len(picks) > cfg.Size {
		picks = picks[:cfg.Size]
	}

	a := &db.Artifact{
		UserID:      userID,
		Type:        db.TypeDiscoverWeekly,
		ItemIDs:     songIDs(picks),
		GeneratedOn: e.day(),
	}
	if err := e.upsertArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("materializing discover weekly: %w", err)
	}
	return a, nil
}

// fallbackToPrior resolves a failed or ineligible regeneration: the last
// valid artifact is served when one exists, floor-unmet outcomes resolve to
// no artifact, and real failures propagate.
func (e *Engine) fallbackToPrior(ctx context.Context, strategy string, prior *db.Artifact, genErr error) (*SongList, error) {
	if prior != nil {
		generationStale.WithLabelValues(strategy).Inc()
		e.log.Warn().Err(genErr).Str("strategy", strategy).Msg("regeneration failed, serving prior artifact")
		return e.songList(ctx, prior)
	}
	if errors.Is(genErr, ErrInsufficientSignal) || errors.Is(genErr, ErrCandidatePoolExhausted) {
		e.log.Debug().Err(genErr).Str("strategy", strategy).Msg("eligibility floor unmet")
		return nil, nil
	}
	generationFailures.WithLabelValues(strategy).Inc()
	return nil, genErr
}
