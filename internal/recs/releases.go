package recs

import (
	"context"
	"errors"
	"fmt"

	"github.com/auralis-fm/auralis/internal/db"
)

// NewReleases returns albums released in the configured lookback window by
// artists the user follows. Regenerates daily; users following no artists
// get nothing.
func (e *Engine) NewReleases(ctx context.Context, userID string) ([]db.Album, error) {
	generationTotal.WithLabelValues("new_releases").Inc()
	ctx, cancel := e.generationCtx(ctx)
	defer cancel()

	prior, err := e.artifacts.Get(ctx, userID, db.TypeNewRelease)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		generationFailures.WithLabelValues("new_releases").Inc()
		return nil, fmt.Errorf("loading new releases: %w", err)
	}
	if prior != nil && sameDay(prior.GeneratedOn, e.now()) {
		return e.albumsInOrder(ctx, prior.ItemIDs)
	}

	library, err := e.signals.LibraryState(ctx, userID)
	if err != nil {
		if prior != nil {
			generationStale.WithLabelValues("new_releases").Inc()
			return e.albumsInOrder(ctx, prior.ItemIDs)
		}
		generationFailures.WithLabelValues("new_releases").Inc()
		return nil, fmt.Errorf("fetching library state: %w", err)
	}
	if len(library.FollowedArtistIDs) == 0 {
		return nil, nil
	}

	since := e.day().AddDate(0, 0, -e.cfg.NewReleases.Days)
	albums, err := e.catalog.AlbumsByArtistsSince(ctx, library.FollowedArtistIDs, since)
	if err != nil {
		if prior != nil {
			generationStale.WithLabelValues("new_releases").Inc()
			return e.albumsInOrder(ctx, prior.ItemIDs)
		}
		generationFailures.WithLabelValues("new_releases").Inc()
		return nil, fmt.Errorf("fetching new albums: %w", err)
	}

	itemIDs := make([]string, len(albums))
	for i, a := range albums {
		itemIDs[i] = a.ID
	}
	artifact := &db.Artifact{
		UserID:      userID,
		Type:        db.TypeNewRelease,
		ItemIDs:     itemIDs,
		GeneratedOn: e.day(),
	}
	if err := e.upsertArtifact(ctx, artifact); err != nil {
		generationFailures.WithLabelValues("new_releases").Inc()
		return nil, fmt.Errorf("materializing new releases: %w", err)
	}
	return albums, nil
}

// albumsInOrder hydrates album ids preserving the stored order.
func (e *Engine) albumsInOrder(ctx context.Context, ids []string) ([]db.Album, error) {
	albums, err := e.catalog.AlbumsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating albums: %w", err)
	}
	byID := make(map[string]db.Album, len(albums))
	for _, a := range albums {
		byID[a.ID] = a
	}
	ordered := make([]db.Album, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}
