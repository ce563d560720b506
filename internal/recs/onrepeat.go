package recs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/auralis-fm/auralis/internal/db"
)

// Rewind window boundaries, relative to now.
const (
	rewindOldMonths    = 6
	rewindRecentMonths = 1
)

// OnRepeat returns the user's habit playlist: the songs with the highest
// all-time listen counts. Regenerates daily. When the user's listen history
// is empty the existing artifact is deleted: the user is no longer eligible.
func (e *Engine) OnRepeat(ctx context.Context, userID string) (*SongList, error) {
	generationTotal.WithLabelValues("on_repeat").Inc()
	ctx, cancel := e.generationCtx(ctx)
	defer cancel()

	prior, err := e.artifacts.Get(ctx, userID, db.TypeOnRepeat)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		generationFailures.WithLabelValues("on_repeat").Inc()
		return nil, fmt.Errorf("loading on repeat: %w", err)
	}
	if prior != nil && sameDay(prior.GeneratedOn, e.now()) {
		return e.songList(ctx, prior)
	}

	counts, err := e.signals.ListenCounts(ctx, userID)
	if err != nil {
		return e.fallbackToPrior(ctx, "on_repeat", prior, fmt.Errorf("fetching listen counts: %w", err))
	}

	if len(counts) == 0 {
		// Explicit no-longer-eligible case: the only deletion path.
		if prior != nil {
			if err := e.artifacts.Delete(ctx, userID, db.TypeOnRepeat); err != nil {
				generationFailures.WithLabelValues("on_repeat").Inc()
				return nil, fmt.Errorf("deleting empty on repeat: %w", err)
			}
		}
		return nil, nil
	}

	a := &db.Artifact{
		UserID:      userID,
		Type:        db.TypeOnRepeat,
		ItemIDs:     topK(counts, e.cfg.OnRepeat.Size),
		GeneratedOn: e.day(),
	}
	if err := e.upsertArtifact(ctx, a); err != nil {
		return e.fallbackToPrior(ctx, "on_repeat", prior, fmt.Errorf("materializing on repeat: %w", err))
	}
	return e.songList(ctx, a)
}

// OnRepeatRewind returns songs the user played heavily one to six months ago
// and has not touched in the last month. Regenerates weekly; skipped when
// fewer than the configured minimum qualify.
func (e *Engine) OnRepeatRewind(ctx context.Context, userID string) (*SongList, error) {
	generationTotal.WithLabelValues("on_repeat_rewind").Inc()
	ctx, cancel := e.generationCtx(ctx)
	defer cancel()

	prior, err := e.artifacts.Get(ctx, userID, db.TypeOnRepeatRewind)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		generationFailures.WithLabelValues("on_repeat_rewind").Inc()
		return nil, fmt.Errorf("loading rewind: %w", err)
	}
	if prior != nil && sameISOWeek(prior.GeneratedOn, e.now()) {
		return e.songList(ctx, prior)
	}

	fresh, err := e.generateRewind(ctx, userID)
	if err != nil {
		return e.fallbackToPrior(ctx, "on_repeat_rewind", prior, err)
	}
	return e.songList(ctx, fresh)
}

func (e *Engine) generateRewind(ctx context.Context, userID string) (*db.Artifact, error) {
	now := e.now()
	oldFrom := now.AddDate(0, -rewindOldMonths, 0)
	oldTo := now.AddDate(0, -rewindRecentMonths, 0)

	oldEvents, err := e.signals.ListensBetween(ctx, userID, oldFrom, oldTo)
	if err != nil {
		return nil, fmt.Errorf("fetching old listens: %w", err)
	}
	recentEvents, err := e.signals.ListensBetween(ctx, userID, oldTo, now)
	if err != nil {
		return nil, fmt.Errorf("fetching recent listens: %w", err)
	}

	recent := make(map[string]struct{}, len(recentEvents))
	for _, ev := range recentEvents {
		recent[ev.SongID] = struct{}{}
	}

	oldCounts := make(map[string]int, len(oldEvents))
	for _, ev := range oldEvents {
		oldCounts[ev.SongID]++
	}

	// Forgotten: played enough in the old window, untouched in the recent
	// one.
	forgotten := make(map[string]int)
	for id, n := range oldCounts {
		if n < e.cfg.Rewind.MinOldListens {
			continue
		}
		if _, stillPlayed := recent[id]; stillPlayed {
			continue
		}
		forgotten[id] = n
	}

	if len(forgotten) < e.cfg.Rewind.MinForgotten {
		return nil, fmt.Errorf("%w: %d forgotten songs, need %d", ErrInsufficientSignal, len(forgotten), e.cfg.Rewind.MinForgotten)
	}

	a := &db.Artifact{
		UserID:      userID,
		Type:        db.TypeOnRepeatRewind,
		ItemIDs:     topK(forgotten, e.cfg.Rewind.Size),
		GeneratedOn: e.day(),
	}
	if err := e.upsertArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("materializing rewind: %w", err)
	}
	return a, nil
}

// sortedIDs returns map keys in ascending order.
func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
