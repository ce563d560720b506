package recs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/auralis-fm/auralis/internal/db"
)

// mixBuildConcurrency bounds the per-tag mix builds running at once. The
// builds only read the catalog and upsert disjoint keys, so they commute.
const mixBuildConcurrency = 4

// MixView is a shared mix hydrated for serving.
type MixView struct {
	TagID       string
	TagName     string
	Kind        db.TagKind
	GeneratedOn string
	Songs       []db.Song
}

// DailyMixes groups the day's shared mixes by source tag kind.
type DailyMixes struct {
	GenreMixes []MixView
	MoodMixes  []MixView
}

// DailyMixes returns the shared genre and mood mixes for the current
// calendar day, building them if this is the day's first request. The mixes
// are shared across all users; a known user's taste profile is applied as a
// pure reordering overlay, never as a per-user copy. Anonymous callers get
// the stored order.
func (e *Engine) DailyMixes(ctx context.Context, userID string) (*DailyMixes, error) {
	generationTotal.WithLabelValues("daily_mix").Inc()
	ctx, cancel := e.generationCtx(ctx)
	defer cancel()

	day := e.day()
	mixes, err := e.artifacts.MixesOn(ctx, day)
	if err != nil {
		generationFailures.WithLabelValues("daily_mix").Inc()
		return nil, fmt.Errorf("loading daily mixes: %w", err)
	}

	if len(mixes) == 0 {
		// First request of the day rebuilds; concurrent requests wait for
		// the in-flight rebuild instead of racing it. The rebuild serves
		// every waiter, so it runs detached from the winning request's
		// lifetime under its own timeout.
		v, err, _ := e.mixGroup.Do(day.Format("2006-01-02"), func() (any, error) {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.GenerationTimeout)
			defer cancel()
			return e.rebuildMixes(rctx, day)
		})
		if err != nil {
			generationFailures.WithLabelValues("daily_mix").Inc()
			return nil, fmt.Errorf("rebuilding daily mixes: %w", err)
		}
		mixes = v.([]db.Mix)
	}

	return e.assembleMixes(ctx, mixes, userID)
}

// rebuildMixes generates the day's mixes per eligible source tag, then
// removes prior-day rows. Every tag mix is built in memory first and rows are
// persisted only after all builds succeed, so a failing tag leaves no partial
// day behind and the next request rebuilds from scratch.
func (e *Engine) rebuildMixes(ctx context.Context, day time.Time) ([]db.Mix, error) {
	genreTags, err := e.catalog.TopTags(ctx, db.KindGenre, e.cfg.DailyMix.GenreTags)
	if err != nil {
		return nil, fmt.Errorf("fetching genre tags: %w", err)
	}
	moodTags, err := e.catalog.TopTags(ctx, db.KindMood, e.cfg.DailyMix.MoodTags)
	if err != nil {
		return nil, fmt.Errorf("fetching mood tags: %w", err)
	}
	tags := append(genreTags, moodTags...)

	built := make([]*db.Mix, len(tags))
	workCh := make(chan int, len(tags))
	for i := range tags {
		workCh <- i
	}
	close(workCh)

	errs := make([]error, mixBuildConcurrency)
	var wg sync.WaitGroup
	for i := 0; i < mixBuildConcurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for idx := range workCh {
				m, err := e.buildTagMix(ctx, tags[idx], day)
				if err != nil {
					errs[worker] = err
					return
				}
				built[idx] = m
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			// Fail closed: nothing was persisted yet.
			return nil, err
		}
	}

	for _, m := range built {
		if m == nil {
			continue
		}
		if err := e.upsertMix(ctx, m); err != nil {
			// Clear any rows already written for the day so a later rebuild
			// starts from a clean slate.
			if delErr := e.artifacts.DeleteMixesBefore(ctx, day.AddDate(0, 0, 1)); delErr != nil {
				e.log.Error().Err(delErr).Msg("clearing partial daily mixes failed")
			}
			return nil, err
		}
	}

	if err := e.artifacts.DeleteMixesBefore(ctx, day); err != nil {
		return nil, fmt.Errorf("deleting prior-day mixes: %w", err)
	}
	return e.artifacts.MixesOn(ctx, day)
}

// buildTagMix samples one tag's mix without persisting it. Tags with too few
// catalog songs are skipped, reported as a nil mix.
func (e *Engine) buildTagMix(ctx context.Context, tag db.Tag, day time.Time) (*db.Mix, error) {
	count, err := e.catalog.CountSongsByTag(ctx, tag.ID)
	if err != nil {
		return nil, fmt.Errorf("counting songs for tag %s: %w", tag.ID, err)
	}
	if count < e.cfg.DailyMix.MinTagSongs {
		e.log.Debug().Str("tag", tag.Name).Int("songs", count).Msg("tag below mix floor, skipping")
		return nil, nil
	}

	songs, err := e.catalog.SampleSongsByTag(ctx, tag.ID, e.cfg.DailyMix.Size)
	if err != nil {
		return nil, fmt.Errorf("sampling songs for tag %s: %w", tag.ID, err)
	}

	return &db.Mix{
		SourceTagID: tag.ID,
		TagName:     tag.Name,
		Kind:        tag.Kind,
		SongIDs:     songIDs(songs),
		GeneratedOn: day,
	}, nil
}

// upsertMix writes a mix row, retrying once on a concurrent-write conflict.
func (e *Engine) upsertMix(ctx context.Context, m *db.Mix) error {
	err := e.artifacts.UpsertMix(ctx, m)
	if errors.Is(err, db.ErrConflict) {
		err = e.artifacts.UpsertMix(ctx, m)
	}
	if err != nil {
		return fmt.Errorf("materializing mix for tag %s: %w", m.SourceTagID, err)
	}
	return nil
}

// assembleMixes hydrates mix songs and applies the personalization overlay.
func (e *Engine) assembleMixes(ctx context.Context, mixes []db.Mix, userID string) (*DailyMixes, error) {
	var profile *TasteProfile
	if userID != "" {
		p, err := e.BuildProfile(ctx, userID, e.cfg.DailyMix.Window, 1)
		switch {
		case errors.Is(err, ErrInsufficientSignal):
			// Stored order for users without signal.
		case err != nil:
			generationFailures.WithLabelValues("daily_mix").Inc()
			return nil, err
		default:
			profile = p
		}
	}

	seen := make(map[string]struct{})
	var allIDs []string
	for _, m := range mixes {
		for _, id := range m.SongIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			allIDs = append(allIDs, id)
		}
	}
	hydrated, err := e.catalog.SongsByIDs(ctx, allIDs)
	if err != nil {
		generationFailures.WithLabelValues("daily_mix").Inc()
		return nil, fmt.Errorf("hydrating mix songs: %w", err)
	}
	byID := make(map[string]db.Song, len(hydrated))
	for _, s := range hydrated {
		byID[s.ID] = s
	}

	out := &DailyMixes{}
	for _, m := range mixes {
		songs := make([]db.Song, 0, len(m.SongIDs))
		for _, id := range m.SongIDs {
			if s, ok := byID[id]; ok {
				songs = append(songs, s)
			}
		}
		if profile != nil {
			// Stable by stored order, so personalization is a deterministic
			// overlay on the shared artifact.
			sort.SliceStable(songs, func(i, j int) bool {
				return scoreSong(songs[i], profile, e.cfg.Weights) > scoreSong(songs[j], profile, e.cfg.Weights)
			})
		}
		view := MixView{
			TagID:       m.SourceTagID,
			TagName:     m.TagName,
			Kind:        m.Kind,
			GeneratedOn: m.GeneratedOn.Format("2006-01-02"),
			Songs:       songs,
		}
		if m.Kind == db.KindMood {
			out.MoodMixes = append(out.MoodMixes, view)
		} else {
			out.GenreMixes = append(out.GenreMixes, view)
		}
	}
	return out, nil
}
