// Package recs implements the personalized recommendation and
// playlist-generation engine: taste profiles built from listening signals,
// candidate sourcing and scoring, the per-artifact generation strategies, and
// idempotent materialization of their results.
package recs

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/auralis-fm/auralis/internal/config"
	"github.com/auralis-fm/auralis/internal/db"
)

// Engine composes the accessors into the generation strategies. It is safe
// for concurrent use.
type Engine struct {
	cfg       *config.Config
	log       zerolog.Logger
	catalog   Catalog
	signals   SignalStore
	artifacts ArtifactStore

	// now is injectable so tests can pin the calendar day.
	now func() time.Time

	// rng backs randomized sampling; seeded in tests for determinism.
	rng   *rand.Rand
	rngMu sync.Mutex

	// mixGroup serializes shared daily-mix rebuilds per calendar day.
	mixGroup singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for sampling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a recommendation engine.
func New(cfg *config.Config, logger zerolog.Logger, catalog Catalog, signals SignalStore, artifacts ArtifactStore, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		log:       logger.With().Str("component", "recs").Logger(),
		catalog:   catalog,
		signals:   signals,
		artifacts: artifacts,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// generationCtx bounds a generation call. A call that cannot finish in time
// fails closed: nothing partial is persisted.
func (e *Engine) generationCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.GenerationTimeout)
}

// shuffle permutes songs in place using the engine's random source.
func (e *Engine) shuffle(songs []db.Song) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng.Shuffle(len(songs), func(i, j int) {
		songs[i], songs[j] = songs[j], songs[i]
	})
}

// upsertArtifact writes an artifact, retrying once on a concurrent-write
// conflict before reporting failure. A conflict only arises when two
// generators race the key's first insert; the upsert is a full-row write, so
// replaying the same payload converges on a single complete winner.
func (e *Engine) upsertArtifact(ctx context.Context, a *db.Artifact) error {
	err := e.artifacts.Upsert(ctx, a)
	if errors.Is(err, db.ErrConflict) {
		e.log.Debug().Str("user", a.UserID).Str("type", string(a.Type)).Msg("artifact upsert conflict, retrying")
		err = e.artifacts.Upsert(ctx, a)
	}
	return err
}

// day truncates the current time to a UTC calendar day.
func (e *Engine) day() time.Time {
	return dateOf(e.now())
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return dateOf(a).Equal(dateOf(b))
}

func sameISOWeek(a, b time.Time) bool {
	ay, aw := a.UTC().ISOWeek()
	by, bw := b.UTC().ISOWeek()
	return ay == by && aw == bw
}

// songIDs projects songs to their ids, preserving order.
func songIDs(songs []db.Song) []string {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}

// songsInOrder hydrates ids to songs, preserving the stored id order. Ids
// missing from the catalog are dropped.
func (e *Engine) songsInOrder(ctx context.Context, ids []string) ([]db.Song, error) {
	songs, err := e.catalog.SongsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]db.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}
	ordered := make([]db.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}
