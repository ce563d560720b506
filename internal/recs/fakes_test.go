package recs

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auralis-fm/auralis/internal/config"
	"github.com/auralis-fm/auralis/internal/db"
	"github.com/rs/zerolog"
)

// testDay is the pinned "now" for engine tests: Friday 2026-08-28 noon UTC.
var testDay = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DatabaseURL = "postgres://test"
	return cfg
}

func newTestEngine(cfg *config.Config, cat *fakeCatalog, sig *fakeSignals, art *fakeArtifacts) *Engine {
	return New(cfg, zerolog.Nop(), cat, sig, art,
		WithClock(func() time.Time { return testDay }),
		WithRand(rand.New(rand.NewSource(1))),
	)
}

// fakeCatalog is an in-memory Catalog. Query results follow the same
// ordering contracts as the SQL implementation: play count descending, id
// ascending.
type fakeCatalog struct {
	songs     map[string]db.Song
	albums    []db.Album
	playlists []db.Playlist
	tags      map[db.TagKind][]db.Tag

	err        error            // returned by every method when set
	sampleErrs map[string]error // per-tag SampleSongsByTag failures
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		songs:      make(map[string]db.Song),
		tags:       make(map[db.TagKind][]db.Tag),
		sampleErrs: make(map[string]error),
	}
}

func (c *fakeCatalog) addSong(s db.Song) {
	c.songs[s.ID] = s
}

func (c *fakeCatalog) sortedSongs() []db.Song {
	songs := make([]db.Song, 0, len(c.songs))
	for _, s := range c.songs {
		songs = append(songs, s)
	}
	sort.Slice(songs, func(i, j int) bool {
		if songs[i].PlayCount != songs[j].PlayCount {
			return songs[i].PlayCount > songs[j].PlayCount
		}
		return songs[i].ID < songs[j].ID
	})
	return songs
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func anyOverlap(a, b []string) bool {
	for _, id := range a {
		if contains(b, id) {
			return true
		}
	}
	return false
}

func (c *fakeCatalog) SongsByTags(_ context.Context, genreIDs, moodIDs, artistIDs, excludeIDs []string, limit int) ([]db.Song, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []db.Song
	for _, s := range c.sortedSongs() {
		if contains(excludeIDs, s.ID) {
			continue
		}
		if !anyOverlap(s.GenreIDs, genreIDs) && !anyOverlap(s.MoodIDs, moodIDs) && !anyOverlap(s.ArtistIDs, artistIDs) {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *fakeCatalog) SongsByIDs(_ context.Context, ids []string) ([]db.Song, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []db.Song
	for _, id := range ids {
		if s, ok := c.songs[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *fakeCatalog) TrendingSongs(_ context.Context, excludeIDs []string, limit int) ([]db.Song, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []db.Song
	for _, s := range c.sortedSongs() {
		if contains(excludeIDs, s.ID) {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *fakeCatalog) SampleSongsByTag(ctx context.Context, tagID string, n int) ([]db.Song, error) {
	if c.err != nil {
		return nil, c.err
	}
	if err := c.sampleErrs[tagID]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []db.Song
	for _, s := range c.sortedSongs() {
		if contains(s.GenreIDs, tagID) || contains(s.MoodIDs, tagID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (c *fakeCatalog) CountSongsByTag(_ context.Context, tagID string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n := 0
	for _, s := range c.songs {
		if contains(s.GenreIDs, tagID) || contains(s.MoodIDs, tagID) {
			n++
		}
	}
	return n, nil
}

func (c *fakeCatalog) TopTags(_ context.Context, kind db.TagKind, limit int) ([]db.Tag, error) {
	if c.err != nil {
		return nil, c.err
	}
	tags := c.tags[kind]
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

func (c *fakeCatalog) PublicPlaylists(_ context.Context, excludeOwner string, minSongs int) ([]db.Playlist, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []db.Playlist
	for _, p := range c.playlists {
		if !p.IsPublic || p.OwnerID == excludeOwner || len(p.SongIDs) < minSongs {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LikeCount != out[j].LikeCount {
			return out[i].LikeCount > out[j].LikeCount
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *fakeCatalog) PlaylistsByIDs(_ context.Context, ids []string) ([]db.Playlist, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []db.Playlist
	for _, p := range c.playlists {
		if contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) AlbumsByArtistsSince(_ context.Context, artistIDs []string, since time.Time) ([]db.Album, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []db.Album
	for _, a := range c.albums {
		if contains(artistIDs, a.ArtistID) && !a.ReleasedOn.Before(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReleasedOn.Equal(out[j].ReleasedOn) {
			return out[i].ReleasedOn.After(out[j].ReleasedOn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *fakeCatalog) AlbumsByIDs(_ context.Context, ids []string) ([]db.Album, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []db.Album
	for _, a := range c.albums {
		if contains(ids, a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeSignals is an in-memory SignalStore. Events are stored
// most-recent-first, matching the repository contract.
type fakeSignals struct {
	events  map[string][]db.ListenEvent
	library map[string]*db.LibraryState

	err error
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{
		events:  make(map[string][]db.ListenEvent),
		library: make(map[string]*db.LibraryState),
	}
}

// listen records n plays of songID at the given time.
func (s *fakeSignals) listen(userID, songID string, at time.Time, n int) {
	for i := 0; i < n; i++ {
		s.events[userID] = append(s.events[userID], db.ListenEvent{
			UserID:     userID,
			SongID:     songID,
			ListenedAt: at,
		})
	}
	sort.SliceStable(s.events[userID], func(i, j int) bool {
		return s.events[userID][i].ListenedAt.After(s.events[userID][j].ListenedAt)
	})
}

func (s *fakeSignals) RecentListens(_ context.Context, userID string, limit int) ([]db.ListenEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	events := s.events[userID]
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *fakeSignals) ListensBetween(_ context.Context, userID string, from, to time.Time) ([]db.ListenEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []db.ListenEvent
	for _, ev := range s.events[userID] {
		if !ev.ListenedAt.Before(from) && ev.ListenedAt.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeSignals) ListenCounts(_ context.Context, userID string) (map[string]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	counts := make(map[string]int)
	for _, ev := range s.events[userID] {
		counts[ev.SongID]++
	}
	return counts, nil
}

func (s *fakeSignals) LibraryState(_ context.Context, userID string) (*db.LibraryState, error) {
	if s.err != nil {
		return nil, s.err
	}
	if state, ok := s.library[userID]; ok {
		return state, nil
	}
	return &db.LibraryState{}, nil
}

// fakeArtifacts is an in-memory ArtifactStore. Writes are upserts keyed by
// the artifact identity, mirroring the unique constraints in Postgres.
type fakeArtifacts struct {
	mu        sync.Mutex
	artifacts map[string]db.Artifact
	mixes     map[string]db.Mix

	upserts    int
	mixUpserts int
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{
		artifacts: make(map[string]db.Artifact),
		mixes:     make(map[string]db.Mix),
	}
}

func artifactKey(userID string, typ db.ArtifactType) string {
	return userID + "|" + string(typ)
}

func mixKey(tagID string, day time.Time) string {
	return tagID + "|" + day.Format("2006-01-02")
}

func (f *fakeArtifacts) Upsert(_ context.Context, a *db.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	key := artifactKey(a.UserID, a.Type)
	if existing, ok := f.artifacts[key]; ok {
		a.ID = existing.ID
	}
	f.artifacts[key] = *a
	f.upserts++
	return nil
}

func (f *fakeArtifacts) Get(_ context.Context, userID string, typ db.ArtifactType) (*db.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artifacts[artifactKey(userID, typ)]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", typ, db.ErrNotFound)
	}
	out := a
	return &out, nil
}

func (f *fakeArtifacts) Delete(_ context.Context, userID string, typ db.ArtifactType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.artifacts, artifactKey(userID, typ))
	return nil
}

func (f *fakeArtifacts) UpsertMix(_ context.Context, m *db.Mix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	key := mixKey(m.SourceTagID, m.GeneratedOn)
	if existing, ok := f.mixes[key]; ok {
		m.ID = existing.ID
	}
	f.mixes[key] = *m
	f.mixUpserts++
	return nil
}

func (f *fakeArtifacts) MixesOn(_ context.Context, day time.Time) ([]db.Mix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Mix
	for _, m := range f.mixes {
		if m.GeneratedOn.Equal(dateOf(day)) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].SourceTagID < out[j].SourceTagID
	})
	return out, nil
}

func (f *fakeArtifacts) DeleteMixesBefore(_ context.Context, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, m := range f.mixes {
		if m.GeneratedOn.Before(dateOf(day)) {
			delete(f.mixes, key)
		}
	}
	return nil
}
