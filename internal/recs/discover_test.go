package recs

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/auralis-fm/auralis/internal/db"
)

// seedDiscoverData gives u1 history on artist a1/genre g1 and a catalog of
// unheard g1 songs to discover.
func seedDiscoverData(events int) (*fakeCatalog, *fakeSignals) {
	cat := newFakeCatalog()
	sig := newFakeSignals()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("heard%02d", i)
		cat.addSong(db.Song{ID: id, ArtistIDs: []string{"a1"}, GenreIDs: []string{"g1"}})
	}
	for i := 0; i < 40; i++ {
		cat.addSong(db.Song{
			ID:        fmt.Sprintf("new%02d", i),
			ArtistIDs: []string{fmt.Sprintf("other%02d", i)},
			GenreIDs:  []string{"g1"},
			PlayCount: int64(i),
		})
	}

	for i := 0; i < events; i++ {
		sig.listen("u1", fmt.Sprintf("heard%02d", i%5), testDay.Add(-time.Duration(i)*time.Hour), 1)
	}
	return cat, sig
}

func TestDiscoverWeekly_EligibilityBoundary(t *testing.T) {
	tests := []struct {
		name     string
		events   int
		artifact bool
	}{
		{name: "19 events yields no artifact", events: 19, artifact: false},
		{name: "20 events generates", events: 20, artifact: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, sig := seedDiscoverData(tt.events)
			art := newFakeArtifacts()
			e := newTestEngine(testConfig(), cat, sig, art)

			list, err := e.DiscoverWeekly(context.Background(), "u1")
			if err != nil {
				t.Fatalf("DiscoverWeekly: %v", err)
			}
			if tt.artifact && list == nil {
				t.Fatal("expected an artifact")
			}
			if !tt.artifact {
				if list != nil {
					t.Fatal("expected no artifact below the floor")
				}
				if art.upserts != 0 {
					t.Errorf("expected no materialization, got %d upserts", art.upserts)
				}
			}
		})
	}
}

func TestDiscoverWeekly_ExcludesListenedAndLiked(t *testing.T) {
	cat, sig := seedDiscoverData(25)
	sig.library["u1"] = &db.LibraryState{LikedSongIDs: []string{"new00", "new01"}}
	e := newTestEngine(testConfig(), cat, sig, newFakeArtifacts())

	list, err := e.DiscoverWeekly(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DiscoverWeekly: %v", err)
	}
	if list == nil {
		t.Fatal("expected an artifact")
	}

	banned := map[string]bool{"new00": true, "new01": true}
	for i := 0; i < 5; i++ {
		banned[fmt.Sprintf("heard%02d", i)] = true
	}
	for _, s := range list.Songs {
		if banned[s.ID] {
			t.Errorf("excluded song %s in discover weekly", s.ID)
		}
	}
}

func TestDiscoverWeekly_DeterministicUnderFixedSeed(t *testing.T) {
	run := func() []string {
		cat, sig := seedDiscoverData(25)
		e := newTestEngine(testConfig(), cat, sig, newFakeArtifacts())
		list, err := e.DiscoverWeekly(context.Background(), "u1")
		if err != nil {
			t.Fatalf("DiscoverWeekly: %v", err)
		}
		return songIDs(list.Songs)
	}

	first := run()
	if len(first) == 0 {
		t.Fatal("expected songs")
	}
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestDiscoverWeekly_SamplesFromScoredHead(t *testing.T) {
	cat := newFakeCatalog()
	sig := newFakeSignals()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("heard%02d", i)
		cat.addSong(db.Song{ID: id, ArtistIDs: []string{"a1"}, GenreIDs: []string{"g1"}})
	}
	for i := 0; i < 25; i++ {
		sig.listen("u1", fmt.Sprintf("heard%02d", i%5), testDay.Add(-time.Duration(i)*time.Hour), 1)
	}

	// Ten unheard songs by the profiled artist outscore thirty genre-only
	// ones; with a playlist of five, the sampled head covers exactly the
	// artist matches.
	for i := 0; i < 10; i++ {
		cat.addSong(db.Song{ID: fmt.Sprintf("top%02d", i), ArtistIDs: []string{"a1"}, GenreIDs: []string{"g1"}})
	}
	for i := 0; i < 30; i++ {
		cat.addSong(db.Song{ID: fmt.Sprintf("tail%02d", i), ArtistIDs: []string{fmt.Sprintf("x%02d", i)}, GenreIDs: []string{"g1"}})
	}

	cfg := testConfig()
	cfg.Discover.Size = 5
	e := newTestEngine(cfg, cat, sig, newFakeArtifacts())

	list, err := e.DiscoverWeekly(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DiscoverWeekly: %v", err)
	}
	if list == nil || len(list.Songs) != 5 {
		t.Fatalf("expected 5 songs, got %+v", list)
	}
	for _, s := range list.Songs {
		if !strings.HasPrefix(s.ID, "top") {
			t.Errorf("low-scored song %s drawn ahead of the scored head", s.ID)
		}
	}
}

func TestDiscoverWeekly_ServedFromArtifactWithinWeek(t *testing.T) {
	cat, sig := seedDiscoverData(25)
	art := newFakeArtifacts()
	e := newTestEngine(testConfig(), cat, sig, art)

	first, err := e.DiscoverWeekly(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if art.upserts != 1 {
		t.Fatalf("expected 1 upsert, got %d", art.upserts)
	}

	// A different random source must not matter: the stored artifact is
	// served, not recomputed.
	e2 := New(testConfig(), zerolog.Nop(), cat, sig, art,
		WithClock(func() time.Time { return testDay.Add(24 * time.Hour) }),
		WithRand(rand.New(rand.NewSource(99))),
	)
	second, err := e2.DiscoverWeekly(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if art.upserts != 1 {
		t.Errorf("expected no regeneration within the week, got %d upserts", art.upserts)
	}
	if !reflect.DeepEqual(songIDs(first.Songs), songIDs(second.Songs)) {
		t.Error("second call returned different content")
	}
}

func TestDiscoverWeekly_ConcurrentRegenerationSingleRecord(t *testing.T) {
	cat, sig := seedDiscoverData(25)
	art := newFakeArtifacts()
	e := newTestEngine(testConfig(), cat, sig, art)

	const n = 8
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := e.DiscoverWeekly(context.Background(), "u1")
			errCh <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}

	if len(art.artifacts) != 1 {
		t.Errorf("expected exactly one live artifact, got %d", len(art.artifacts))
	}
}
