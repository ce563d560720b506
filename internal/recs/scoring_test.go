package recs

import (
	"math"
	"reflect"
	"testing"

	"github.com/auralis-fm/auralis/internal/config"
	"github.com/auralis-fm/auralis/internal/db"
)

func defaultWeights() config.Weights {
	return config.Default().Weights
}

func TestScoreSong_ArtistWeighsDouble(t *testing.T) {
	profile := &TasteProfile{
		TopGenreIDs:  []string{"g1"},
		TopMoodIDs:   []string{"m1"},
		TopArtistIDs: []string{"a1"},
	}

	byGenre := db.Song{ID: "s1", GenreIDs: []string{"g1"}}
	byArtist := db.Song{ID: "s2", ArtistIDs: []string{"a1"}}
	byAll := db.Song{ID: "s3", GenreIDs: []string{"g1"}, MoodIDs: []string{"m1"}, ArtistIDs: []string{"a1"}}

	w := defaultWeights()
	if got := scoreSong(byGenre, profile, w); got != 1 {
		t.Errorf("genre-only score = %v, want 1", got)
	}
	if got := scoreSong(byArtist, profile, w); got != 2 {
		t.Errorf("artist-only score = %v, want 2", got)
	}
	if got := scoreSong(byAll, profile, w); got != 4 {
		t.Errorf("full-overlap score = %v, want 4", got)
	}
}

func TestRankSongs_Deterministic(t *testing.T) {
	profile := &TasteProfile{
		TopGenreIDs:  []string{"g1"},
		TopArtistIDs: []string{"a1"},
	}
	songs := []db.Song{
		{ID: "s3", GenreIDs: []string{"g1"}, PlayCount: 5},
		{ID: "s1", ArtistIDs: []string{"a1"}, PlayCount: 1},
		{ID: "s2", GenreIDs: []string{"g1"}, PlayCount: 5},
		{ID: "s4", PlayCount: 100},
	}

	w := defaultWeights()
	first := rankSongs(songs, profile, w)
	for i := 0; i < 10; i++ {
		if got := rankSongs(songs, profile, w); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced different order: %v vs %v", i, songIDs(got), songIDs(first))
		}
	}

	// Artist overlap outranks genre overlap; equal scores break on play
	// count, then id; zero overlap sinks regardless of popularity.
	want := []string{"s1", "s2", "s3", "s4"}
	if got := songIDs(first); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestScorePlaylist_RankDecayAndPopularity(t *testing.T) {
	profile := &TasteProfile{
		TopGenreIDs: []string{"G1", "G2"},
	}
	pl := db.Playlist{ID: "p1", LikeCount: 10}
	songs := []db.Song{
		{ID: "s1", GenreIDs: []string{"G1"}},
		{ID: "s2", GenreIDs: []string{"G1"}},
		{ID: "s3", GenreIDs: []string{"G1"}},
		{ID: "s4", GenreIDs: []string{"G2"}},
	}

	// 3 songs * weight 3 + 1 song * weight 2 + log2(11)
	want := 3*3 + 1*2 + math.Log2(11)
	got := scorePlaylist(pl, songs, profile, defaultWeights())
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got, want)
	}
	if got < 14.45 || got > 14.47 {
		t.Errorf("score = %v, want ~14.46", got)
	}
}

func TestScorePlaylist_PopularityAloneScoresZero(t *testing.T) {
	profile := &TasteProfile{TopGenreIDs: []string{"G1"}}
	pl := db.Playlist{ID: "p1", LikeCount: 100000}
	songs := []db.Song{{ID: "s1", GenreIDs: []string{"other"}}}

	if got := scorePlaylist(pl, songs, profile, defaultWeights()); got != 0 {
		t.Errorf("score = %v, want 0 for zero tag overlap", got)
	}
}

func TestRankWeight_FloorsAtOne(t *testing.T) {
	if got := rankWeight(3, 0); got != 3 {
		t.Errorf("rank 0 weight = %v, want 3", got)
	}
	if got := rankWeight(3, 2); got != 1 {
		t.Errorf("rank 2 weight = %v, want 1", got)
	}
	if got := rankWeight(3, 4); got != 1 {
		t.Errorf("rank 4 weight = %v, want 1", got)
	}
}
