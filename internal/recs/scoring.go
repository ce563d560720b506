package recs

import (
	"math"
	"sort"

	"github.com/auralis-fm/auralis/internal/config"
	"github.com/auralis-fm/auralis/internal/db"
)

// scoreSong computes weighted signal overlap between a song and a profile.
// Artist overlap carries double the tag weight by default: direct artist
// affinity is a stronger relevance signal than tag overlap.
func scoreSong(s db.Song, p *TasteProfile, w config.Weights) float64 {
	return w.Genre*float64(overlap(s.GenreIDs, p.TopGenreIDs)) +
		w.Mood*float64(overlap(s.MoodIDs, p.TopMoodIDs)) +
		w.Artist*float64(overlap(s.ArtistIDs, p.TopArtistIDs))
}

// rankSongs sorts candidates by score descending. Ties break on play count
// descending, then id ascending, so the order is a pure function of its
// inputs.
func rankSongs(songs []db.Song, p *TasteProfile, w config.Weights) []db.Song {
	ranked := make([]db.Song, len(songs))
	copy(ranked, songs)

	scores := make(map[string]float64, len(ranked))
	for _, s := range ranked {
		scores[s.ID] = scoreSong(s, p, w)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if scores[a.ID] != scores[b.ID] {
			return scores[a.ID] > scores[b.ID]
		}
		if a.PlayCount != b.PlayCount {
			return a.PlayCount > b.PlayCount
		}
		return a.ID < b.ID
	})
	return ranked
}

// scorePlaylist scores a candidate playlist against a profile. Each profile
// tag contributes the number of playlist songs carrying it, weighted by the
// tag's rank in the profile: the top genre weighs w.PlaylistGenre, the next
// one less, floored at 1. A log-scaled popularity bonus is added on top, but
// only when there is tag affinity at all: likes alone score zero.
func scorePlaylist(pl db.Playlist, songs []db.Song, p *TasteProfile, w config.Weights) float64 {
	genreSongs := tagSongCounts(songs, func(s db.Song) []string { return s.GenreIDs })
	moodSongs := tagSongCounts(songs, func(s db.Song) []string { return s.MoodIDs })

	var score float64
	for rank, id := range p.TopGenreIDs {
		score += float64(genreSongs[id]) * rankWeight(w.PlaylistGenre, rank)
	}
	for rank, id := range p.TopMoodIDs {
		score += float64(moodSongs[id]) * rankWeight(w.PlaylistMood, rank)
	}
	if score == 0 {
		return 0
	}
	return score + math.Log2(float64(pl.LikeCount)+1)
}

// rankWeight decays a base weight by profile rank, never below 1.
func rankWeight(base float64, rank int) float64 {
	weight := base - float64(rank)
	if weight < 1 {
		return 1
	}
	return weight
}

// tagSongCounts counts, per tag id, how many songs carry the tag.
func tagSongCounts(songs []db.Song, tags func(db.Song) []string) map[string]int {
	counts := make(map[string]int)
	for _, s := range songs {
		for _, id := range tags(s) {
			counts[id]++
		}
	}
	return counts
}

// overlap counts ids present in both slices.
func overlap(ids, top []string) int {
	if len(ids) == 0 || len(top) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(top))
	for _, id := range top {
		set[id] = struct{}{}
	}
	n := 0
	for _, id := range ids {
		if _, ok := set[id]; ok {
			n++
		}
	}
	return n
}
