package web

import (
	"github.com/auralis-fm/auralis/internal/db"
	"github.com/auralis-fm/auralis/internal/recs"
)

// Response shapes. The adapter owns these so the engine's types stay free of
// serialization concerns.

type songView struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	AlbumID    *string  `json:"albumId,omitempty"`
	ArtistIDs  []string `json:"artistIds"`
	GenreIDs   []string `json:"genreIds"`
	MoodIDs    []string `json:"moodIds"`
	PlayCount  int64    `json:"playCount"`
	DurationMs int      `json:"durationMs"`
}

type songListView struct {
	Type        string     `json:"type"`
	GeneratedOn string     `json:"generatedOn"`
	Songs       []songView `json:"songs"`
}

type mixView struct {
	TagID       string     `json:"tagId"`
	TagName     string     `json:"tagName"`
	Kind        string     `json:"kind"`
	GeneratedOn string     `json:"generatedOn"`
	Songs       []songView `json:"songs"`
}

type dailyMixesView struct {
	GenreMixes []mixView `json:"genreMixes"`
	MoodMixes  []mixView `json:"moodMixes"`
}

type playlistView struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"ownerId"`
	Name      string   `json:"name"`
	LikeCount int64    `json:"likeCount"`
	SongIDs   []string `json:"songIds"`
}

type albumView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistID   string `json:"artistId"`
	ReleasedOn string `json:"releasedOn"`
}

func toSong(s db.Song) songView {
	return songView{
		ID:         s.ID,
		Title:      s.Title,
		AlbumID:    s.AlbumID,
		ArtistIDs:  s.ArtistIDs,
		GenreIDs:   s.GenreIDs,
		MoodIDs:    s.MoodIDs,
		PlayCount:  s.PlayCount,
		DurationMs: s.DurationMs,
	}
}

func toSongs(songs []db.Song) []songView {
	out := make([]songView, len(songs))
	for i, s := range songs {
		out[i] = toSong(s)
	}
	return out
}

func toSongList(list *recs.SongList) songListView {
	return songListView{
		Type:        string(list.Type),
		GeneratedOn: list.GeneratedOn,
		Songs:       toSongs(list.Songs),
	}
}

func toMix(m recs.MixView) mixView {
	return mixView{
		TagID:       m.TagID,
		TagName:     m.TagName,
		Kind:        string(m.Kind),
		GeneratedOn: m.GeneratedOn,
		Songs:       toSongs(m.Songs),
	}
}

func toDailyMixes(mixes *recs.DailyMixes) dailyMixesView {
	out := dailyMixesView{
		GenreMixes: make([]mixView, len(mixes.GenreMixes)),
		MoodMixes:  make([]mixView, len(mixes.MoodMixes)),
	}
	for i, m := range mixes.GenreMixes {
		out.GenreMixes[i] = toMix(m)
	}
	for i, m := range mixes.MoodMixes {
		out.MoodMixes[i] = toMix(m)
	}
	return out
}

func toPlaylists(playlists []db.Playlist) []playlistView {
	out := make([]playlistView, len(playlists))
	for i, p := range playlists {
		out[i] = playlistView{
			ID:        p.ID,
			OwnerID:   p.OwnerID,
			Name:      p.Name,
			LikeCount: p.LikeCount,
			SongIDs:   p.SongIDs,
		}
	}
	return out
}

func toAlbums(albums []db.Album) []albumView {
	out := make([]albumView, len(albums))
	for i, a := range albums {
		out[i] = albumView{
			ID:         a.ID,
			Title:      a.Title,
			ArtistID:   a.ArtistID,
			ReleasedOn: a.ReleasedOn.Format("2006-01-02"),
		}
	}
	return out
}
