package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository provides read-only queries against the song, album,
// artist and playlist corpus. The catalog is owned by other services; this
// repository never mutates it.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// songColumns selects a song row together with its artist, genre and mood id
// arrays. Queries embedding it must alias the songs table as "s".
const songColumns = `
	s.id, s.title, s.album_id, s.play_count, s.duration_ms,
	ARRAY(SELECT sa.artist_id FROM song_artists sa WHERE sa.song_id = s.id ORDER BY sa.artist_id),
	ARRAY(SELECT st.tag_id FROM song_tags st JOIN tags t ON t.id = st.tag_id
	      WHERE st.song_id = s.id AND t.kind = 'genre' ORDER BY st.tag_id),
	ARRAY(SELECT st.tag_id FROM song_tags st JOIN tags t ON t.id = st.tag_id
	      WHERE st.song_id = s.id AND t.kind = 'mood' ORDER BY st.tag_id)`

func scanSong(row pgx.Row) (Song, error) {
	var s Song
	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.AlbumID,
		&s.PlayCount,
		&s.DurationMs,
		&s.ArtistIDs,
		&s.GenreIDs,
		&s.MoodIDs,
	)
	return s, err
}

func collectSongs(rows pgx.Rows) ([]Song, error) {
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// SongsByTags retrieves songs sharing at least one genre tag, mood tag or
// artist with the given id sets, omitting excluded ids. Results are capped at
// limit, most-played first; the caller re-ranks them.
func (r *CatalogRepository) SongsByTags(ctx context.Context, genreIDs, moodIDs, artistIDs, excludeIDs []string, limit int) ([]Song, error) {
	query := `
		SELECT ` + songColumns + `
		FROM songs s
		WHERE s.id <> ALL($4::text[])
		  AND (
			EXISTS (SELECT 1 FROM song_tags st WHERE st.song_id = s.id AND st.tag_id = ANY($1::text[]))
			OR EXISTS (SELECT 1 FROM song_tags st WHERE st.song_id = s.id AND st.tag_id = ANY($2::text[]))
			OR EXISTS (SELECT 1 FROM song_artists sa WHERE sa.song_id = s.id AND sa.artist_id = ANY($3::text[]))
		  )
		ORDER BY s.play_count DESC, s.id
		LIMIT $5
	`
	rows, err := r.pool.Query(ctx, query, genreIDs, moodIDs, artistIDs, excludeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("querying songs by tags: %w", err)
	}
	return collectSongs(rows)
}

// SongsByIDs retrieves the given songs with their tag and artist ids. Missing
// ids are silently omitted.
func (r *CatalogRepository) SongsByIDs(ctx context.Context, ids []string) ([]Song, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + songColumns + `
		FROM songs s
		WHERE s.id = ANY($1::text[])
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying songs by ids: %w", err)
	}
	return collectSongs(rows)
}

// TrendingSongs retrieves the globally most-played songs, omitting excluded
// ids.
func (r *CatalogRepository) TrendingSongs(ctx context.Context, excludeIDs []string, limit int) ([]Song, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	query := `
		SELECT ` + songColumns + `
		FROM songs s
		WHERE s.id <> ALL($1::text[])
		ORDER BY s.play_count DESC, s.id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, excludeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("querying trending songs: %w", err)
	}
	return collectSongs(rows)
}

// SampleSongsByTag retrieves a uniform random sample of n songs carrying the
// given tag.
func (r *CatalogRepository) SampleSongsByTag(ctx context.Context, tagID string, n int) ([]Song, error) {
	query := `
		SELECT ` + songColumns + `
		FROM songs s
		JOIN song_tags st ON st.song_id = s.id
		WHERE st.tag_id = $1
		ORDER BY random()
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, tagID, n)
	if err != nil {
		return nil, fmt.Errorf("sampling songs by tag: %w", err)
	}
	return collectSongs(rows)
}

// CountSongsByTag counts catalog songs carrying the given tag.
func (r *CatalogRepository) CountSongsByTag(ctx context.Context, tagID string) (int, error) {
	query := `SELECT COUNT(*) FROM song_tags WHERE tag_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, tagID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting songs by tag: %w", err)
	}
	return count, nil
}

// TopTags retrieves the tags of one kind with the most catalog songs,
// most-used first. Ties break on tag id for determinism.
func (r *CatalogRepository) TopTags(ctx context.Context, kind TagKind, limit int) ([]Tag, error) {
	query := `
		SELECT t.id, t.name, t.kind
		FROM tags t
		JOIN song_tags st ON st.tag_id = t.id
		WHERE t.kind = $1
		GROUP BY t.id, t.name, t.kind
		ORDER BY COUNT(*) DESC, t.id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("querying top tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Kind); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// PublicPlaylists retrieves public playlists not owned by excludeOwner with
// at least minSongs songs, including their song ids and the deduplicated
// genre/mood tag sets across all their songs.
func (r *CatalogRepository) PublicPlaylists(ctx context.Context, excludeOwner string, minSongs int) ([]Playlist, error) {
	query := `
		SELECT p.id, p.owner_id, p.name, p.is_public, p.like_count,
			ARRAY(SELECT ps.song_id FROM playlist_songs ps WHERE ps.playlist_id = p.id ORDER BY ps.position),
			ARRAY(SELECT DISTINCT st.tag_id FROM playlist_songs ps
			      JOIN song_tags st ON st.song_id = ps.song_id
			      JOIN tags t ON t.id = st.tag_id
			      WHERE ps.playlist_id = p.id AND t.kind = 'genre'),
			ARRAY(SELECT DISTINCT st.tag_id FROM playlist_songs ps
			      JOIN song_tags st ON st.song_id = ps.song_id
			      JOIN tags t ON t.id = st.tag_id
			      WHERE ps.playlist_id = p.id AND t.kind = 'mood')
		FROM playlists p
		WHERE p.is_public
		  AND p.owner_id <> $1
		  AND (SELECT COUNT(*) FROM playlist_songs ps WHERE ps.playlist_id = p.id) >= $2
		ORDER BY p.like_count DESC, p.id
	`
	rows, err := r.pool.Query(ctx, query, excludeOwner, minSongs)
	if err != nil {
		return nil, fmt.Errorf("querying public playlists: %w", err)
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Name,
			&p.IsPublic,
			&p.LikeCount,
			&p.SongIDs,
			&p.GenreIDs,
			&p.MoodIDs,
		); err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// PlaylistsByIDs retrieves the given playlists with song ids and aggregated
// tag sets. Missing ids are silently omitted.
func (r *CatalogRepository) PlaylistsByIDs(ctx context.Context, ids []string) ([]Playlist, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT p.id, p.owner_id, p.name, p.is_public, p.like_count,
			ARRAY(SELECT ps.song_id FROM playlist_songs ps WHERE ps.playlist_id = p.id ORDER BY ps.position),
			ARRAY(SELECT DISTINCT st.tag_id FROM playlist_songs ps
			      JOIN song_tags st ON st.song_id = ps.song_id
			      JOIN tags t ON t.id = st.tag_id
			      WHERE ps.playlist_id = p.id AND t.kind = 'genre'),
			ARRAY(SELECT DISTINCT st.tag_id FROM playlist_songs ps
			      JOIN song_tags st ON st.song_id = ps.song_id
			      JOIN tags t ON t.id = st.tag_id
			      WHERE ps.playlist_id = p.id AND t.kind = 'mood')
		FROM playlists p
		WHERE p.id = ANY($1::text[])
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying playlists by ids: %w", err)
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Name,
			&p.IsPublic,
			&p.LikeCount,
			&p.SongIDs,
			&p.GenreIDs,
			&p.MoodIDs,
		); err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// AlbumsByIDs retrieves the given albums. Missing ids are silently omitted.
func (r *CatalogRepository) AlbumsByIDs(ctx context.Context, ids []string) ([]Album, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT a.id, a.title, a.artist_id, a.released_on
		FROM albums a
		WHERE a.id = ANY($1::text[])
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying albums by ids: %w", err)
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.Title, &a.ArtistID, &a.ReleasedOn); err != nil {
			return nil, fmt.Errorf("scanning album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// AlbumsByArtistsSince retrieves albums by the given artists released on or
// after the given date, newest first.
func (r *CatalogRepository) AlbumsByArtistsSince(ctx context.Context, artistIDs []string, since time.Time) ([]Album, error) {
	if len(artistIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT a.id, a.title, a.artist_id, a.released_on
		FROM albums a
		WHERE a.artist_id = ANY($1::text[])
		  AND a.released_on >= $2
		ORDER BY a.released_on DESC, a.id
	`
	rows, err := r.pool.Query(ctx, query, artistIDs, since)
	if err != nil {
		return nil, fmt.Errorf("querying albums by artists: %w", err)
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.Title, &a.ArtistID, &a.ReleasedOn); err != nil {
			return nil, fmt.Errorf("scanning album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}
