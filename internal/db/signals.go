package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SignalRepository provides access to listening signals: play events and
// library state (likes, follows, saved playlists). Listen events are
// append-only; this repository only deletes them through the explicit
// retention pruning path.
type SignalRepository struct {
	pool *pgxpool.Pool
}

// RecentListens retrieves a user's most recent listen events,
// most-recent-first.
func (r *SignalRepository) RecentListens(ctx context.Context, userID string, limit int) ([]ListenEvent, error) {
	query := `
		SELECT id, user_id, song_id, listened_at
		FROM listen_events
		WHERE user_id = $1
		ORDER BY listened_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent listens: %w", err)
	}
	return collectListens(rows)
}

// ListensBetween retrieves a user's listen events in [from, to),
// most-recent-first.
func (r *SignalRepository) ListensBetween(ctx context.Context, userID string, from, to time.Time) ([]ListenEvent, error) {
	query := `
		SELECT id, user_id, song_id, listened_at
		FROM listen_events
		WHERE user_id = $1
		  AND listened_at >= $2
		  AND listened_at < $3
		ORDER BY listened_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying listens between: %w", err)
	}
	return collectListens(rows)
}

func collectListens(rows pgx.Rows) ([]ListenEvent, error) {
	defer rows.Close()

	var events []ListenEvent
	for rows.Next() {
		var e ListenEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.SongID, &e.ListenedAt); err != nil {
			return nil, fmt.Errorf("scanning listen event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListenCounts groups a user's all-time listen events by song.
func (r *SignalRepository) ListenCounts(ctx context.Context, userID string) (map[string]int, error) {
	query := `
		SELECT song_id, COUNT(*)
		FROM listen_events
		WHERE user_id = $1
		GROUP BY song_id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying listen counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var songID string
		var count int
		if err := rows.Scan(&songID, &count); err != nil {
			return nil, fmt.Errorf("scanning listen count: %w", err)
		}
		counts[songID] = count
	}
	return counts, rows.Err()
}

// LibraryState retrieves a snapshot of a user's likes, playlists and follows.
func (r *SignalRepository) LibraryState(ctx context.Context, userID string) (*LibraryState, error) {
	query := `
		SELECT
			ARRAY(SELECT song_id FROM user_library WHERE user_id = $1 ORDER BY song_id),
			ARRAY(SELECT id FROM playlists WHERE owner_id = $1 ORDER BY id),
			ARRAY(SELECT playlist_id FROM user_playlists WHERE user_id = $1 ORDER BY playlist_id),
			ARRAY(SELECT artist_id FROM user_artists WHERE user_id = $1 ORDER BY artist_id)
	`
	var state LibraryState
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&state.LikedSongIDs,
		&state.OwnedPlaylistIDs,
		&state.SavedPlaylistIDs,
		&state.FollowedArtistIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying library state: %w", err)
	}
	return &state, nil
}

// PruneListensBefore deletes listen events older than the cutoff. This is the
// only deletion path for listen events; it is driven by the configured
// retention policy, never by generation.
func (r *SignalRepository) PruneListensBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM listen_events WHERE listened_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning listen events: %w", err)
	}
	return tag.RowsAffected(), nil
}
