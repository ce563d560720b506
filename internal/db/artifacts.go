package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ArtifactRepository persists generated recommendation artifacts. All writes
// go through atomic upserts keyed by the artifact's full identity, so
// concurrent regeneration can never leave two live rows for the same key.
type ArtifactRepository struct {
	pool *pgxpool.Pool
}

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

func classifyWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// Upsert creates or replaces the artifact for (user, type). The row id is
// kept stable across regenerations.
func (r *ArtifactRepository) Upsert(ctx context.Context, a *Artifact) error {
	query := `
		INSERT INTO generated_artifacts (id, user_id, type, item_ids, generated_on, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, type) DO UPDATE SET
			item_ids = EXCLUDED.item_ids,
			generated_on = EXCLUDED.generated_on
		RETURNING id, created_at
	`
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.UserID,
		string(a.Type),
		a.ItemIDs,
		a.GeneratedOn,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting artifact: %w", classifyWriteErr(err))
	}
	return nil
}

// Get retrieves the live artifact for (user, type).
func (r *ArtifactRepository) Get(ctx context.Context, userID string, typ ArtifactType) (*Artifact, error) {
	query := `
		SELECT id, user_id, type, item_ids, generated_on, created_at
		FROM generated_artifacts
		WHERE user_id = $1 AND type = $2
	`
	var a Artifact
	err := r.pool.QueryRow(ctx, query, userID, string(typ)).Scan(
		&a.ID,
		&a.UserID,
		&a.Type,
		&a.ItemIDs,
		&a.GeneratedOn,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	return &a, nil
}

// Delete removes the artifact for (user, type). Used only when a strategy
// determines the artifact is no longer eligible.
func (r *ArtifactRepository) Delete(ctx context.Context, userID string, typ ArtifactType) error {
	query := `DELETE FROM generated_artifacts WHERE user_id = $1 AND type = $2`

	if _, err := r.pool.Exec(ctx, query, userID, string(typ)); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// UpsertMix creates or replaces the shared mix for (source tag, day).
func (r *ArtifactRepository) UpsertMix(ctx context.Context, m *Mix) error {
	query := `
		INSERT INTO daily_mixes (id, source_tag_id, kind, song_ids, generated_on, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source_tag_id, generated_on) DO UPDATE SET
			song_ids = EXCLUDED.song_ids,
			kind = EXCLUDED.kind
		RETURNING id, created_at
	`
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, query,
		m.ID,
		m.SourceTagID,
		string(m.Kind),
		m.SongIDs,
		m.GeneratedOn,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting mix: %w", classifyWriteErr(err))
	}
	return nil
}

// MixesOn retrieves all shared mixes generated on the given calendar day,
// with their source tag name and kind.
func (r *ArtifactRepository) MixesOn(ctx context.Context, day time.Time) ([]Mix, error) {
	query := `
		SELECT m.id, m.source_tag_id, t.name, m.kind, m.song_ids, m.generated_on, m.created_at
		FROM daily_mixes m
		JOIN tags t ON t.id = m.source_tag_id
		WHERE m.generated_on = $1
		ORDER BY m.kind, m.source_tag_id
	`
	rows, err := r.pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("querying mixes: %w", err)
	}
	defer rows.Close()

	var mixes []Mix
	for rows.Next() {
		var m Mix
		if err := rows.Scan(
			&m.ID,
			&m.SourceTagID,
			&m.TagName,
			&m.Kind,
			&m.SongIDs,
			&m.GeneratedOn,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning mix: %w", err)
		}
		mixes = append(mixes, m)
	}
	return mixes, rows.Err()
}

// DeleteMixesBefore removes shared mixes older than the given day. Called
// after a new day's mixes are written, never before.
func (r *ArtifactRepository) DeleteMixesBefore(ctx context.Context, day time.Time) error {
	query := `DELETE FROM daily_mixes WHERE generated_on < $1`

	if _, err := r.pool.Exec(ctx, query, day); err != nil {
		return fmt.Errorf("deleting stale mixes: %w", err)
	}
	return nil
}
