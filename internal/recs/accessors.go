package recs

import (
	"context"
	"time"

	"github.com/auralis-fm/auralis/internal/db"
)

// Catalog is the read-only view of the song/album/artist/playlist corpus.
// Implemented by db.CatalogRepository; tests use an in-memory fake.
type Catalog interface {
	SongsByTags(ctx context.Context, genreIDs, moodIDs, artistIDs, excludeIDs []string, limit int) ([]db.Song, error)
	SongsByIDs(ctx context.Context, ids []string) ([]db.Song, error)
	TrendingSongs(ctx context.Context, excludeIDs []string, limit int) ([]db.Song, error)
	SampleSongsByTag(ctx context.Context, tagID string, n int) ([]db.Song, error)
	CountSongsByTag(ctx context.Context, tagID string) (int, error)
	TopTags(ctx context.Context, kind db.TagKind, limit int) ([]db.Tag, error)
	PublicPlaylists(ctx context.Context, excludeOwner string, minSongs int) ([]db.Playlist, error)
	PlaylistsByIDs(ctx context.Context, ids []string) ([]db.Playlist, error)
	AlbumsByArtistsSince(ctx context.Context, artistIDs []string, since time.Time) ([]db.Album, error)
	AlbumsByIDs(ctx context.Context, ids []string) ([]db.Album, error)
}

// SignalStore is the read view of listening signals. Implemented by
// db.SignalRepository.
type SignalStore interface {
	RecentListens(ctx context.Context, userID string, limit int) ([]db.ListenEvent, error)
	ListensBetween(ctx context.Context, userID string, from, to time.Time) ([]db.ListenEvent, error)
	ListenCounts(ctx context.Context, userID string) (map[string]int, error)
	LibraryState(ctx context.Context, userID string) (*db.LibraryState, error)
}

// ArtifactStore persists generation results. Implemented by
// db.ArtifactRepository. Upserts are atomic per key; concurrent writers
// surface db.ErrConflict.
type ArtifactStore interface {
	Upsert(ctx context.Context, a *db.Artifact) error
	Get(ctx context.Context, userID string, typ db.ArtifactType) (*db.Artifact, error)
	Delete(ctx context.Context, userID string, typ db.ArtifactType) error
	UpsertMix(ctx context.Context, m *db.Mix) error
	MixesOn(ctx context.Context, day time.Time) ([]db.Mix, error)
	DeleteMixesBefore(ctx context.Context, day time.Time) error
}
