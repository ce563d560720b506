package db

import (
	"time"

	"github.com/google/uuid"
)

// TagKind distinguishes genre tags from mood tags.
type TagKind string

const (
	// KindGenre marks a genre tag.
	KindGenre TagKind = "genre"
	// KindMood marks a mood tag.
	KindMood TagKind = "mood"
)

// ArtifactType identifies which strategy produced a generated artifact.
type ArtifactType string

// Artifact types.
const (
	TypeDailyMix       ArtifactType = "DAILY_MIX"
	TypeOnRepeat       ArtifactType = "ON_REPEAT"
	TypeDiscoverWeekly ArtifactType = "DISCOVER_WEEKLY"
	TypeOnRepeatRewind ArtifactType = "ON_REPEAT_REWIND"
	TypeNewRelease     ArtifactType = "NEW_RELEASE"
	TypePlaylistForYou ArtifactType = "PLAYLIST_FOR_YOU"
)

// Tag is a genre or mood label referenced by songs.
type Tag struct {
	ID   string
	Name string
	Kind TagKind
}

// Song is a catalog track. ArtistIDs is never empty for a valid catalog row.
type Song struct {
	ID         string
	Title      string
	AlbumID    *string // nullable
	ArtistIDs  []string
	GenreIDs   []string
	MoodIDs    []string
	PlayCount  int64
	DurationMs int
}

// Album is a catalog album.
type Album struct {
	ID         string
	Title      string
	ArtistID   string
	ReleasedOn time.Time
}

// Playlist is a user-owned playlist. GenreIDs and MoodIDs aggregate the tags
// of all the playlist's songs, deduplicated.
type Playlist struct {
	ID        string
	OwnerID   string
	Name      string
	IsPublic  bool
	LikeCount int64
	SongIDs   []string
	GenreIDs  []string
	MoodIDs   []string
}

// ListenEvent is one playback of a song by a user. Append-only.
type ListenEvent struct {
	ID         int64
	UserID     string
	SongID     string
	ListenedAt time.Time
}

// LibraryState is a snapshot of a user's library relationships.
type LibraryState struct {
	LikedSongIDs      []string
	OwnedPlaylistIDs  []string
	SavedPlaylistIDs  []string
	FollowedArtistIDs []string
}

// Artifact is a persisted generation result for one (user, type) key.
// ItemIDs hold song, playlist or album ids depending on the type.
type Artifact struct {
	ID          uuid.UUID
	UserID      string
	Type        ArtifactType
	ItemIDs     []string
	GeneratedOn time.Time // date precision
	CreatedAt   time.Time
}

// Mix is a shared daily mix for one source tag. Not user-scoped; at most one
// live row exists per (source tag, calendar day).
type Mix struct {
	ID          uuid.UUID
	SourceTagID string
	TagName     string
	Kind        TagKind
	SongIDs     []string
	GeneratedOn time.Time // date precision
	CreatedAt   time.Time
}
