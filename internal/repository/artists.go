package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/musicatlas/api/internal/model"
)

// ArtistRepository resolves artist names against the MusicBrainz mirror and
// stores Spotify genres alongside the catalog.
type ArtistRepository struct {
	pool *pgxpool.Pool
}

func NewArtistRepository(pool *pgxpool.Pool) *ArtistRepository {
	return &ArtistRepository{pool: pool}
}

// lookupArtistSQL matches by canonical name first, then by alias. Exact-case
// canonical matches sort first so "Low" beats an alias of another artist;
// within the same match class the lower id (older catalog entry) wins.
const lookupArtistSQL = `
SELECT id, gid, name, country, match_rank FROM (
    SELECT a.id, a.gid::text AS gid, a.name,
           COALESCE(area.name, '') AS country,
           CASE WHEN a.name = $1 THEN 0 ELSE 1 END AS match_rank
    FROM musicbrainz.artist a
    LEFT JOIN musicbrainz.area area ON area.id = a.area
    WHERE lower(a.name) = lower($1)
    UNION
    SELECT a.id, a.gid::text AS gid, a.name,
           COALESCE(area.name, '') AS country,
           2 AS match_rank
    FROM musicbrainz.artist a
    JOIN musicbrainz.artist_alias aa ON aa.artist = a.id
    LEFT JOIN musicbrainz.area area ON area.id = a.area
    WHERE lower(aa.name) = lower($1)
) candidates
ORDER BY match_rank, id
LIMIT 1`

const artistTagsSQL = `
SELECT t.name, at.count
FROM musicbrainz.artist_tag at
JOIN musicbrainz.tag t ON t.id = at.tag
WHERE at.artist = $1 AND at.count > 0
ORDER BY at.count DESC, t.name
LIMIT 25`

// LookupFullArtist returns the best catalog match for a name, or (nil, nil)
// when nothing matches.
func (r *ArtistRepository) LookupFullArtist(ctx context.Context, name string) (*model.FullArtist, error) {
	var (
		id        int
		mbid      string
		canonical string
		country   string
		matchRank int
	)
	err := r.pool.QueryRow(ctx, lookupArtistSQL, name).Scan(&id, &mbid, &canonical, &country, &matchRank)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup artist %q: %w", name, err)
	}

	artist := &model.FullArtist{
		InternalID: &id,
		MBID:       mbid,
		Name:       canonical,
		Country:    country,
	}

	rows, err := r.pool.Query(ctx, artistTagsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("load tags for artist %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag model.ArtistTag
		if err := rows.Scan(&tag.Name, &tag.Count); err != nil {
			return nil, fmt.Errorf("scan artist tag: %w", err)
		}
		artist.Tags = append(artist.Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read artist tags: %w", err)
	}

	return artist, nil
}

const upsertGenreSQL = `
INSERT INTO public.artist_spotify_genres (artist_id, genre, updated_at)
VALUES ($1, lower($2), now())
ON CONFLICT (artist_id, genre) DO UPDATE SET updated_at = now()`

// UpsertSpotifyGenres records the Spotify genres observed for a resolved
// artist. Genres are normalized to lower case.
func (r *ArtistRepository) UpsertSpotifyGenres(ctx context.Context, internalID int, genres []string) error {
	for _, genre := range genres {
		if genre == "" {
			continue
		}
		if _, err := r.pool.Exec(ctx, upsertGenreSQL, internalID, genre); err != nil {
			return fmt.Errorf("upsert genre %q for artist %d: %w", genre, internalID, err)
		}
	}
	return nil
}
