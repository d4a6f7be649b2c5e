package model

import "encoding/json"

// Album is one recommendation row from the ranking oracle. The oracle is free
// to return additional columns; those ride along untyped in Extra and are
// flattened back out on the wire so callers see the original row shape.
type Album struct {
	ArtistID         int    `json:"artist_id"`
	ArtistName       string `json:"artist_name"`
	ReleaseGroupName string `json:"release_group_name"`

	SpotifyAlbumID              string `json:"spotify_album_id,omitempty"`
	SpotifyURL                  string `json:"spotify_url,omitempty"`
	SpotifyImageURL             string `json:"spotify_image_url,omitempty"`
	SpotifyAlbumName            string `json:"spotify_album_name,omitempty"`
	SpotifyReleaseDate          string `json:"spotify_release_date,omitempty"`
	SpotifyReleaseDatePrecision string `json:"spotify_release_date_precision,omitempty"`

	Extra map[string]any `json:"-"`
}

// SpotifyAlbumCandidate is one hit from the Spotify album catalog search,
// reduced to the fields the enrichment match cares about.
type SpotifyAlbumCandidate struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	URL                  string `json:"url,omitempty"`
	ImageURL             string `json:"imageUrl,omitempty"`
	ReleaseDate          string `json:"releaseDate,omitempty"`
	ReleaseDatePrecision string `json:"releaseDatePrecision,omitempty"`
}

// SpotifyEnrichment is the field set merged into a row on a catalog match.
type SpotifyEnrichment struct {
	AlbumID              string `json:"spotify_album_id"`
	URL                  string `json:"spotify_url"`
	ImageURL             string `json:"spotify_image_url"`
	AlbumName            string `json:"spotify_album_name"`
	ReleaseDate          string `json:"spotify_release_date"`
	ReleaseDatePrecision string `json:"spotify_release_date_precision"`
}

// Apply merges the enrichment fields into the row.
func (e *SpotifyEnrichment) Apply(a *Album) {
	a.SpotifyAlbumID = e.AlbumID
	a.SpotifyURL = e.URL
	a.SpotifyImageURL = e.ImageURL
	a.SpotifyAlbumName = e.AlbumName
	a.SpotifyReleaseDate = e.ReleaseDate
	a.SpotifyReleaseDatePrecision = e.ReleaseDatePrecision
}

var albumKnownKeys = map[string]bool{
	"artist_id":                      true,
	"artist_name":                    true,
	"release_group_name":             true,
	"spotify_album_id":               true,
	"spotify_url":                    true,
	"spotify_image_url":              true,
	"spotify_album_name":             true,
	"spotify_release_date":           true,
	"spotify_release_date_precision": true,
}

// MarshalJSON flattens Extra alongside the typed fields.
func (a Album) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+9)
	for k, v := range a.Extra {
		if !albumKnownKeys[k] {
			out[k] = v
		}
	}
	out["artist_id"] = a.ArtistID
	out["artist_name"] = a.ArtistName
	out["release_group_name"] = a.ReleaseGroupName
	if a.SpotifyAlbumID != "" {
		out["spotify_album_id"] = a.SpotifyAlbumID
	}
	if a.SpotifyURL != "" {
		out["spotify_url"] = a.SpotifyURL
	}
	if a.SpotifyImageURL != "" {
		out["spotify_image_url"] = a.SpotifyImageURL
	}
	if a.SpotifyAlbumName != "" {
		out["spotify_album_name"] = a.SpotifyAlbumName
	}
	if a.SpotifyReleaseDate != "" {
		out["spotify_release_date"] = a.SpotifyReleaseDate
	}
	if a.SpotifyReleaseDatePrecision != "" {
		out["spotify_release_date_precision"] = a.SpotifyReleaseDatePrecision
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat row back into typed fields plus Extra.
func (a *Album) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	getString := func(key string) string {
		var s string
		if msg, ok := raw[key]; ok {
			_ = json.Unmarshal(msg, &s)
		}
		return s
	}

	if msg, ok := raw["artist_id"]; ok {
		_ = json.Unmarshal(msg, &a.ArtistID)
	}
	a.ArtistName = getString("artist_name")
	a.ReleaseGroupName = getString("release_group_name")
	a.SpotifyAlbumID = getString("spotify_album_id")
	a.SpotifyURL = getString("spotify_url")
	a.SpotifyImageURL = getString("spotify_image_url")
	a.SpotifyAlbumName = getString("spotify_album_name")
	a.SpotifyReleaseDate = getString("spotify_release_date")
	a.SpotifyReleaseDatePrecision = getString("spotify_release_date_precision")

	for k, msg := range raw {
		if albumKnownKeys[k] {
			continue
		}
		var v any
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}
	return nil
}
