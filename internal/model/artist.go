package model

// SimpleArtist is the reduced Spotify artist shape fed into seed resolution.
type SimpleArtist struct {
	Name       string   `json:"name" validate:"required"`
	Popularity *int     `json:"popularity,omitempty"`
	Genres     []string `json:"genres,omitempty"`
}

// ArtistTag is a MusicBrainz folksonomy tag with its vote count.
type ArtistTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FullArtist is the canonical catalog record returned by an artist lookup.
// InternalID is nil when the catalog row carries no usable numeric id.
type FullArtist struct {
	InternalID *int        `json:"mb_internal_id,omitempty"`
	MBID       string      `json:"mbid,omitempty"`
	Name       string      `json:"name"`
	Country    string      `json:"country,omitempty"`
	Tags       []ArtistTag `json:"tags,omitempty"`
}
