package model

import (
	"encoding/json"
	"testing"
)

func TestAlbumMarshalFlattensExtra(t *testing.T) {
	album := Album{
		ArtistID:         7,
		ArtistName:       "Low",
		ReleaseGroupName: "HEY WHAT",
		SpotifyAlbumID:   "abc",
		Extra: map[string]any{
			"score":    0.92,
			"tag_name": "slowcore",
		},
	}

	data, err := json.Marshal(album)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}

	if flat["artist_name"] != "Low" {
		t.Fatalf("expected artist_name Low, got %v", flat["artist_name"])
	}
	if flat["score"] != 0.92 {
		t.Fatalf("expected extra column score flattened, got %v", flat["score"])
	}
	if flat["tag_name"] != "slowcore" {
		t.Fatalf("expected extra column tag_name flattened, got %v", flat["tag_name"])
	}
	if _, present := flat["Extra"]; present {
		t.Fatal("Extra must not leak as its own key")
	}
	// Empty spotify fields are omitted.
	if _, present := flat["spotify_url"]; present {
		t.Fatal("empty spotify_url must be omitted")
	}
	if flat["spotify_album_id"] != "abc" {
		t.Fatalf("expected spotify_album_id abc, got %v", flat["spotify_album_id"])
	}
}

func TestAlbumUnmarshalSplitsExtra(t *testing.T) {
	raw := `{
		"artist_id": 7,
		"artist_name": "Low",
		"release_group_name": "HEY WHAT",
		"score": 0.92,
		"tag_name": "slowcore"
	}`

	var album Album
	if err := json.Unmarshal([]byte(raw), &album); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if album.ArtistID != 7 || album.ArtistName != "Low" {
		t.Fatalf("typed fields not populated: %+v", album)
	}
	if album.Extra["tag_name"] != "slowcore" {
		t.Fatalf("expected unknown column in Extra, got %v", album.Extra)
	}
	if _, present := album.Extra["artist_name"]; present {
		t.Fatal("known columns must not land in Extra")
	}
}

func TestSpotifyEnrichmentApply(t *testing.T) {
	album := Album{ArtistID: 7, ArtistName: "Low", ReleaseGroupName: "HEY WHAT"}
	enrichment := SpotifyEnrichment{
		AlbumID:              "abc",
		URL:                  "https://open.spotify.com/album/abc",
		ImageURL:             "https://i.scdn.co/image/x",
		AlbumName:            "HEY WHAT",
		ReleaseDate:          "2021-09-10",
		ReleaseDatePrecision: "day",
	}
	enrichment.Apply(&album)

	if album.SpotifyAlbumID != "abc" || album.SpotifyReleaseDate != "2021-09-10" {
		t.Fatalf("enrichment not applied: %+v", album)
	}
	if album.ArtistName != "Low" {
		t.Fatal("core fields must survive enrichment")
	}
}
