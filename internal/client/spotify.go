package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/musicatlas/api/internal/config"
	"github.com/musicatlas/api/internal/model"
)

const (
	spotifyAccountsURL = "https://accounts.spotify.com/api/token"
	spotifyAPIBaseURL  = "https://api.spotify.com/v1"

	// Minimum spacing between catalog searches, to stay under the
	// client-credentials rate limit.
	searchMinInterval = 250 * time.Millisecond

	// App tokens are refreshed this long before Spotify's stated expiry.
	tokenExpiryBuffer = 60 * time.Second
)

// SpotifyClient talks to the Spotify Web API. Catalog searches use a cached
// client-credentials app token; top-artist reads use the caller's own bearer
// token.
type SpotifyClient struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	market       string
	searchLimit  int

	mu          sync.Mutex
	appToken    string
	tokenExpiry time.Time
	lastSearch  time.Time
}

func NewSpotifyClient(cfg *config.SpotifyConfig) *SpotifyClient {
	return &SpotifyClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		market:       cfg.Market,
		searchLimit:  cfg.SearchLimit,
	}
}

// IsConfigured returns true if the client has API credentials.
func (c *SpotifyClient) IsConfigured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// getAppToken returns a cached client-credentials token, fetching a new one
// when the cache is empty or about to expire.
func (c *SpotifyClient) getAppToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.appToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.appToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyAccountsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch app token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify token error (status %d): %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("spotify token response missing access_token")
	}

	c.mu.Lock()
	c.appToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryBuffer)
	c.mu.Unlock()

	return tr.AccessToken, nil
}

// invalidateAppToken drops the cached token after a 401.
func (c *SpotifyClient) invalidateAppToken() {
	c.mu.Lock()
	c.appToken = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// throttleSearch enforces the minimum spacing between catalog searches.
func (c *SpotifyClient) throttleSearch() {
	c.mu.Lock()
	wait := searchMinInterval - time.Since(c.lastSearch)
	c.lastSearch = time.Now().Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
}

type searchResponse struct {
	Albums struct {
		Items []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
			ReleaseDate          string `json:"release_date"`
			ReleaseDatePrecision string `json:"release_date_precision"`
		} `json:"items"`
	} `json:"albums"`
}

// SearchAlbums looks an album up in the Spotify catalog. The search is
// best-effort: every failure path logs and returns an empty slice so callers
// never branch on enrichment errors.
func (c *SpotifyClient) SearchAlbums(ctx context.Context, albumName, artistName string) []model.SpotifyAlbumCandidate {
	if !c.IsConfigured() {
		return nil
	}

	c.throttleSearch()

	candidates, retryable, err := c.searchAlbumsOnce(ctx, albumName, artistName)
	if err != nil && retryable {
		candidates, _, err = c.searchAlbumsOnce(ctx, albumName, artistName)
	}
	if err != nil {
		log.Printf("[spotify] album search failed for %q / %q: %v", artistName, albumName, err)
		return nil
	}
	return candidates
}

// searchAlbumsOnce performs a single search request. A 401 invalidates the
// token cache and a 429 honors Retry-After; both report retryable so the
// caller can try once more.
func (c *SpotifyClient) searchAlbumsOnce(ctx context.Context, albumName, artistName string) ([]model.SpotifyAlbumCandidate, bool, error) {
	token, err := c.getAppToken(ctx)
	if err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf("album:%s artist:%s", albumName, artistName)
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "album")
	params.Set("limit", strconv.Itoa(c.searchLimit))
	if c.market != "" {
		params.Set("market", c.market)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyAPIBaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to send search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read search response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		c.invalidateAppToken()
		return nil, true, fmt.Errorf("spotify search unauthorized")
	case http.StatusTooManyRequests:
		waitFor(ctx, retryAfter(resp))
		return nil, true, fmt.Errorf("spotify search rate limited")
	default:
		return nil, false, fmt.Errorf("spotify search error (status %d): %s", resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal search response: %w", err)
	}

	candidates := make([]model.SpotifyAlbumCandidate, 0, len(sr.Albums.Items))
	for _, item := range sr.Albums.Items {
		candidate := model.SpotifyAlbumCandidate{
			ID:                   item.ID,
			Name:                 item.Name,
			URL:                  item.ExternalURLs.Spotify,
			ReleaseDate:          item.ReleaseDate,
			ReleaseDatePrecision: item.ReleaseDatePrecision,
		}
		if len(item.Images) > 0 {
			candidate.ImageURL = item.Images[0].URL
		}
		candidates = append(candidates, candidate)
	}
	return candidates, false, nil
}

type topArtistsResponse struct {
	Items []struct {
		Name       string   `json:"name"`
		Popularity int      `json:"popularity"`
		Genres     []string `json:"genres"`
	} `json:"items"`
}

// TopArtists fetches the caller's top artists using their own bearer token.
func (c *SpotifyClient) TopArtists(ctx context.Context, accessToken string, limit int) ([]model.SimpleArtist, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("missing Spotify access token")
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("time_range", "medium_term")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyAPIBaseURL+"/me/top/artists?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create top artists request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top artists: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read top artists response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify top artists error (status %d): %s", resp.StatusCode, string(body))
	}

	var tr topArtistsResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal top artists response: %w", err)
	}

	artists := make([]model.SimpleArtist, 0, len(tr.Items))
	for _, item := range tr.Items {
		popularity := item.Popularity
		artists = append(artists, model.SimpleArtist{
			Name:       item.Name,
			Popularity: &popularity,
			Genres:     item.Genres,
		})
	}
	return artists, nil
}

// retryAfter parses the Retry-After header, defaulting to one second.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

func waitFor(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
