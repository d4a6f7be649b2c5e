package model

// ClusterWeight is one row of a user's listening-cluster profile.
type ClusterWeight struct {
	ClusterID   int     `json:"cluster_id"`
	Weight      float64 `json:"weight"`
	WeightShare float64 `json:"weight_share,omitempty"`
}

// ClusterLabel is the human-readable metadata for a cluster.
type ClusterLabel struct {
	ClusterID        int      `json:"cluster_id"`
	LabelPrimary     string   `json:"label_primary"`
	LabelSecondary   string   `json:"label_secondary,omitempty"`
	TopSpotifyGenres []string `json:"top_spotify_genres"`
}

// Bucket strength labels.
const (
	StrengthStrong   = "Strong"
	StrengthModerate = "Moderate"
	StrengthWeak     = "Weak"
)

// TasteBucket groups recommended albums under one dominant cluster.
// ClusterID is nil for the catch-all "Other" bucket, which also carries no
// weight or strength.
type TasteBucket struct {
	ClusterID        *int     `json:"cluster_id"`
	LabelPrimary     string   `json:"label_primary"`
	LabelSecondary   string   `json:"label_secondary,omitempty"`
	TopSpotifyGenres []string `json:"top_spotify_genres"`
	Weight           float64  `json:"weight,omitempty"`
	WeightShare      float64  `json:"weight_share,omitempty"`
	Albums           []Album  `json:"albums"`
	AlbumCount       int      `json:"album_count"`
	Strength         string   `json:"strength,omitempty"`
}

// TasteValidation is the optional self-check report for a profile build.
type TasteValidation struct {
	BucketCount                int      `json:"bucket_count"`
	AlbumTotal                 int      `json:"album_total"`
	HasOther                   bool     `json:"has_other"`
	OK                         bool     `json:"ok"`
	IncludedClusterCount       int      `json:"included_cluster_count"`
	DisplayedBucketCount       int      `json:"displayed_bucket_count"`
	HiddenZeroAlbumBucketCount int      `json:"hidden_zero_album_bucket_count"`
	CumShareFinal              float64  `json:"cum_share_final"`
	MinWeightShareIncluded     *float64 `json:"min_weight_share_included"`
	TotalWeight                float64  `json:"total_weight"`
}

// TasteProfile is the bucketed view of a user's recommendations.
type TasteProfile struct {
	UserID      string           `json:"user_id"`
	Buckets     []TasteBucket    `json:"buckets"`
	TopClusters []ClusterWeight  `json:"top_clusters"`
	TotalAlbums int              `json:"total_albums"`
	Validation  *TasteValidation `json:"validation,omitempty"`
}

// Session is the per-user state the service keeps between requests: the
// Spotify identity/credential captured at login and the last enriched
// recommendation set.
type Session struct {
	SpotifyUserID      string  `json:"spotifyUserId,omitempty"`
	SpotifyAccessToken string  `json:"spotifyAccessToken,omitempty"`
	AlbumRecs          []Album `json:"albumRecs,omitempty"`
}
