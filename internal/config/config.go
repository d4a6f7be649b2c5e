package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	Spotify   SpotifyConfig
	RateLimit RateLimitConfig
	Recs      RecsConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig points at the MusicBrainz mirror that hosts the
// get_album_recs_v1 function and the cluster tables.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	Market       string
	SearchLimit  int
}

type RateLimitConfig struct {
	RecsPerHour  int
	TastePerMin  int
	AlbumsPerMin int
}

// RecsConfig carries the pipeline tunables that are deployment knobs rather
// than per-request parameters.
type RecsConfig struct {
	JobTTLMinutes       int
	EnrichMaxItems      int
	TasteEnrichMaxItems int
	DefaultRecs         int
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("MB_DATABASE_URL")
	readSecret("SPOTIFY_CLIENT_ID")
	readSecret("SPOTIFY_CLIENT_SECRET")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("database.url", "MB_DATABASE_URL")
	_ = viper.BindEnv("database.max_conns", "MB_DATABASE_MAX_CONNS")
	_ = viper.BindEnv("database.min_conns", "MB_DATABASE_MIN_CONNS")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("spotify.client_id", "SPOTIFY_CLIENT_ID")
	_ = viper.BindEnv("spotify.client_secret", "SPOTIFY_CLIENT_SECRET")
	_ = viper.BindEnv("spotify.market", "SPOTIFY_MARKET")
	_ = viper.BindEnv("spotify.search_limit", "SPOTIFY_SEARCH_LIMIT")
	_ = viper.BindEnv("ratelimit.recs_per_hour", "RATELIMIT_RECS_PER_HOUR")
	_ = viper.BindEnv("ratelimit.taste_per_min", "RATELIMIT_TASTE_PER_MIN")
	_ = viper.BindEnv("ratelimit.albums_per_min", "RATELIMIT_ALBUMS_PER_MIN")
	_ = viper.BindEnv("recs.job_ttl_minutes", "RECS_JOB_TTL_MINUTES")
	_ = viper.BindEnv("recs.enrich_max_items", "RECS_ENRICH_MAX_ITEMS")
	_ = viper.BindEnv("recs.taste_enrich_max_items", "RECS_TASTE_ENRICH_MAX_ITEMS")
	_ = viper.BindEnv("recs.default_recs", "RECS_DEFAULT_RECS")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.max_conns", 8)
	viper.SetDefault("database.min_conns", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("spotify.market", "DE")
	viper.SetDefault("spotify.search_limit", 10)
	viper.SetDefault("ratelimit.recs_per_hour", 30)
	viper.SetDefault("ratelimit.taste_per_min", 10)
	viper.SetDefault("ratelimit.albums_per_min", 30)
	viper.SetDefault("recs.job_ttl_minutes", 60)
	viper.SetDefault("recs.enrich_max_items", 50)
	viper.SetDefault("recs.taste_enrich_max_items", 25)
	viper.SetDefault("recs.default_recs", 50)
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("database.url"),
			MaxConns: viper.GetInt32("database.max_conns"),
			MinConns: viper.GetInt32("database.min_conns"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("oidc.issuer"),
			ClientID: viper.GetString("oidc.client_id"),
		},
		Spotify: SpotifyConfig{
			ClientID:     viper.GetString("spotify.client_id"),
			ClientSecret: viper.GetString("spotify.client_secret"),
			Market:       viper.GetString("spotify.market"),
			SearchLimit:  viper.GetInt("spotify.search_limit"),
		},
		RateLimit: RateLimitConfig{
			RecsPerHour:  viper.GetInt("ratelimit.recs_per_hour"),
			TastePerMin:  viper.GetInt("ratelimit.taste_per_min"),
			AlbumsPerMin: viper.GetInt("ratelimit.albums_per_min"),
		},
		Recs: RecsConfig{
			JobTTLMinutes:       viper.GetInt("recs.job_ttl_minutes"),
			EnrichMaxItems:      viper.GetInt("recs.enrich_max_items"),
			TasteEnrichMaxItems: viper.GetInt("recs.taste_enrich_max_items"),
			DefaultRecs:         viper.GetInt("recs.default_recs"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
