package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/musicatlas/api/internal/model"
)

// DefaultTTL bounds how long a user session survives without activity.
const DefaultTTL = 24 * time.Hour

// Store keeps per-user sessions in Redis as JSON blobs. Sessions carry the
// Spotify identity captured at login plus the last recommendation set.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

// Get loads a session. A missing session returns (nil, nil).
func (s *Store) Get(ctx context.Context, userID string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", userID, err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", userID, err)
	}
	return &session, nil
}

// Save stores a session wholesale and resets its TTL.
func (s *Store) Save(ctx context.Context, userID string, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", userID, err)
	}
	return nil
}

// SaveAlbumRecs replaces the cached recommendation rows on a session,
// creating the session if none exists yet.
func (s *Store) SaveAlbumRecs(ctx context.Context, userID string, rows []model.Album) error {
	session, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if session == nil {
		session = &model.Session{}
	}
	session.AlbumRecs = rows
	return s.Save(ctx, userID, session)
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	return nil
}
