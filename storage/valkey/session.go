package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/strataplan/sessionguard/storage"
)

// SaveSession implements storage.SessionStore.
func (s *Store) SaveSession(ctx context.Context, rec *storage.SessionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("session record with ID is required")
	}

	key := s.sessionKey(rec.ID)

	// Reject duplicate IDs up front
	exists, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists > 0 {
		return storage.ErrSessionExists
	}

	data, err := json.Marshal(sessionToJSON(rec))
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	ttl := s.sessionTTL(rec)
	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	ownerKey := s.ownerKey(rec.OwnerID)
	if err := s.client.Do(ctx,
		s.client.B().Sadd().Key(ownerKey).Member(rec.ID).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to index session by owner: %w", err)
	}

	// Keep the owner index alive at least as long as its newest session
	if err := s.client.Do(ctx,
		s.client.B().Expire().Key(ownerKey).Seconds(int64(ttl.Seconds())).Build(),
	).Error(); err != nil {
		s.logger.Warn("Failed to set TTL on owner index", "error", err)
	}

	s.logger.Debug("Session saved", "session_id", rec.ID)
	return nil
}

// GetSession implements storage.SessionStore.
func (s *Store) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.sessionKey(id)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var j sessionJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}

	return sessionFromJSON(j), nil
}

// ListSessions implements storage.SessionStore. Results are ordered by
// most recent activity first. Session IDs whose keys have lapsed via TTL
// are lazily removed from the owner index.
func (s *Store) ListSessions(ctx context.Context, ownerID string, activeOnly bool) ([]*storage.SessionRecord, error) {
	ids, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.ownerKey(ownerID)).Build()).AsStrSlice()
	if err != nil {
		if isNilError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list owner sessions: %w", err)
	}

	var result []*storage.SessionRecord
	var lapsed []string
	for _, id := range ids {
		rec, err := s.GetSession(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotFound) {
				lapsed = append(lapsed, id)
				continue
			}
			return nil, err
		}
		if activeOnly && !rec.IsActive {
			continue
		}
		result = append(result, rec)
	}

	if len(lapsed) > 0 {
		if err := s.client.Do(ctx, s.client.B().Srem().Key(s.ownerKey(ownerID)).Member(lapsed...).Build()).Error(); err != nil {
			s.logger.Warn("Failed to prune lapsed session IDs from owner index", "error", err)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})

	return result, nil
}

// MutateSession implements storage.SessionStore. Deactivation is
// terminal and LastActivityAt is clamped to ExpiresAt, matching the
// in-memory store's rules.
func (s *Store) MutateSession(ctx context.Context, id string, patch storage.SessionPatch) error {
	rec, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}

	if patch.IsActive != nil {
		if *patch.IsActive && !rec.IsActive {
			return fmt.Errorf("session %s is terminated and cannot be reactivated", id)
		}
		rec.IsActive = *patch.IsActive
	}
	if patch.LastActivityAt != nil {
		at := *patch.LastActivityAt
		if at.After(rec.ExpiresAt) {
			at = rec.ExpiresAt
		}
		rec.LastActivityAt = at
	}

	data, err := json.Marshal(sessionToJSON(rec))
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	cmd := s.client.B().Set().Key(s.sessionKey(id)).Value(string(data)).Ex(s.sessionTTL(rec)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// DeactivateExpired implements storage.SessionStore. Scans all session
// keys in batches, so cost grows with the total session count; the
// caller runs this on a slow periodic cadence.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	pattern := s.prefix + "session:*"
	count := 0

	var cursor uint64
	for {
		entry, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanBatchSize).Build(),
		).AsScanEntry()
		if err != nil {
			return count, fmt.Errorf("failed to scan sessions: %w", err)
		}

		for _, key := range entry.Elements {
			data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
			if err != nil {
				if isNilError(err) {
					continue // lapsed between scan and get
				}
				return count, fmt.Errorf("failed to read session during cleanup: %w", err)
			}

			var j sessionJSON
			if err := json.Unmarshal([]byte(data), &j); err != nil {
				s.logger.Warn("Skipping malformed session record during cleanup", "key", key)
				continue
			}

			if !j.IsActive || !time.UnixMilli(j.ExpiresAt).Before(now) {
				continue
			}

			j.IsActive = false
			updated, err := json.Marshal(j)
			if err != nil {
				return count, fmt.Errorf("failed to serialize session during cleanup: %w", err)
			}

			rec := sessionFromJSON(j)
			cmd := s.client.B().Set().Key(key).Value(string(updated)).Ex(s.sessionTTL(rec)).Build()
			if err := s.client.Do(ctx, cmd).Error(); err != nil {
				return count, fmt.Errorf("failed to deactivate session: %w", err)
			}
			count++
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	if count > 0 {
		s.logger.Debug("Deactivated expired sessions", "count", count)
	}

	return count, nil
}
