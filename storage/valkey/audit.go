package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/strataplan/sessionguard/security"
)

// AppendEvent implements storage.AuditStore. Each event is pushed onto a
// per-owner list and a global list; both are trimmed to the configured
// bound so the audit log cannot grow without limit.
func (s *Store) AppendEvent(ctx context.Context, event *security.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}

	data, err := json.Marshal(eventToJSON(event))
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	owners := []string{globalEventsOwner}
	if event.OwnerID != "" {
		owners = append(owners, event.OwnerID)
	}

	for _, owner := range owners {
		key := s.eventsKey(owner)
		if err := s.client.Do(ctx,
			s.client.B().Lpush().Key(key).Element(string(data)).Build(),
		).Error(); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		if err := s.client.Do(ctx,
			s.client.B().Ltrim().Key(key).Start(0).Stop(int64(s.maxEventsPerOwner-1)).Build(),
		).Error(); err != nil {
			s.logger.Warn("Failed to trim event list", "error", err)
		}
	}

	return nil
}

// ListEvents implements storage.AuditStore. Events come back newest
// first; an empty ownerID reads the global list.
func (s *Store) ListEvents(ctx context.Context, ownerID string, limit int) ([]*security.Event, error) {
	owner := ownerID
	if owner == "" {
		owner = globalEventsOwner
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	items, err := s.client.Do(ctx,
		s.client.B().Lrange().Key(s.eventsKey(owner)).Start(0).Stop(stop).Build(),
	).AsStrSlice()
	if err != nil {
		if isNilError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*security.Event, 0, len(items))
	for _, item := range items {
		var j eventJSON
		if err := json.Unmarshal([]byte(item), &j); err != nil {
			s.logger.Warn("Skipping malformed event record", "error", err)
			continue
		}
		events = append(events, eventFromJSON(j))
	}

	return events, nil
}
