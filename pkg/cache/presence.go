// Package cache mirrors per-room presence into Redis so that sidecar services
// can observe who is editing a document without speaking the WebSocket
// protocol. The mirror is advisory: the in-memory room state stays
// authoritative, and entries expire on their own via the liveness TTL.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Member is one mirrored presence entry.
type Member struct {
	SessionID string
	Name      string
}

// PresenceMirror writes room membership to Redis with a liveness TTL per
// member.
type PresenceMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresenceMirror connects to Redis at addr and verifies the connection.
func NewPresenceMirror(addr string, ttl time.Duration) (*PresenceMirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &PresenceMirror{rdb: client, ttl: ttl}, nil
}

// NewPresenceMirrorWithClient wraps an existing client, used by tests.
func NewPresenceMirrorWithClient(client *redis.Client, ttl time.Duration) *PresenceMirror {
	return &PresenceMirror{rdb: client, ttl: ttl}
}

// AddMember upserts a session into a room's mirrored membership and refreshes
// its liveness key.
func (m *PresenceMirror) AddMember(ctx context.Context, docID, sessionID, name string) error {
	pipe := m.rdb.Pipeline()
	pipe.SAdd(ctx, roomKey(docID), sessionID)
	pipe.Set(ctx, memberKey(docID, sessionID), "1", m.ttl)
	pipe.HSet(ctx, namesKey(docID), sessionID, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror add member: %w", err)
	}
	return nil
}

// RemoveMember drops a session from a room's mirrored membership.
func (m *PresenceMirror) RemoveMember(ctx context.Context, docID, sessionID string) error {
	pipe := m.rdb.Pipeline()
	pipe.SRem(ctx, roomKey(docID), sessionID)
	pipe.Del(ctx, memberKey(docID, sessionID))
	pipe.HDel(ctx, namesKey(docID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror remove member: %w", err)
	}
	return nil
}

// AliveMembers returns the sessions whose liveness key has not expired.
// Sessions still in the set but past their TTL are treated as gone.
func (m *PresenceMirror) AliveMembers(ctx context.Context, docID string) ([]Member, error) {
	sessionIDs, err := m.rdb.SMembers(ctx, roomKey(docID)).Result()
	if err != nil {
		return nil, fmt.Errorf("mirror members: %w", err)
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	pipe := m.rdb.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(sessionIDs))
	for i, id := range sessionIDs {
		existsCmds[i] = pipe.Exists(ctx, memberKey(docID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mirror liveness check: %w", err)
	}

	alive := make([]string, 0, len(sessionIDs))
	for i, cmd := range existsCmds {
		if cmd.Val() == 1 {
			alive = append(alive, sessionIDs[i])
		}
	}
	if len(alive) == 0 {
		return nil, nil
	}

	names, err := m.rdb.HMGet(ctx, namesKey(docID), alive...).Result()
	if err != nil {
		return nil, fmt.Errorf("mirror names: %w", err)
	}

	members := make([]Member, 0, len(alive))
	for i, v := range names {
		name := ""
		if v != nil {
			name, _ = v.(string)
		}
		members = append(members, Member{SessionID: alive[i], Name: name})
	}
	return members, nil
}

// Ping checks if Redis is reachable.
func (m *PresenceMirror) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

// Close closes the underlying connection.
func (m *PresenceMirror) Close() error {
	return m.rdb.Close()
}
