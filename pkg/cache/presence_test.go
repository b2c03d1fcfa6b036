package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMirror(t *testing.T, ttl time.Duration) (*PresenceMirror, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewPresenceMirrorWithClient(client, ttl), s
}

func TestAddAndListMembers(t *testing.T) {
	mirror, s := setupMirror(t, time.Minute)
	defer mirror.Close()
	defer s.Close()

	ctx := context.Background()
	if err := mirror.AddMember(ctx, "doc1", "sess-a", "Alice"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := mirror.AddMember(ctx, "doc1", "sess-b", "Bob"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	members, err := mirror.AliveMembers(ctx, "doc1")
	if err != nil {
		t.Fatalf("AliveMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	names := map[string]string{}
	for _, m := range members {
		names[m.SessionID] = m.Name
	}
	if names["sess-a"] != "Alice" || names["sess-b"] != "Bob" {
		t.Fatalf("unexpected members: %v", names)
	}
}

func TestExpiredMembersAreNotAlive(t *testing.T) {
	mirror, s := setupMirror(t, 10*time.Second)
	defer mirror.Close()
	defer s.Close()

	ctx := context.Background()
	if err := mirror.AddMember(ctx, "doc1", "sess-a", "Alice"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	s.FastForward(11 * time.Second)

	members, err := mirror.AliveMembers(ctx, "doc1")
	if err != nil {
		t.Fatalf("AliveMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no alive members after TTL, got %v", members)
	}
}

func TestAddMemberRefreshesLiveness(t *testing.T) {
	mirror, s := setupMirror(t, 10*time.Second)
	defer mirror.Close()
	defer s.Close()

	ctx := context.Background()
	if err := mirror.AddMember(ctx, "doc1", "sess-a", "Alice"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	s.FastForward(6 * time.Second)
	// a presence mutation re-adds the member, pushing the TTL out
	if err := mirror.AddMember(ctx, "doc1", "sess-a", "Alice"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	s.FastForward(6 * time.Second)

	members, err := mirror.AliveMembers(ctx, "doc1")
	if err != nil {
		t.Fatalf("AliveMembers failed: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected refreshed member to stay alive, got %v", members)
	}
}

func TestRemoveMember(t *testing.T) {
	mirror, s := setupMirror(t, time.Minute)
	defer mirror.Close()
	defer s.Close()

	ctx := context.Background()
	if err := mirror.AddMember(ctx, "doc1", "sess-a", "Alice"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := mirror.RemoveMember(ctx, "doc1", "sess-a"); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	members, err := mirror.AliveMembers(ctx, "doc1")
	if err != nil {
		t.Fatalf("AliveMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no members after remove, got %v", members)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	mirror, s := setupMirror(t, time.Minute)
	defer mirror.Close()
	defer s.Close()

	ctx := context.Background()
	if err := mirror.AddMember(ctx, "doc1", "sess-a", "Alice"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := mirror.AddMember(ctx, "doc2", "sess-b", "Bob"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	members, err := mirror.AliveMembers(ctx, "doc1")
	if err != nil {
		t.Fatalf("AliveMembers failed: %v", err)
	}
	if len(members) != 1 || members[0].SessionID != "sess-a" {
		t.Fatalf("expected only sess-a in doc1, got %v", members)
	}
}
