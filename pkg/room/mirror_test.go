package room

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"doc-collab/pkg/cache"
)

// Mirror writes happen off the room goroutine, so these tests poll.
func waitForMembers(t *testing.T, mirror *cache.PresenceMirror, docID string, want int) []cache.Member {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		members, err := mirror.AliveMembers(context.Background(), docID)
		if err != nil {
			t.Fatalf("AliveMembers failed: %v", err)
		}
		if len(members) == want {
			return members
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d mirrored members, got %v", want, members)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPresenceIsMirrored(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	mirror := cache.NewPresenceMirrorWithClient(client, time.Minute)
	defer mirror.Close()

	m := NewManager(zap.NewNop(), mirror)
	a := newTestClient("a")
	r := m.Join(a, "doc1")

	userJoin(r, a, "user-a", "Alice")
	expectFrame(t, a, EventPresenceUpdate)

	members := waitForMembers(t, mirror, "doc1", 1)
	if members[0].SessionID != "a" || members[0].Name != "Alice" {
		t.Fatalf("unexpected mirrored member: %+v", members[0])
	}

	r.Detach(a, true)
	waitForMembers(t, mirror, "doc1", 0)
}
