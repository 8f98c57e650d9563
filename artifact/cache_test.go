package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/logger"
)

// fakeRemote is an in-memory RemoteStore with call counting and
// injectable failures.
type fakeRemote struct {
	data    map[string]string
	gets    int
	puts    int
	deletes int
	failPut bool
	failDel bool
	failGet bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string]string)}
}

func (f *fakeRemote) key(topic, variant string) string { return topic + "|" + variant }

func (f *fakeRemote) GetArtifact(ctx context.Context, topic, variant string) (string, bool, error) {
	f.gets++
	if f.failGet {
		return "", false, errors.New("remote down")
	}
	v, ok := f.data[f.key(topic, variant)]
	return v, ok, nil
}

func (f *fakeRemote) PutArtifact(ctx context.Context, topic, variant, artifact string) error {
	f.puts++
	if f.failPut {
		return errors.New("remote down")
	}
	f.data[f.key(topic, variant)] = artifact
	return nil
}

func (f *fakeRemote) DeleteArtifact(ctx context.Context, topic, variant string) error {
	f.deletes++
	if f.failDel {
		return errors.New("remote down")
	}
	delete(f.data, f.key(topic, variant))
	return nil
}

func newTestCache(t *testing.T, remote RemoteStore) (*Cache, *kvstore.Memory) {
	t.Helper()
	mem := kvstore.NewMemory(logger.Nop())
	if err := mem.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { mem.Disconnect(context.Background()) })
	return NewCache(mem, remote, Config{}, logger.Nop()), mem
}

func TestPutAndGetCached(t *testing.T) {
	remote := newFakeRemote()
	cache, _ := newTestCache(t, remote)
	ctx := context.Background()

	if ok := cache.PutCached(ctx, "quantum physics", "simple", `{"nodes":[]}`); !ok {
		t.Fatal("PutCached should report remote success")
	}

	value, ok, err := cache.GetCached(ctx, "quantum physics", "simple")
	if err != nil || !ok || value != `{"nodes":[]}` {
		t.Fatalf("GetCached: %q ok=%v err=%v", value, ok, err)
	}
	if remote.gets != 0 {
		t.Errorf("local hit must not consult remote, got %d remote gets", remote.gets)
	}
}

func TestKeyNormalization(t *testing.T) {
	remote := newFakeRemote()
	cache, _ := newTestCache(t, remote)
	ctx := context.Background()

	cache.PutCached(ctx, "Quantum Physics", "simple", "artifact-1")

	value, ok, _ := cache.GetCached(ctx, "  quantum physics  ", "simple")
	if !ok || value != "artifact-1" {
		t.Errorf("normalized lookup should hit: %q ok=%v", value, ok)
	}
	if remote.gets != 0 {
		t.Error("normalized lookup should hit the local entry")
	}
}

func TestVariantsAreDistinct(t *testing.T) {
	remote := newFakeRemote()
	cache, _ := newTestCache(t, remote)
	ctx := context.Background()

	cache.PutCached(ctx, "topic", "simple", "a1")
	cache.PutCached(ctx, "topic", "analogy", "a2")

	v1, _, _ := cache.GetCached(ctx, "topic", "simple")
	v2, _, _ := cache.GetCached(ctx, "topic", "analogy")
	if v1 != "a1" || v2 != "a2" {
		t.Errorf("variants collided: %q %q", v1, v2)
	}
}

func TestGetCachedMissFallsThroughAndWarms(t *testing.T) {
	remote := newFakeRemote()
	remote.data["physics|simple"] = "from-remote"
	cache, _ := newTestCache(t, remote)
	ctx := context.Background()

	value, ok, err := cache.GetCached(ctx, "physics", "simple")
	if err != nil || !ok || value != "from-remote" {
		t.Fatalf("expected remote fallthrough: %q ok=%v err=%v", value, ok, err)
	}
	if remote.gets != 1 {
		t.Errorf("expected one remote get, got %d", remote.gets)
	}

	// Second read is served locally (cache warmed).
	value, ok, _ = cache.GetCached(ctx, "physics", "simple")
	if !ok || value != "from-remote" {
		t.Fatalf("warmed read failed: %q ok=%v", value, ok)
	}
	if remote.gets != 1 {
		t.Errorf("warmed read must not consult remote again, got %d gets", remote.gets)
	}
}

func TestGetCachedMissEverywhere(t *testing.T) {
	remote := newFakeRemote()
	cache, _ := newTestCache(t, remote)

	_, ok, err := cache.GetCached(context.Background(), "nothing", "simple")
	if err != nil || ok {
		t.Errorf("expected clean miss: ok=%v err=%v", ok, err)
	}
}

func TestGetCachedWithoutLocalStore(t *testing.T) {
	remote := newFakeRemote()
	remote.data["physics|text"] = "remote-only"
	cache := NewCache(nil, remote, Config{}, logger.Nop())

	value, ok, err := cache.GetCached(context.Background(), "physics", "text")
	if err != nil || !ok || value != "remote-only" {
		t.Fatalf("nil local store must go remote: %q ok=%v err=%v", value, ok, err)
	}
}

func TestGetCachedLocalFailureFallsThrough(t *testing.T) {
	remote := newFakeRemote()
	remote.data["physics|simple"] = "from-remote"

	mem := kvstore.NewMemory(logger.Nop())
	// Never connected: every local operation fails.
	cache := NewCache(mem, remote, Config{}, logger.Nop())

	value, ok, err := cache.GetCached(context.Background(), "physics", "simple")
	if err != nil || !ok || value != "from-remote" {
		t.Fatalf("local failure must fall through: %q ok=%v err=%v", value, ok, err)
	}
}

func TestPutCachedReflectsRemoteOutcome(t *testing.T) {
	remote := newFakeRemote()
	remote.failPut = true
	cache, mem := newTestCache(t, remote)
	ctx := context.Background()

	if ok := cache.PutCached(ctx, "topic", "simple", "a"); ok {
		t.Error("remote failure must fail the put")
	}

	// Local write is best effort and still happened.
	if _, ok, _ := mem.Get(ctx, "artifact:topic:simple"); !ok {
		t.Error("best-effort local write missing")
	}
}

func TestPutCachedLocalFailureStillSucceeds(t *testing.T) {
	remote := newFakeRemote()
	mem := kvstore.NewMemory(logger.Nop()) // never connected
	cache := NewCache(mem, remote, Config{}, logger.Nop())

	if ok := cache.PutCached(context.Background(), "topic", "simple", "a"); !ok {
		t.Error("local failure must not fail the put")
	}
	if remote.puts != 1 {
		t.Errorf("expected remote write, got %d", remote.puts)
	}
}

func TestEvict(t *testing.T) {
	remote := newFakeRemote()
	cache, mem := newTestCache(t, remote)
	ctx := context.Background()

	cache.PutCached(ctx, "topic", "simple", "a")
	if ok := cache.Evict(ctx, "topic", "simple"); !ok {
		t.Fatal("Evict should report remote success")
	}

	if _, ok, _ := mem.Get(ctx, "artifact:topic:simple"); ok {
		t.Error("local entry survived evict")
	}
	if _, ok, _ := cache.GetCached(ctx, "topic", "simple"); ok {
		t.Error("artifact still resolvable after evict")
	}
}

func TestEvictReflectsRemoteOutcome(t *testing.T) {
	remote := newFakeRemote()
	remote.failDel = true
	cache, _ := newTestCache(t, remote)

	if ok := cache.Evict(context.Background(), "topic", "simple"); ok {
		t.Error("remote delete failure must fail the evict")
	}
}

func TestLocalTTL(t *testing.T) {
	remote := newFakeRemote()
	mem := kvstore.NewMemory(logger.Nop())
	ctx := context.Background()
	mem.Connect(ctx)
	t.Cleanup(func() { mem.Disconnect(ctx) })

	cache := NewCache(mem, remote, Config{TTL: 40 * time.Millisecond}, logger.Nop())
	cache.PutCached(ctx, "topic", "simple", "a")

	time.Sleep(80 * time.Millisecond)

	// Local entry expired; the remote copy still serves.
	value, ok, err := cache.GetCached(ctx, "topic", "simple")
	if err != nil || !ok || value != "a" {
		t.Fatalf("expected remote to serve after local expiry: %q ok=%v err=%v", value, ok, err)
	}
	if remote.gets != 1 {
		t.Errorf("expected remote consulted once, got %d", remote.gets)
	}
}
