//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/memcache-storage/internal/testutil"
	"github.com/Sternrassler/memcache-storage/pkg/memcache"
	_ "github.com/Sternrassler/memcache-storage/pkg/memcache/driver/memcached"
	_ "github.com/Sternrassler/memcache-storage/pkg/memcache/driver/redisring"
	"github.com/Sternrassler/memcache-storage/pkg/settings"
)

const numKeys = 60

func keys(s *memcache.Storage) []string {
	out := make([]string, numKeys)
	for i := range out {
		out[i] = s.Key("item", fmt.Sprint(i))
	}
	return out
}

// TestCluster_Failover kills one of two memcached nodes and checks that the
// storage keeps serving from the survivor once the dead node is ejected.
func TestCluster_Failover(t *testing.T) {
	addrA, _ := testutil.StartMemcachedNode(t)
	addrB, killB := testutil.StartMemcachedNode(t)

	store := memcache.New(&settings.Memcache{
		KeyPrefix: "failover",
		Servers:   map[string]any{addrA: 1, addrB: 1},
	}, zerolog.Nop())
	defer store.Close()

	if !store.IsConnected() {
		t.Fatal("storage should be connected")
	}

	ctx := context.Background()
	for _, key := range keys(store) {
		if !store.Set(ctx, key, []byte(key), 0) {
			t.Fatalf("Set(%q) = false", key)
		}
	}

	killB()

	// Keys owned by the dead node miss; each miss counts a failure until
	// the node is ejected.
	survivors := 0
	for _, key := range keys(store) {
		if v, ok := store.Get(ctx, key); ok && string(v) == key {
			survivors++
		}
	}
	if survivors == 0 || survivors == numKeys {
		t.Fatalf("%d of %d keys survived, want keys on both nodes", survivors, numKeys)
	}

	// Keys held by the surviving node must still be there: ejection only
	// remaps the dead node's keys.
	again := 0
	for _, key := range keys(store) {
		if _, ok := store.Get(ctx, key); ok {
			again++
		}
	}
	if again < survivors {
		t.Errorf("after ejection %d keys hit, want at least %d", again, survivors)
	}

	for _, key := range keys(store) {
		if !store.Set(ctx, key, []byte(key), 0) {
			t.Errorf("Set(%q) after ejection = false", key)
		}
	}
	for _, key := range keys(store) {
		if v, ok := store.Get(ctx, key); !ok || string(v) != key {
			t.Errorf("Get(%q) after ejection = (%q, %v)", key, v, ok)
		}
	}

	if !store.IsConnected() {
		t.Error("node failures must not disconnect the storage")
	}
}

// TestStorage_Drivers runs the same storage round trip over each driver.
func TestStorage_Drivers(t *testing.T) {
	tests := []struct {
		driver string
		start  func(*testing.T) string
	}{
		{"memcached", testutil.StartMemcached},
		{"redis", testutil.StartRedis},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			addr := tt.start(t)
			store := memcache.New(&settings.Memcache{
				Driver:    tt.driver,
				KeyPrefix: "it",
				Servers:   map[string]any{addr: 1},
			}, zerolog.Nop())
			defer store.Close()

			if !store.IsConnected() {
				t.Fatal("storage should be connected")
			}

			ctx := context.Background()
			key := store.Key("page", "/node/1")

			if _, ok := store.Get(ctx, key); ok {
				t.Error("Get() before Set should miss")
			}
			if !store.Set(ctx, key, []byte{}, 0) {
				t.Fatal("Set() of empty value = false")
			}
			if v, ok := store.Get(ctx, key); !ok || len(v) != 0 {
				t.Errorf("Get() of empty value = (%q, %v), want hit", v, ok)
			}
			if !store.Delete(ctx, key) {
				t.Error("Delete() = false")
			}
			if store.Delete(ctx, key) {
				t.Error("second Delete() = true")
			}

			type page struct{ Body string }
			if !memcache.SetJSON(ctx, store, key, page{Body: "hi"}, 0) {
				t.Fatal("SetJSON() = false")
			}
			var got page
			if !memcache.GetJSON(ctx, store, key, &got) || got.Body != "hi" {
				t.Errorf("GetJSON() = %+v", got)
			}
		})
	}
}

// TestStorage_PersistentHandle checks that two storages sharing a
// persistent id see each other's writes over one registered server list.
func TestStorage_PersistentHandle(t *testing.T) {
	addr := testutil.StartMemcached(t)
	cfg := &settings.Memcache{
		PersistentID: "integration",
		Servers:      map[string]any{addr: 1},
	}

	first := memcache.New(cfg, zerolog.Nop())
	second := memcache.New(cfg, zerolog.Nop())
	defer first.Close()
	defer second.Close()

	ctx := context.Background()
	if !first.Set(ctx, "shared", []byte("v"), 0) {
		t.Fatal("Set() = false")
	}
	if v, ok := second.Get(ctx, "shared"); !ok || string(v) != "v" {
		t.Errorf("second.Get() = (%q, %v)", v, ok)
	}
}
