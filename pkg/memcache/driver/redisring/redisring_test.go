package redisring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
)

func TestRegistered(t *testing.T) {
	if !driver.Available(Name) {
		t.Fatalf("driver %q should be registered on import", Name)
	}
}

func TestDriver_NoServers(t *testing.T) {
	d := New()
	ctx := context.Background()

	if err := d.AddServers(nil); !errors.Is(err, driver.ErrNoServers) {
		t.Errorf("AddServers(nil) error = %v, want ErrNoServers", err)
	}
	if _, err := d.Get(ctx, "k"); !errors.Is(err, driver.ErrNoServers) {
		t.Errorf("Get() error = %v, want ErrNoServers", err)
	}
	if err := d.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, driver.ErrNoServers) {
		t.Errorf("Set() error = %v, want ErrNoServers", err)
	}
	if err := d.Delete(ctx, "k"); !errors.Is(err, driver.ErrNoServers) {
		t.Errorf("Delete() error = %v, want ErrNoServers", err)
	}
}

func TestDriver_ServerListAndClose(t *testing.T) {
	d := New()
	opts := driver.DefaultOptions()
	opts.ConnectTimeout = 50 * time.Millisecond
	if err := d.SetOptions(opts); err != nil {
		t.Fatalf("SetOptions() error = %v", err)
	}

	a := driver.Server{Host: "127.0.0.1", Port: 6379}
	b := driver.Server{Host: "127.0.0.1", Port: 6380}
	if err := d.AddServers([]driver.Server{a}); err != nil {
		t.Fatalf("AddServers() error = %v", err)
	}
	if err := d.AddServers([]driver.Server{a, b}); err != nil {
		t.Fatalf("AddServers() error = %v", err)
	}

	got := d.ServerList()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("ServerList() = %v, want [%v %v]", got, a, b)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(d.ServerList()) != 0 {
		t.Error("ServerList() should be empty after Close")
	}
}

func TestDriver_RingOptions(t *testing.T) {
	d := New()
	opts := driver.DefaultOptions()
	opts.Distribution = driver.DistributionModula
	d.SetOptions(opts)

	ro := d.ringOptions(map[string]string{"a:1": "a:1"})
	if ro.DialTimeout != opts.ConnectTimeout {
		t.Errorf("DialTimeout = %v, want %v", ro.DialTimeout, opts.ConnectTimeout)
	}
	if ro.NewConsistentHash == nil {
		t.Error("modula distribution should install a custom hash")
	}

	d.SetOptions(driver.DefaultOptions())
	if d.ringOptions(nil).NewConsistentHash != nil {
		t.Error("consistent distribution should keep the go-redis default hash")
	}
}

func TestModulaHash(t *testing.T) {
	empty := newModulaHash(nil)
	if got := empty.Get("k"); got != "" {
		t.Errorf("Get() on empty hash = %q, want empty", got)
	}

	h := newModulaHash([]string{"c", "a", "b"})
	seen := make(map[string]bool)
	for i := 0; i < 300; i++ {
		key := fmt.Sprintf("key-%d", i)
		shard := h.Get(key)
		if shard != h.Get(key) {
			t.Fatalf("Get(%q) is not deterministic", key)
		}
		seen[shard] = true
	}
	if len(seen) != 3 {
		t.Errorf("keys landed on %d shards, want 3", len(seen))
	}
}
