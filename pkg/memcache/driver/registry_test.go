package driver

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

type stubDriver struct {
	servers []Server
	closed  bool
}

func (d *stubDriver) SetOptions(Options) error { return nil }
func (d *stubDriver) AddServers(s []Server) error {
	d.servers = append(d.servers, s...)
	return nil
}
func (d *stubDriver) ServerList() []Server { return d.servers }
func (d *stubDriver) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }
func (d *stubDriver) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (d *stubDriver) Delete(context.Context, string) error { return ErrNotFound }
func (d *stubDriver) Close() error { d.closed = true; return nil }

func TestRegistry_RegisterAndOpen(t *testing.T) {
	r := newRegistry()
	r.register("stub", OpenerFunc(func() (Driver, error) { return &stubDriver{}, nil }))

	d, err := r.open("stub", "")
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if d == nil {
		t.Fatal("open() returned nil driver")
	}

	if got := r.drivers(); !slices.Equal(got, []string{"stub"}) {
		t.Errorf("drivers() = %v, want [stub]", got)
	}
}

func TestRegistry_UnknownDriver(t *testing.T) {
	r := newRegistry()
	_, err := r.open("missing", "")
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("open() error = %v, want ErrUnknownDriver", err)
	}
}

func TestRegistry_OpenError(t *testing.T) {
	r := newRegistry()
	boom := errors.New("boom")
	r.register("broken", OpenerFunc(func() (Driver, error) { return nil, boom }))

	if _, err := r.open("broken", "pool"); !errors.Is(err, boom) {
		t.Errorf("open() error = %v, want %v", err, boom)
	}
	if len(r.shared) != 0 {
		t.Error("a failed open must not be cached as a shared handle")
	}
}

func TestRegistry_PersistentHandlesAreShared(t *testing.T) {
	r := newRegistry()
	opened := 0
	r.register("stub", OpenerFunc(func() (Driver, error) {
		opened++
		return &stubDriver{}, nil
	}))

	first, _ := r.open("stub", "pool")
	second, _ := r.open("stub", "pool")
	other, _ := r.open("stub", "other")
	fresh, _ := r.open("stub", "")

	if first != second {
		t.Error("handles with the same persistent id should be shared")
	}
	if first == other {
		t.Error("handles with different persistent ids should differ")
	}
	if first == fresh {
		t.Error("handles without a persistent id should never be shared")
	}
	if opened != 3 {
		t.Errorf("opener called %d times, want 3", opened)
	}

	r.release("stub", "pool")
	again, _ := r.open("stub", "pool")
	if again == first {
		t.Error("release should drop the shared handle")
	}
}

func TestRegistry_RegisterPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(r *registry)
	}{
		{
			name: "nil opener",
			fn:   func(r *registry) { r.register("nil", nil) },
		},
		{
			name: "duplicate",
			fn: func(r *registry) {
				op := OpenerFunc(func() (Driver, error) { return &stubDriver{}, nil })
				r.register("dup", op)
				r.register("dup", op)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("register should panic")
				}
			}()
			tt.fn(newRegistry())
		})
	}
}
