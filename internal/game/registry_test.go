package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_Create(t *testing.T) {
	sub := &mockSubscriber{}
	r := NewRegistry(sub, nil)

	s, err := r.Create("dev1", "Desk", 5)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.DeviceID() != "dev1" {
		t.Errorf("DeviceID() = %q", s.DeviceID())
	}
	if len(sub.subscribed) != 1 {
		t.Errorf("subscribed = %v", sub.subscribed)
	}

	if _, err := r.Create("dev1", "Desk", 5); !errors.Is(err, ErrDuplicateDevice) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateDevice", err)
	}
}

func TestRegistry_CreateReplacesTerminated(t *testing.T) {
	r := NewRegistry(nil, nil)

	old, _ := r.Create("dev1", "Desk", 5)
	if _, err := r.Remove("dev1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	fresh, err := r.Create("dev1", "Desk", 5)
	if err != nil {
		t.Fatalf("Create() after Remove error = %v", err)
	}
	if fresh == old {
		t.Error("terminated session was reused")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_SubscribeFailureStillCreates(t *testing.T) {
	r := NewRegistry(&mockSubscriber{err: errors.New("broker down")}, nil)

	if _, err := r.Create("dev1", "Desk", 5); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, ok := r.Lookup("dev1"); !ok {
		t.Error("session missing after subscribe failure")
	}
}

func TestRegistry_Remove(t *testing.T) {
	sub := &mockSubscriber{}
	r := NewRegistry(sub, nil)

	if _, err := r.Remove("missing"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Remove(missing) error = %v, want ErrUnknownDevice", err)
	}

	_, _ = r.Create("dev1", "Desk", 5)
	s, err := r.Remove("dev1")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Snapshot().State != StateTerminated {
		t.Errorf("State = %v, want terminated", s.Snapshot().State)
	}
	if _, ok := r.Lookup("dev1"); !ok {
		t.Error("terminated session should stay registered")
	}
	if len(sub.unsubscribed) != 1 {
		t.Errorf("unsubscribed = %v", sub.unsubscribed)
	}

	if _, err := r.Remove("dev1"); !errors.Is(err, ErrSessionTerminated) {
		t.Errorf("second Remove() error = %v, want ErrSessionTerminated", err)
	}
}

func TestRegistry_SessionsSorted(t *testing.T) {
	r := NewRegistry(nil, nil)
	for _, id := range []string{"c", "a", "b"} {
		_, _ = r.Create(id, id, 5)
	}

	var got []string
	for _, snap := range r.Snapshots() {
		got = append(got, snap.DeviceID)
	}
	if fmt.Sprint(got) != "[a b c]" {
		t.Errorf("Snapshots() order = %v", got)
	}
}

func TestRegistry_ConcurrentCreateRemove(t *testing.T) {
	r := NewRegistry(&mockSubscriber{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("dev-%d", i%10)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Create(id, id, 5)
			_, _ = r.Remove(id)
			r.Lookup(id)
			r.Sessions()
		}()
	}
	wg.Wait()

	if r.Len() != 10 {
		t.Errorf("Len() = %d, want 10", r.Len())
	}
}
