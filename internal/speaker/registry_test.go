package speaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestSpeaker(id, addr string) *Speaker {
	return &Speaker{
		ID:      id,
		Name:    "Speaker " + id,
		Address: addr,
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.11")); !errors.Is(err, ErrSpeakerExists) {
		t.Errorf("duplicate Register() error = %v, want ErrSpeakerExists", err)
	}

	if err := r.Register(newTestSpeaker("", "192.168.1.12")); !errors.Is(err, ErrInvalidSpeaker) {
		t.Errorf("empty id Register() error = %v, want ErrInvalidSpeaker", err)
	}

	if err := r.Register(newTestSpeaker("spk-b", "")); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("empty address Register() error = %v, want ErrInvalidAddress", err)
	}

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	sp, err := r.LookupByID("spk-a")
	if err != nil {
		t.Fatalf("LookupByID() error = %v", err)
	}
	if sp.Address != "192.168.1.10" {
		t.Errorf("LookupByID() address = %s, want 192.168.1.10", sp.Address)
	}

	sp, err = r.LookupByAddress("192.168.1.10")
	if err != nil {
		t.Fatalf("LookupByAddress() error = %v", err)
	}
	if sp.ID != "spk-a" {
		t.Errorf("LookupByAddress() id = %s, want spk-a", sp.ID)
	}

	if _, err := r.LookupByID("missing"); !errors.Is(err, ErrSpeakerNotFound) {
		t.Errorf("LookupByID(missing) error = %v, want ErrSpeakerNotFound", err)
	}
	if _, err := r.LookupByAddress("10.0.0.1"); !errors.Is(err, ErrSpeakerNotFound) {
		t.Errorf("LookupByAddress(unknown) error = %v, want ErrSpeakerNotFound", err)
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	r.UpdateSnapshot("spk-a", StatusSnapshot{
		PlayState:  PlayStatePlaying,
		Volume:     0.5,
		ObservedAt: time.Now(),
	})

	sp, _ := r.LookupByID("spk-a")
	sp.Name = "mutated"
	sp.LastSnapshot.Volume = 0.99

	again, _ := r.LookupByID("spk-a")
	if again.Name == "mutated" {
		t.Error("mutating a returned speaker leaked into the registry")
	}
	if again.LastSnapshot.Volume != 0.5 {
		t.Errorf("snapshot volume = %v, want 0.5 (copy not isolated)", again.LastSnapshot.Volume)
	}
}

func TestRegistry_UpdateSnapshot_Monotonic(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	base := time.Now().UTC()
	newer := StatusSnapshot{PlayState: PlayStatePlaying, Volume: 0.7, ObservedAt: base}
	older := StatusSnapshot{PlayState: PlayStateIdle, Volume: 0.1, ObservedAt: base.Add(-2 * time.Second)}

	r.UpdateSnapshot("spk-a", newer)
	// A poll that started earlier but completed later must not regress state.
	r.UpdateSnapshot("spk-a", older)

	sp, _ := r.LookupByID("spk-a")
	if sp.LastSnapshot.Volume != 0.7 {
		t.Errorf("stored snapshot volume = %v, want 0.7 (older write applied)", sp.LastSnapshot.Volume)
	}
	if !sp.LastSnapshot.ObservedAt.Equal(base) {
		t.Errorf("stored ObservedAt = %v, want %v", sp.LastSnapshot.ObservedAt, base)
	}

	// Equal timestamps are a re-observation, accepted.
	equal := StatusSnapshot{PlayState: PlayStatePaused, Volume: 0.4, ObservedAt: base}
	r.UpdateSnapshot("spk-a", equal)
	sp, _ = r.LookupByID("spk-a")
	if sp.LastSnapshot.PlayState != PlayStatePaused {
		t.Errorf("equal-time snapshot was rejected, play state = %v", sp.LastSnapshot.PlayState)
	}
}

func TestRegistry_UpdateSnapshot_MonotonicUnderConcurrency(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	base := time.Now().UTC()
	const writers = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.UpdateSnapshot("spk-a", StatusSnapshot{
				Volume:     float64(i) / writers,
				ObservedAt: base.Add(time.Duration(i) * time.Millisecond),
			})
		}(i)
	}
	wg.Wait()

	sp, _ := r.LookupByID("spk-a")
	want := base.Add((writers - 1) * time.Millisecond)
	if !sp.LastSnapshot.ObservedAt.Equal(want) {
		t.Errorf("final ObservedAt = %v, want %v (non-latest write survived)", sp.LastSnapshot.ObservedAt, want)
	}
}

func TestRegistry_UpdateSnapshot_UnknownIDIsNoop(t *testing.T) {
	r := NewRegistry()
	// Must not panic or create a phantom record.
	r.UpdateSnapshot("ghost", StatusSnapshot{ObservedAt: time.Now()})
	if r.Count() != 0 {
		t.Errorf("Count() = %d after unknown-id update, want 0", r.Count())
	}
}

func TestRegistry_UpdateAddress(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.UpdateAddress("spk-a", "192.168.1.50"); err != nil {
		t.Fatalf("UpdateAddress() error = %v", err)
	}

	if _, err := r.LookupByAddress("192.168.1.10"); !errors.Is(err, ErrSpeakerNotFound) {
		t.Error("old address still resolves after UpdateAddress")
	}
	sp, err := r.LookupByAddress("192.168.1.50")
	if err != nil {
		t.Fatalf("LookupByAddress(new) error = %v", err)
	}
	if sp.ID != "spk-a" {
		t.Errorf("new address resolves to %s, want spk-a", sp.ID)
	}

	if err := r.UpdateAddress("missing", "10.0.0.1"); !errors.Is(err, ErrSpeakerNotFound) {
		t.Errorf("UpdateAddress(missing) error = %v, want ErrSpeakerNotFound", err)
	}
	if err := r.UpdateAddress("spk-a", " "); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("UpdateAddress(blank) error = %v, want ErrInvalidAddress", err)
	}
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Deregister("spk-a"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if _, err := r.LookupByID("spk-a"); !errors.Is(err, ErrSpeakerNotFound) {
		t.Error("speaker still resolvable after Deregister")
	}
	if _, err := r.LookupByAddress("192.168.1.10"); !errors.Is(err, ErrSpeakerNotFound) {
		t.Error("address index not cleaned up after Deregister")
	}

	if err := r.Deregister("spk-a"); !errors.Is(err, ErrSpeakerNotFound) {
		t.Errorf("second Deregister() error = %v, want ErrSpeakerNotFound", err)
	}
}

func TestRegistry_SetUnreachable(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	r.SetUnreachable("spk-a", true)
	sp, _ := r.LookupByID("spk-a")
	if !sp.Unreachable {
		t.Error("speaker not marked unreachable")
	}

	r.SetUnreachable("spk-a", false)
	sp, _ = r.LookupByID("spk-a")
	if sp.Unreachable {
		t.Error("unreachable flag not cleared")
	}

	// Unknown id is a silent no-op, same as UpdateSnapshot.
	r.SetUnreachable("ghost", true)
}

func TestRegistry_OnSnapshotHook(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestSpeaker("spk-a", "192.168.1.10")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var mu sync.Mutex
	var seen []Speaker
	r.OnSnapshot(func(sp Speaker) {
		mu.Lock()
		seen = append(seen, sp)
		mu.Unlock()
	})

	now := time.Now().UTC()
	r.UpdateSnapshot("spk-a", StatusSnapshot{Volume: 0.3, ObservedAt: now})
	// A rejected (stale) write must not fire the hook.
	r.UpdateSnapshot("spk-a", StatusSnapshot{Volume: 0.9, ObservedAt: now.Add(-time.Second)})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(seen))
	}
	if seen[0].LastSnapshot.Volume != 0.3 {
		t.Errorf("hook snapshot volume = %v, want 0.3", seen[0].LastSnapshot.Volume)
	}
}

func TestRegistry_AllSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"spk-c", "spk-a", "spk-b"} {
		if err := r.Register(newTestSpeaker(id, "10.0.0."+id)); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d speakers, want 3", len(all))
	}
	for i, want := range []string{"spk-a", "spk-b", "spk-c"} {
		if all[i].ID != want {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].ID, want)
		}
	}
}
