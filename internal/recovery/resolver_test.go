package recovery

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// fakePublisher records published messages.
type fakePublisher struct {
	mu       sync.Mutex
	messages []fakeMessage
	fail     bool
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, fakeMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeMembership reports a fixed member set.
type fakeMembership struct {
	members map[string]bool
}

func (f *fakeMembership) IsGroupMember(id string) bool { return f.members[id] }

func setupResolver(t *testing.T, members ...string) (*Resolver, *speaker.Registry, *fakePublisher) {
	t.Helper()

	registry := speaker.NewRegistry()
	memberSet := make(map[string]bool)
	for _, id := range members {
		memberSet[id] = true
	}
	for _, id := range []string{"spk-a", "spk-b"} {
		if err := registry.Register(&speaker.Speaker{ID: id, Name: "Name " + id, Address: "10.0.0." + id}); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	pub := &fakePublisher{}
	return NewResolver(&fakeMembership{members: memberSet}, registry, pub), registry, pub
}

func TestResolver_SingleShot(t *testing.T) {
	r, _, pub := setupResolver(t, "spk-a")

	// Persistent unreachability: the poller reports the crossing; later
	// cycles would only re-report after re-registration.
	r.SpeakerUnreachable("spk-a")
	r.SpeakerUnreachable("spk-a")
	r.SpeakerUnreachable("spk-a")

	if n := pub.count(); n != 1 {
		t.Fatalf("published %d notices, want exactly 1", n)
	}

	var notice MissingNotice
	if err := json.Unmarshal(pub.messages[0].payload, &notice); err != nil {
		t.Fatalf("decoding notice: %v", err)
	}
	if notice.SpeakerID != "spk-a" {
		t.Errorf("notice speaker_id = %s, want spk-a", notice.SpeakerID)
	}
	if notice.LastKnownName != "Name spk-a" {
		t.Errorf("notice last_known_name = %s, want Name spk-a", notice.LastKnownName)
	}
	if pub.messages[0].topic != TopicMissing {
		t.Errorf("topic = %s, want %s", pub.messages[0].topic, TopicMissing)
	}
}

func TestResolver_NonMemberNotReported(t *testing.T) {
	r, _, pub := setupResolver(t) // no members

	r.SpeakerUnreachable("spk-a")
	if n := pub.count(); n != 0 {
		t.Errorf("published %d notices for ungrouped speaker, want 0", n)
	}
}

func TestResolver_NonMemberNotLatched(t *testing.T) {
	memberSet := &fakeMembership{members: map[string]bool{}}
	registry := speaker.NewRegistry()
	if err := registry.Register(&speaker.Speaker{ID: "spk-a", Name: "A", Address: "10.0.0.1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	pub := &fakePublisher{}
	r := NewResolver(memberSet, registry, pub)

	// Not a member yet: skipped and not latched.
	r.SpeakerUnreachable("spk-a")
	if pub.count() != 0 {
		t.Fatal("ungrouped speaker reported")
	}

	// Joins a group, still unreachable on a later streak: must report.
	memberSet.members["spk-a"] = true
	r.SpeakerUnreachable("spk-a")
	if n := pub.count(); n != 1 {
		t.Errorf("published %d notices after joining group, want 1", n)
	}
}

func TestResolver_ForgetResetsLatch(t *testing.T) {
	r, _, pub := setupResolver(t, "spk-a")

	r.SpeakerUnreachable("spk-a")
	r.SpeakerUnreachable("spk-a")
	if pub.count() != 1 {
		t.Fatalf("published %d, want 1", pub.count())
	}

	// Deregister + re-register resets the one-shot latch.
	r.Forget("spk-a")
	r.SpeakerUnreachable("spk-a")
	if n := pub.count(); n != 2 {
		t.Errorf("published %d notices after Forget, want 2", n)
	}
}

func TestResolver_PublishFailureStaysLatched(t *testing.T) {
	r, _, pub := setupResolver(t, "spk-a")
	pub.fail = true

	r.SpeakerUnreachable("spk-a")
	pub.fail = false
	r.SpeakerUnreachable("spk-a")

	// The latch wins over delivery: no storm even when the first
	// publish was lost.
	if n := pub.count(); n != 0 {
		t.Errorf("published %d notices, want 0", n)
	}
}

func TestResolver_HandleAddressUpdate(t *testing.T) {
	r, registry, _ := setupResolver(t, "spk-a")

	payload, _ := json.Marshal(AddressUpdate{SpeakerID: "spk-a", Address: "192.168.1.99"})
	if err := r.HandleAddressUpdate(TopicAddress, payload); err != nil {
		t.Fatalf("HandleAddressUpdate() error = %v", err)
	}

	sp, err := registry.LookupByAddress("192.168.1.99")
	if err != nil {
		t.Fatalf("LookupByAddress() error = %v", err)
	}
	if sp.ID != "spk-a" {
		t.Errorf("recovered address resolves to %s, want spk-a", sp.ID)
	}
}

func TestResolver_HandleAddressUpdate_Invalid(t *testing.T) {
	r, _, _ := setupResolver(t, "spk-a")

	if err := r.HandleAddressUpdate(TopicAddress, []byte("not json")); err == nil {
		t.Error("malformed payload accepted")
	}
	payload, _ := json.Marshal(AddressUpdate{SpeakerID: "", Address: "10.0.0.9"})
	if err := r.HandleAddressUpdate(TopicAddress, payload); err == nil {
		t.Error("empty speaker_id accepted")
	}
	payload, _ = json.Marshal(AddressUpdate{SpeakerID: "ghost", Address: "10.0.0.9"})
	if err := r.HandleAddressUpdate(TopicAddress, payload); err == nil {
		t.Error("unknown speaker accepted")
	}
}
