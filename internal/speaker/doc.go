// Package speaker provides the speaker registry and group derivation for
// SoundMesh Core.
//
// The registry is the central catalogue of every known network audio
// endpoint. It owns Speaker records exclusively: polling feeds snapshots
// in through UpdateSnapshot, and every other component (group view, fan-out
// coordinator, REST API) reads through its operations.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                        speaker package                            │
//	│                                                                   │
//	│  ┌───────────────┐   ┌───────────────┐   ┌────────────────────┐   │
//	│  │   Registry    │   │    Groups     │   │     DetectRole     │   │
//	│  │ (registry.go) │──▶│  (groups.go)  │──▶│     (role.go)      │   │
//	│  │               │   │               │   │                    │   │
//	│  │ • id/addr idx │   │ • derive view │   │ • pure, total      │   │
//	│  │ • monotonic   │   │ • corroborate │   │ • unknown → solo   │   │
//	│  │   snapshots   │   │   slaves      │   │                    │   │
//	│  └───────┬───────┘   └───────────────┘   └────────────────────┘   │
//	│          │                                                        │
//	│  ┌───────▼───────┐                                                │
//	│  │     Store     │  configured identities (sqlite), seeded once   │
//	│  │  (store*.go)  │  at startup; runtime state never persisted     │
//	│  └───────────────┘                                                │
//	└───────────────────────────────────────────────────────────────────┘
//
// # Consistency model
//
// Groups are advisory and best-effort. Roles are always re-derived from the
// latest snapshot, never cached, and a slave whose claimed master does not
// reciprocate is treated as solo until a fresh poll corroborates the claim.
// Snapshot writes are monotonic in observation time, so out-of-order poll
// completions cannot regress a speaker's state.
package speaker
