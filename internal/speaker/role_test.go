package speaker

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestDetectRole(t *testing.T) {
	tests := []struct {
		name       string
		snap       *StatusSnapshot
		wantRole   Role
		wantMaster string
	}{
		{
			name:     "nil snapshot is solo",
			snap:     nil,
			wantRole: RoleSolo,
		},
		{
			name:     "explicit solo",
			snap:     &StatusSnapshot{GroupField: "solo"},
			wantRole: RoleSolo,
		},
		{
			name:     "master",
			snap:     &StatusSnapshot{GroupField: "master"},
			wantRole: RoleMaster,
		},
		{
			name:       "slave with master id",
			snap:       &StatusSnapshot{GroupField: "slave", MasterID: strPtr("spk-a")},
			wantRole:   RoleSlave,
			wantMaster: "spk-a",
		},
		{
			name:     "slave without master id is solo",
			snap:     &StatusSnapshot{GroupField: "slave"},
			wantRole: RoleSolo,
		},
		{
			name:     "slave with empty master id is solo",
			snap:     &StatusSnapshot{GroupField: "slave", MasterID: strPtr("")},
			wantRole: RoleSolo,
		},
		{
			name:     "empty group field is solo",
			snap:     &StatusSnapshot{GroupField: ""},
			wantRole: RoleSolo,
		},
		{
			name:     "unknown value is solo",
			snap:     &StatusSnapshot{GroupField: "follower"},
			wantRole: RoleSolo,
		},
		{
			name:     "garbage is solo",
			snap:     &StatusSnapshot{GroupField: "\x00\xff{not json}"},
			wantRole: RoleSolo,
		},
		{
			name:       "case and whitespace are normalised",
			snap:       &StatusSnapshot{GroupField: "  MaStEr \n"},
			wantRole:   RoleMaster,
			wantMaster: "",
		},
		{
			name:       "upper-case slave",
			snap:       &StatusSnapshot{GroupField: "SLAVE", MasterID: strPtr("spk-b")},
			wantRole:   RoleSlave,
			wantMaster: "spk-b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, masterID := DetectRole(tt.snap)
			if role != tt.wantRole {
				t.Errorf("DetectRole() role = %v, want %v", role, tt.wantRole)
			}
			if masterID != tt.wantMaster {
				t.Errorf("DetectRole() masterID = %q, want %q", masterID, tt.wantMaster)
			}
		})
	}
}

// DetectRole must never panic regardless of input; this sweeps a spread of
// hostile group field values.
func TestDetectRole_Total(t *testing.T) {
	values := []string{
		"", " ", "solo", "master", "slave", "SOLO", "0", "1", "-1",
		"null", "undefined", "{}", "[]", "masterslave", "slave ",
		string(rune(0)), "ümläut", "🔊",
	}

	for _, v := range values {
		snap := &StatusSnapshot{GroupField: v, ObservedAt: time.Now()}
		role, _ := DetectRole(snap)
		if role != RoleSolo && role != RoleMaster && role != RoleSlave {
			t.Errorf("DetectRole(%q) returned undefined role %v", v, role)
		}
	}
}
