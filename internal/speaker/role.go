package speaker

import "strings"

// DetectRole classifies a snapshot into a topology role.
//
// It is a total function over the raw group field: every recognised value
// maps to its role, and anything unknown or malformed maps to RoleSolo so
// that a misreporting device is excluded from groups rather than wrongly
// included in one.
//
// A slave claim without a master reference is treated as solo for the same
// reason: a slave that cannot name its master cannot be safely grouped.
//
// Parameters:
//   - snap: Snapshot to classify; nil means never polled
//
// Returns:
//   - Role: RoleSolo, RoleMaster, or RoleSlave
//   - string: the claimed master ID, non-empty only for RoleSlave
func DetectRole(snap *StatusSnapshot) (Role, string) {
	if snap == nil {
		return RoleSolo, ""
	}

	switch strings.ToLower(strings.TrimSpace(snap.GroupField)) {
	case "master":
		return RoleMaster, ""
	case "slave":
		if snap.MasterID == nil || *snap.MasterID == "" {
			return RoleSolo, ""
		}
		return RoleSlave, *snap.MasterID
	default:
		// "solo", "", and every unrecognised value
		return RoleSolo, ""
	}
}
