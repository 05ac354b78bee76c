package speaker

import "sort"

// Groups derives the current multiroom topology from the registry.
//
// It holds no state of its own: every call re-reads the registry and
// re-classifies snapshots, eliminating the cached-role-diverges-from-
// snapshot class of staleness bugs. Because the registry provides
// point-in-time-consistent reads, Groups needs no locking of its own.
type Groups struct {
	registry *Registry
}

// NewGroups creates a group view over the given registry.
func NewGroups(registry *Registry) *Groups {
	return &Groups{registry: registry}
}

// CurrentGroups computes the set of groups whose members mutually agree.
//
// For every speaker reporting master, it collects the slaves whose claimed
// master matches. A slave whose claimed master does not itself report
// master (or does not exist) is excluded: disagreement favours exclusion
// over false grouping, and the inconsistency resolves on the next poll.
//
// Members are sorted by ID and a speaker appears in at most one group.
// Groups are sorted by master ID.
func (g *Groups) CurrentGroups() []Group {
	speakers := g.registry.All()

	masters := make(map[string]bool, len(speakers))
	for _, sp := range speakers {
		if role, _ := DetectRole(sp.LastSnapshot); role == RoleMaster {
			masters[sp.ID] = true
		}
	}

	members := make(map[string][]string, len(masters))
	for id := range masters {
		members[id] = []string{id}
	}
	for _, sp := range speakers {
		role, masterID := DetectRole(sp.LastSnapshot)
		if role != RoleSlave {
			continue
		}
		if !masters[masterID] {
			// Stale claim; treated as solo until corroborated.
			continue
		}
		members[masterID] = append(members[masterID], sp.ID)
	}

	groups := make([]Group, 0, len(members))
	for masterID, ids := range members {
		sort.Strings(ids)
		groups = append(groups, Group{MasterID: masterID, MemberIDs: ids})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].MasterID < groups[j].MasterID })
	return groups
}

// GroupOf returns the group mastered by the given speaker.
// Returns ErrGroupNotFound if the speaker does not currently report master.
func (g *Groups) GroupOf(masterID string) (Group, error) {
	for _, grp := range g.CurrentGroups() {
		if grp.MasterID == masterID {
			return grp, nil
		}
	}
	return Group{}, ErrGroupNotFound
}

// RoleOf returns the effective role of a speaker.
//
// The raw classification comes from DetectRole over the latest snapshot;
// a slave claim is additionally corroborated against its master's own
// snapshot, so a slave pointing at a vanished or non-master device reads
// as solo.
func (g *Groups) RoleOf(id string) (Role, error) {
	sp, err := g.registry.LookupByID(id)
	if err != nil {
		return RoleSolo, err
	}

	role, masterID := DetectRole(sp.LastSnapshot)
	if role != RoleSlave {
		return role, nil
	}

	master, err := g.registry.LookupByID(masterID)
	if err != nil {
		return RoleSolo, nil
	}
	if mRole, _ := DetectRole(master.LastSnapshot); mRole != RoleMaster {
		return RoleSolo, nil
	}
	return RoleSlave, nil
}

// IsGroupMember reports whether the speaker currently belongs to any
// group, master or slave.
func (g *Groups) IsGroupMember(id string) bool {
	for _, grp := range g.CurrentGroups() {
		for _, member := range grp.MemberIDs {
			if member == id {
				return true
			}
		}
	}
	return false
}
