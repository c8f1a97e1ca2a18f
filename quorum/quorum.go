package quorum

import "math"

// Ideal calculates the minimum-master-nodes setting required for a
// cluster with the given total membership.
//
// Below 3 members the result degrades to 1 so a lone survivor stays
// operative: a 2-node group cannot lose a member and still hold a
// majority, so we trade split-brain protection for availability until
// the third member arrives.
func Ideal(totalMembers int) int {
	if totalMembers <= 0 {
		return 0
	}

	if totalMembers <= 2 {
		return 1
	}

	// Majority: floor(N/2) + 1
	return int(math.Floor(float64(totalMembers)/2)) + 1
}

// IsSafe reports whether a quorum setting can be satisfied by the
// given number of reachable nodes. Writing a setting higher than the
// reachable node count can leave the cluster unable to elect a
// coordinator.
func IsSafe(setting, reachableNodes int) bool {
	return setting >= 1 && setting <= reachableNodes
}
