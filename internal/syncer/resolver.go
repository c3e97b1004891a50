package syncer

import "github.com/tallyapp/tally/internal/models"

// Decision is the outcome of conflict resolution for one pulled record.
type Decision int

const (
	// KeepLocal leaves the local row untouched.
	KeepLocal Decision = iota
	// ApplyRemote writes the remote version over the local row (or removes
	// the local row when the remote carries a tombstone).
	ApplyRemote
)

// String returns the decision name, used as a metric label.
func (d Decision) String() string {
	if d == ApplyRemote {
		return "apply_remote"
	}
	return "keep_local"
}

// Resolve is the last-write-wins decision function for the pull path.
//
// Remote wins when its timestamp is greater than or equal to the local one
// (the server wins ties), when there is no local row, or when the remote
// carries a tombstone. An incoming tombstone always removes the local
// record, even one that is newer but not yet pushed. The reverse direction
// handles undelete: a remote row without a tombstone and a newer timestamp
// resurrects a locally tombstoned record through the ordinary rule.
func Resolve(local, remote *models.SyncMeta) Decision {
	if remote == nil {
		return KeepLocal
	}
	if remote.Deleted() {
		return ApplyRemote
	}
	if local == nil {
		return ApplyRemote
	}
	if !remote.UpdatedAt.Before(local.UpdatedAt) {
		return ApplyRemote
	}
	return KeepLocal
}
