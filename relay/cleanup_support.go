package relay

import (
	"time"

	"github.com/digital-defiance/eecp/relay/buffer"
)

// WorkspaceIDs returns every workspace id currently registered, for the
// Temporal Cleanup sweep to iterate over.
func (r *Relay) WorkspaceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.workspaces))
	for id := range r.workspaces {
		ids = append(ids, id)
	}
	return ids
}

// ExpireIfDue transitions a workspace to expired if its expiry has passed,
// per §4.8's first cleanup action. It reports whether a transition occurred.
func (r *Relay) ExpireIfDue(workspaceID string, now time.Time) bool {
	return r.expireWorkspace(workspaceID, now)
}

// PurgeBuffers drops TTL-expired entries from every participant's offline
// buffer in a workspace and reports how many entries were dropped.
func (r *Relay) PurgeBuffers(workspaceID string, now time.Time) int {
	r.mu.RLock()
	entry, ok := r.workspaces[workspaceID]
	if !ok {
		r.mu.RUnlock()
		return 0
	}
	bufs := make([]*buffer.Buffer, 0, len(entry.buffers))
	for _, b := range entry.buffers {
		bufs = append(bufs, b)
	}
	r.mu.RUnlock()

	purged := 0
	for _, b := range bufs {
		purged += b.Purge(now)
	}
	return purged
}

// RemoveWorkspace deletes a workspace entry entirely. Exposed for Temporal
// Cleanup to call once it has finished destroying a workspace's keys and
// the workspace has no further audit value.
func (r *Relay) RemoveWorkspace(workspaceID string) {
	r.removeWorkspace(workspaceID)
}
