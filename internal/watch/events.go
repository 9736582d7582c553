package watch

import "time"

// EventKind is the closed set of file-system changes the daemon reacts to
// (§4.13 "a file-system watcher producing events {Created, Modified
// (old_hash, new_hash), Deleted, Renamed(old_id, new_id)}").
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
	EventRenamed
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is one coalesced file-system change. OldHash/NewHash carry the
// per-file content hash for Modified; OldPath/NewPath carry both sides of
// a Renamed event. Hashing follows the project's established convention
// (hex-encoded SHA-256, the same primitive internal/index/coordinator.go
// and internal/chunk/code_chunker.go already use for content hashes).
type Event struct {
	Kind      EventKind
	Path      string
	OldPath   string
	OldHash   string
	NewHash   string
	Timestamp time.Time
}

// needsReindex reports whether a batch member should run the normal write
// pipeline (re-index) rather than delete derived data (§4.13 "for each
// event, either re-index the file (Created/Modified/Renamed-new) or
// delete its derived data (Deleted/Renamed-old)"). A Renamed event carries
// both halves at once, so callers branch on Kind directly instead of
// calling this for Renamed.
func (e Event) needsReindex() bool {
	return e.Kind == EventCreated || e.Kind == EventModified
}
