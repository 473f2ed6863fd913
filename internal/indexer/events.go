package indexer

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotEvent announces that a new set of artifacts has been written.
// The indexer publishes it on the index-complete topic and searchers reload
// when they receive it.
type SnapshotEvent struct {
	BuildID   string    `json:"build_id"`
	IndexPath string    `json:"index_path"`
	PagesDir  string    `json:"pages_dir"`
	Documents int       `json:"documents"`
	Lemmas    int       `json:"lemmas"`
	BuiltAt   time.Time `json:"built_at"`
}

// NewSnapshotEvent describes s as written to indexPath and pagesDir.
func NewSnapshotEvent(s *Snapshot, indexPath, pagesDir string) SnapshotEvent {
	now := time.Now().UTC()
	return SnapshotEvent{
		BuildID:   uuid.NewString(),
		IndexPath: indexPath,
		PagesDir:  pagesDir,
		Documents: s.Stats.Documents,
		Lemmas:    s.Stats.Lemmas,
		BuiltAt:   now,
	}
}
