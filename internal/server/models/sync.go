package models

import "time"

type SyncStatus string

const (
	SyncSucceeded SyncStatus = "succeeded"
	SyncPartial   SyncStatus = "partial"
	SyncFailed    SyncStatus = "failed"
	SyncCancelled SyncStatus = "cancelled"
)

// Item failure codes.
const (
	ItemRenderError = "render_error"
	ItemNotFound    = "not_found"
	ItemTimeout     = "timeout"
)

// SyncItem is the outcome of rendering one profile.
type SyncItem struct {
	ProfileID int64
	OK        bool
	Code      string
	Error     string
}

// SyncResult describes one sync run. Items are ordered by profile id.
type SyncResult struct {
	RunID        string
	Status       SyncStatus
	Items        []SyncItem
	ArtifactPath string
	Changed      bool
	Error        string
	ArchiveKey   string
	ArchiveError string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Failed returns the items that did not render.
func (r *SyncResult) Failed() []SyncItem {
	var out []SyncItem
	for _, it := range r.Items {
		if !it.OK {
			out = append(out, it)
		}
	}
	return out
}
