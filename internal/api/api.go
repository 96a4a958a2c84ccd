// Package api holds the wire format shared by notesd and its clients.
package api

const (
	PathNotes         = "/notes"
	PathNote          = "/notes/{id}"
	PathFeedCreations = "/feed/creations"
	PathFeedDeletions = "/feed/deletions"
)

// Deleted is one frame of the deletion feed.
type Deleted struct {
	ID string `json:"id"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}
