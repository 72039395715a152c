// Package books defines core types shared across subsystems.
package books

// MaxDescriptionLen is the longest description carried on a candidate.
// Longer excerpts are truncated and suffixed with an ellipsis marker.
const MaxDescriptionLen = 200

// UnknownAuthor is the sentinel used when no author can be extracted.
const UnknownAuthor = "Unknown Author"

// Candidate is one discovered book record, normalized across sources.
// The URL may point at a detail page that still needs link resolution,
// or directly at a stable catalog page, depending on the source.
type Candidate struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Cover       string `json:"cover,omitempty"`
	URL         string `json:"downloadUrl"`
	Source      string `json:"source"`
}
