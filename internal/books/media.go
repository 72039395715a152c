package books

import "strings"

// MediaType classifies a retrieved payload from its declared content type.
type MediaType string

// Media type values handed back with a retrieval outcome.
const (
	MediaEpub        MediaType = "epub"
	MediaPdf         MediaType = "pdf"
	MediaOctetStream MediaType = "octet-stream"
)

// ClassifyMediaType maps a declared Content-Type header onto a MediaType.
// Ambiguous or missing content types default to EPUB; the body is never
// sniffed.
func ClassifyMediaType(contentType string) MediaType {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return MediaPdf
	case strings.Contains(ct, "epub"):
		return MediaEpub
	case strings.Contains(ct, "octet-stream"):
		return MediaOctetStream
	default:
		return MediaEpub
	}
}

// MIME returns the canonical content type served to the caller.
func (m MediaType) MIME() string {
	switch m {
	case MediaPdf:
		return "application/pdf"
	case MediaOctetStream:
		return "application/octet-stream"
	default:
		return "application/epub+zip"
	}
}

// Extension returns the suggested filename extension, dot included.
func (m MediaType) Extension() string {
	switch m {
	case MediaPdf:
		return ".pdf"
	case MediaOctetStream:
		return ".bin"
	default:
		return ".epub"
	}
}
