package models

import "time"

// MediaType is the kind of uploaded asset.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// ParseMediaType returns the MediaType for s, or false if s is not supported.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(s) {
	case MediaTypeVideo, MediaTypeAudio:
		return MediaType(s), true
	}
	return "", false
}

// MediaAsset is the metadata of an uploaded file. Immutable after upload.
type MediaAsset struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Type        MediaType `json:"type"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}
