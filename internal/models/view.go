package models

import "time"

// ViewEvent is one logged view of a media asset. Append-only.
type ViewEvent struct {
	ID       int64     `json:"id"`
	MediaID  int64     `json:"media_id"`
	ViewerIP string    `json:"viewer_ip"`
	ViewedAt time.Time `json:"timestamp"`
}

// ViewBucket is the number of views from one viewer address on one UTC date.
type ViewBucket struct {
	ViewerIP string
	Day      time.Time
	Count    int64
}

// AnalyticsSnapshot holds aggregated view statistics for a media asset.
type AnalyticsSnapshot struct {
	MediaID     int64            `json:"media_id"`
	Title       string           `json:"title"`
	TotalViews  int64            `json:"total_views"`
	UniqueIPs   int64            `json:"unique_ips"`
	RecentViews int64            `json:"recent_views_7days"`
	ViewsPerDay map[string]int64 `json:"views_per_day"`
	UploadedAt  time.Time        `json:"uploaded_at"`
	ComputedAt  time.Time        `json:"computed_at"`
}
