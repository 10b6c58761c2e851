package models

import "time"

type ShareLink struct {
	ID               string    `json:"id"`
	StoredObjectRef  string    `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	DurationClass    string    `json:"expiry_duration"`
	ContentType      string    `json:"content_type"`
	SizeBytes        int64     `json:"size_bytes"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	ViewCount        int64     `json:"view_count"`
}

// IsExpired is the only expiry predicate; every store, the view flow and the
// sweeper go through it (or its exact equivalent expires_at >= now).
func (l *ShareLink) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

func (l *ShareLink) Remaining(now time.Time) time.Duration {
	if l.IsExpired(now) {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}

func (l *ShareLink) SharePath() string {
	return "/view-image/" + l.ID + "/"
}

func (l *ShareLink) Clone() *ShareLink {
	c := *l
	return &c
}
