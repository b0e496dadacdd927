package entity

import "time"

// Avatar is an uploaded profile image stored in GCS.
// Users reference it via users.avatar_id.
type Avatar struct {
	ID          int64
	URL         string
	ContentType string
	CreatedAt   time.Time
}
