package events

import (
	"io"
	"time"
)

// Event is the persisted resource. ThumbnailURL holds the stored thumbnail
// reference; Service rewrites it into a public URL before returning it.
type Event struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	Date         *time.Time `json:"date"`
	ThumbnailURL *string    `gorm:"column:thumbnail_url" json:"thumbnailUrl"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TableName pins the table name.
func (Event) TableName() string {
	return "events"
}

// Fields carries the client-supplied event attributes. Nil means "not supplied".
type Fields struct {
	Name        *string
	Description *string
	Location    *string
	Date        *time.Time
	ClearDate   bool
}

// Thumbnail is an uploaded image awaiting storage.
type Thumbnail struct {
	Filename string
	Body     io.Reader
}

// ListOptions narrows and orders GET /events.
type ListOptions struct {
	Skip    int
	Take    int
	OrderBy string
	Filter  string
}
