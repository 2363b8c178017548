package spots

import (
	"time"

	"github.com/lib/pq"
)

// Provenance tags where a spot came from. Persisted rows always win over a
// pending copy of the same id when views are merged.
const (
	ProvenanceBundled   = "bundled"
	ProvenancePersisted = "persisted"
	ProvenancePending   = "pending"
)

// Ratings holds the four consensus dimensions, each in [0,5].
type Ratings struct {
	Uniqueness float64 `json:"uniqueness"`
	Vibe       float64 `json:"vibe"`
	Safety     float64 `json:"safety"`
	Crowd      float64 `json:"crowd"`
}

type Comment struct {
	ID        string    `gorm:"primaryKey" json:"-"`
	SpotID    string    `gorm:"index" json:"-"`
	Text      string    `json:"text"`
	Author    string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type SpotRecord struct {
	ID                string         `gorm:"primaryKey" json:"id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	CategoryLabel     string         `json:"vibe"`
	Latitude          float64        `json:"latitude"`
	Longitude         float64        `json:"longitude"`
	Images            pq.StringArray `gorm:"type:text[]" json:"images"`
	Ratings           Ratings        `gorm:"embedded;embeddedPrefix:rating_" json:"ratings"`
	RatingSampleCount int            `gorm:"default:1" json:"rating_sample_count"`
	Comments          []Comment      `gorm:"foreignKey:SpotID" json:"comments"`
	Provenance        string         `gorm:"-" json:"provenance"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (SpotRecord) TableName() string { return "spots.spots" }
func (Comment) TableName() string    { return "spots.comments" }
