package spots

import (
	"context"
	"strings"
)

// maxImagesPerSpot caps image references on create, matching the upload
// limit enforced by the app's image picker.
const maxImagesPerSpot = 5

// NewSpotInput carries the fields needed to create a persisted spot.
// Locations cross this boundary as explicit latitude/longitude; only the
// store's PostGIS layer ever sees the (lng, lat) point ordering.
type NewSpotInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	CategoryLabel string   `json:"vibe"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Images        []string `json:"images"`
	Ratings       Ratings  `json:"ratings"`
}

// Validate rejects inputs that would produce an unrenderable record.
func (in NewSpotInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if strings.TrimSpace(in.CategoryLabel) == "" {
		return &ValidationError{Field: "vibe", Reason: "required"}
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	}
	if len(in.Images) > maxImagesPerSpot {
		return &ValidationError{Field: "images", Reason: "at most 5 images per spot"}
	}
	return nil
}

// GeoStore is the durable, geospatially indexed persistence layer. The
// repository is its only consumer. Implementations wrap driver and network
// failures in TransportError and map missing rows to ErrNotFound.
type GeoStore interface {
	// Insert validates and stores a new spot, returning the created record
	// with a generated id, persisted provenance and a sample count of 1.
	Insert(ctx context.Context, in NewSpotInput) (SpotRecord, error)

	// FindAll returns every persisted record, order unspecified.
	FindAll(ctx context.Context) ([]SpotRecord, error)

	// FindByID returns one persisted record or ErrNotFound.
	FindByID(ctx context.Context, id string) (SpotRecord, error)

	// FindNear returns persisted records within maxDistanceMeters of the
	// point, ordered by ascending distance. Empty slice when none match.
	FindNear(ctx context.Context, lat, lng, maxDistanceMeters float64) ([]SpotRecord, error)

	// DeleteByID removes a persisted record or returns ErrNotFound.
	DeleteByID(ctx context.Context, id string) error

	// UpdateRatings writes a folded consensus, guarded by the expected
	// sample count. A concurrent fold that already advanced the count
	// yields ErrConflict.
	UpdateRatings(ctx context.Context, id string, r Ratings, expectedCount int) (SpotRecord, error)

	// AppendComment appends one comment and returns the updated record.
	AppendComment(ctx context.Context, id string, c Comment) (SpotRecord, error)
}
