package spots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// PostgisStore implements GeoStore on Postgres with a PostGIS geography
// column. An optional Redis client caches nearby-query results by rounded
// coordinate; a nil client disables caching.
type PostgisStore struct {
	db       *gorm.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewPostgisStore(db *gorm.DB, cache *redis.Client, cacheTTL time.Duration) *PostgisStore {
	return &PostgisStore{db: db, cache: cache, cacheTTL: cacheTTL}
}

func (s *PostgisStore) Insert(ctx context.Context, in NewSpotInput) (SpotRecord, error) {
	if err := in.Validate(); err != nil {
		return SpotRecord{}, err
	}

	rec := SpotRecord{
		ID:                uuid.NewString(),
		Name:              in.Name,
		Description:       in.Description,
		CategoryLabel:     in.CategoryLabel,
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		Images:            pq.StringArray(in.Images),
		Ratings:           clampRatings(in.Ratings),
		RatingSampleCount: 1,
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return SpotRecord{}, &TransportError{Op: "insert", Err: err}
	}

	rec.Provenance = ProvenancePersisted
	return rec, nil
}

func (s *PostgisStore) FindAll(ctx context.Context) ([]SpotRecord, error) {
	var recs []SpotRecord
	err := s.db.WithContext(ctx).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Find(&recs).Error
	if err != nil {
		return nil, &TransportError{Op: "find all", Err: err}
	}

	for i := range recs {
		recs[i].Provenance = ProvenancePersisted
	}
	return recs, nil
}

func (s *PostgisStore) FindByID(ctx context.Context, id string) (SpotRecord, error) {
	var rec SpotRecord
	err := s.db.WithContext(ctx).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SpotRecord{}, ErrNotFound
	}
	if err != nil {
		return SpotRecord{}, &TransportError{Op: "find by id", Err: err}
	}

	rec.Provenance = ProvenancePersisted
	return rec, nil
}

// FindNear runs an ST_DWithin radius query ordered by ascending distance.
// PostGIS points are (lng, lat); this query and the generated geom column
// in setup.go are the only two lines where that swap happens.
func (s *PostgisStore) FindNear(ctx context.Context, lat, lng, maxDistanceMeters float64) ([]SpotRecord, error) {
	key := fmt.Sprintf("nearby:%.4f:%.4f:%d", lat, lng, int(maxDistanceMeters))
	if s.cache != nil && s.cacheTTL > 0 {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil && raw != "" {
			var cached []SpotRecord
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	query := `
		SELECT * FROM spots.spots
		WHERE ST_DWithin(geom, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)
		ORDER BY ST_Distance(geom, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography)
	`

	var recs []SpotRecord
	err := s.db.WithContext(ctx).
		Raw(query, lng, lat, maxDistanceMeters, lng, lat).
		Scan(&recs).Error
	if err != nil {
		return nil, &TransportError{Op: "find near", Err: err}
	}
	if recs == nil {
		recs = []SpotRecord{}
	}

	if err := s.attachComments(ctx, recs); err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].Provenance = ProvenancePersisted
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if raw, err := json.Marshal(recs); err == nil {
			_ = s.cache.Set(ctx, key, string(raw), s.cacheTTL).Err()
		}
	}
	return recs, nil
}

func (s *PostgisStore) DeleteByID(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&SpotRecord{})
	if res.Error != nil {
		return &TransportError{Op: "delete", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	// Comments have no FK cascade through AutoMigrate; clean them up here.
	if err := s.db.WithContext(ctx).Where("spot_id = ?", id).Delete(&Comment{}).Error; err != nil {
		return &TransportError{Op: "delete comments", Err: err}
	}
	return nil
}

func (s *PostgisStore) UpdateRatings(ctx context.Context, id string, r Ratings, expectedCount int) (SpotRecord, error) {
	res := s.db.WithContext(ctx).Model(&SpotRecord{}).
		Where("id = ? AND rating_sample_count = ?", id, expectedCount).
		Updates(map[string]interface{}{
			"rating_uniqueness":   r.Uniqueness,
			"rating_vibe":         r.Vibe,
			"rating_safety":       r.Safety,
			"rating_crowd":        r.Crowd,
			"rating_sample_count": expectedCount + 1,
		})
	if res.Error != nil {
		return SpotRecord{}, &TransportError{Op: "update ratings", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		// Either the row is gone or another fold advanced the count first.
		if _, err := s.FindByID(ctx, id); errors.Is(err, ErrNotFound) {
			return SpotRecord{}, ErrNotFound
		} else if err != nil {
			return SpotRecord{}, err
		}
		return SpotRecord{}, ErrConflict
	}
	return s.FindByID(ctx, id)
}

func (s *PostgisStore) AppendComment(ctx context.Context, id string, c Comment) (SpotRecord, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return SpotRecord{}, err
	}

	c.ID = uuid.NewString()
	c.SpotID = id
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return SpotRecord{}, &TransportError{Op: "append comment", Err: err}
	}
	return s.FindByID(ctx, id)
}

// attachComments fills Comments for records produced by a raw query, which
// bypasses GORM's Preload.
func (s *PostgisStore) attachComments(ctx context.Context, recs []SpotRecord) error {
	if len(recs) == 0 {
		return nil
	}

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}

	var comments []Comment
	err := s.db.WithContext(ctx).
		Where("spot_id IN ?", ids).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return &TransportError{Op: "load comments", Err: err}
	}

	bySpot := make(map[string][]Comment, len(recs))
	for _, c := range comments {
		bySpot[c.SpotID] = append(bySpot[c.SpotID], c)
	}
	for i := range recs {
		recs[i].Comments = bySpot[recs[i].ID]
	}
	return nil
}
