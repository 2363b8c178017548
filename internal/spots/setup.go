package spots

import (
	"log"

	"github.com/HiddenSpots/HS-Backend/internal/db"
)

// Init ensures the spots schema, tables, and the PostGIS geometry column.
// The geom column is generated from (longitude, latitude); together with
// the query in FindNear this is the only place the coordinate order flips.
func Init() {
	if err := db.EnsureSchema(db.DB, "spots"); err != nil {
		log.Fatal("Failed to create spots schema: ", err)
	}

	if err := db.DB.AutoMigrate(&SpotRecord{}, &Comment{}); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}

	if err := db.DB.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		log.Fatal("Failed to enable postgis: ", err)
	}

	if err := db.DB.Exec(`
		ALTER TABLE spots.spots
		ADD COLUMN IF NOT EXISTS geom geography(Point, 4326)
		GENERATED ALWAYS AS (ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography) STORED
	`).Error; err != nil {
		log.Fatal("Failed to add geometry column: ", err)
	}

	if err := db.DB.Exec(`
		CREATE INDEX IF NOT EXISTS idx_spots_geom ON spots.spots USING GIST (geom)
	`).Error; err != nil {
		log.Fatal("Failed to create geometry index: ", err)
	}
}
