// Seeds a handful of demo persisted spots for local development. Safe to
// re-run: spots matching a demo name are skipped.
package main

import (
	"context"
	"log"

	"github.com/HiddenSpots/HS-Backend/internal/db"
	"github.com/HiddenSpots/HS-Backend/internal/spots"
	"github.com/joho/godotenv"
)

var demoSpots = []spots.NewSpotInput{
	{
		Name:          "Gopachal Parvat Caves",
		Description:   "Rock-cut Jain sculptures carved into the hillside. Cool, quiet, and rarely visited on weekdays.",
		CategoryLabel: "Serene",
		Latitude:      26.2124,
		Longitude:     78.1690,
		Ratings:       spots.Ratings{Uniqueness: 4.4, Vibe: 4.2, Safety: 4.0, Crowd: 1.8},
	},
	{
		Name:          "Sarafa Bazaar Rooftop",
		Description:   "A rooftop chai stall overlooking the old market. Best at dusk when the lanterns come on.",
		CategoryLabel: "Romantic",
		Latitude:      26.2144,
		Longitude:     78.1822,
		Ratings:       spots.Ratings{Uniqueness: 4.1, Vibe: 4.6, Safety: 3.9, Crowd: 2.6},
	},
}

func main() {
	_ = godotenv.Load(".env.local")

	db.Connect()
	spots.Init()

	store := spots.NewPostgisStore(db.DB, nil, 0)
	ctx := context.Background()

	existing, err := store.FindAll(ctx)
	if err != nil {
		log.Fatal("Failed to list spots: ", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		names[s.Name] = struct{}{}
	}

	created := 0
	for _, in := range demoSpots {
		if _, ok := names[in.Name]; ok {
			log.Printf("⚠️ Spot exists, skipping: %s", in.Name)
			continue
		}
		if _, err := store.Insert(ctx, in); err != nil {
			log.Fatalf("Failed to seed spot %s: %v", in.Name, err)
		}
		created++
	}

	log.Printf("✅ Seeded %d demo spots", created)
}
