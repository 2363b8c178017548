package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/HiddenSpots/HS-Backend/internal/config"
	"github.com/HiddenSpots/HS-Backend/internal/db"
	"github.com/HiddenSpots/HS-Backend/internal/middleware"
	"github.com/HiddenSpots/HS-Backend/internal/spots"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Hidden Spots API working"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	db.Connect()
	spots.Init()

	bundled, err := spots.LoadBundled(cfg.BundledDataPath)
	if err != nil {
		log.Fatal("Failed to load bundled spots: ", err)
	}
	log.Printf("Loaded %d bundled spots", len(bundled))

	store := spots.NewPostgisStore(
		db.DB,
		db.OpenRedis(cfg.RedisAddr, cfg.RedisPass),
		time.Duration(cfg.NearbyCacheTTLSeconds)*time.Second,
	)
	repo := spots.NewSpotRepository(store, bundled)

	// Warm the merged view so the first /all serves fresh data even if the
	// store is slow to come up.
	warmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	repo.Refresh(warmCtx)
	cancel()

	handler := &spots.Handler{Repo: repo, DefaultRadiusMeters: cfg.DefaultRadiusMeters}

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Get("/", RootHandler)
	r.Mount("/spots", spots.SetupRoutes(handler,
		middleware.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)))

	fmt.Println("Server listening on port :" + cfg.Port + "...")

	http.ListenAndServe("0.0.0.0:"+cfg.Port, r)
}
