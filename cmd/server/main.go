package main

import (
	"log"

	"github.com/arnavshah/shiftboard-go/pkg/config"
	"github.com/arnavshah/shiftboard-go/pkg/database"
	"github.com/arnavshah/shiftboard-go/pkg/handlers"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("could not load timezone: %v", err)
	}

	db := database.InitDB(database.Options{URL: cfg.DatabaseURL, Path: cfg.DataPath})
	h := &handlers.Handler{Store: database.NewStore(db, loc)}
	r := handlers.NewRouter(h)

	log.Printf("Server starting on port %s (timezone %s)", cfg.Port, loc)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
