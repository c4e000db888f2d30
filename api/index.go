package handler

import (
	"log"
	"net/http"

	"github.com/arnavshah/shiftboard-go/pkg/config"
	"github.com/arnavshah/shiftboard-go/pkg/database"
	"github.com/arnavshah/shiftboard-go/pkg/handlers"
	"github.com/gin-gonic/gin"
)

var r *gin.Engine

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("could not load timezone: %v", err)
	}

	db := database.InitDB(database.Options{URL: cfg.DatabaseURL, Path: cfg.DataPath})
	h := &handlers.Handler{Store: database.NewStore(db, loc)}

	gin.SetMode(gin.ReleaseMode)
	r = handlers.NewRouter(h)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
