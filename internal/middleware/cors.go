package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows browser clients from allowedOrigins. A "*" entry opens the API to any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}

	cfg.AllowOrigins = allowedOrigins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}
