// Command devtoken signs a bearer token for local use of the API.
//
//	go run ./cmd/devtoken -user agent-1 -role agent
package main

import (
	"flag"
	"fmt"
	"log"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
	"github.com/sjperalta/fintera-brokerage/internal/models"
)

func main() {
	userID := flag.String("user", "admin", "user id carried by the token")
	role := flag.String("role", string(models.RoleAdmin), "admin or agent")
	email := flag.String("email", "", "optional email claim")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Environment == "production" {
		log.Fatal("refusing to sign tokens in production")
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, *userID, models.Role(*role), *email)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
