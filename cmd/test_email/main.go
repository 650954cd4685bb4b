package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/services"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Setup("development")

	if cfg.ResendAPIKey == "" {
		log.Fatal("RESEND_API_KEY is not set")
	}

	// No worker: the send runs inline so failures surface here
	emailService := services.NewEmailService(cfg, nil)

	toEmail := os.Getenv("TEST_EMAIL_TO")
	if toEmail == "" {
		toEmail = cfg.BackofficeEmail
	}
	if toEmail == "" {
		toEmail = "test@example.com"
		log.Println("TEST_EMAIL_TO not set, using test@example.com. Emails might fail if the domain is not verified.")
	}

	log.Printf("Sending test email to %s...", toEmail)
	if err := emailService.SendTest(context.Background(), toEmail); err != nil {
		log.Fatalf("Failed to send test email: %v", err)
	}
	log.Println("Test email sent successfully!")
}
