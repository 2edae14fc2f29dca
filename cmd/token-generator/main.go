// Command token-generator mints a development access token for a learner.
// Production tokens come from the identity provider; this exists so local
// API calls can be authenticated without one.
//
// Usage:
//
//	PRACTICE_AUTH_JWT_SECRET=... go run ./cmd/token-generator [learner-id]
//
// When no learner ID is given, a random one is generated.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/examkit/practice-api/internal/config"
	"github.com/examkit/practice-api/internal/service/auth"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	learnerID := uuid.New()
	if len(os.Args) > 1 {
		learnerID, err = uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatalf("Invalid learner ID %q: %v", os.Args[1], err)
		}
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize JWT service: %v", err)
	}

	token, err := jwtService.GenerateToken(context.Background(), learnerID)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("Learner ID: %s\nToken: %s\n", learnerID, token)
}
