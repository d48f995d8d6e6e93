package main

import (
	"fmt"
	"os"

	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/gioe/aiq-sub010/internal/service"
	"github.com/google/uuid"
)

// Mints a participant JWT for manual testing and client integration work.
// Pass a user UUID to reuse an identity, or no argument for a fresh one.
func main() {
	cfg := config.Load()

	userID := uuid.New()
	if len(os.Args) > 1 {
		parsed, err := uuid.Parse(os.Args[1])
		if err != nil {
			fmt.Printf("Error: %q is not a valid user UUID\n", os.Args[1])
			os.Exit(1)
		}
		userID = parsed
	}

	authService := service.NewAuthService(cfg)
	token, err := authService.GenerateParticipantToken(userID)
	if err != nil {
		fmt.Println("Error: Failed to sign token")
		os.Exit(1)
	}

	fmt.Printf("user_id: %s\n", userID)
	fmt.Printf("expires: %s\n", cfg.JWTExpiry)
	fmt.Printf("token:   %s\n", token)
}
