package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/kekopoly/monopoly/internal/api/middleware/auth"
)

// tokengen prints a token for calling the chat API as a given chat user
func main() {
	userID := pflag.Int64P("user", "u", 0, "chat user id (required)")
	name := pflag.StringP("name", "n", "", "display name used in narration")
	hours := pflag.Int("hours", 24, "token lifetime in hours")
	pflag.Parse()

	_ = godotenv.Load()

	if *userID == 0 {
		fmt.Fprintln(os.Stderr, "Error: --user is required")
		pflag.Usage()
		os.Exit(2)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT_SECRET environment variable is not set")
		os.Exit(1)
	}

	token, err := auth.GenerateJWT(*userID, *name, secret, *hours)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
