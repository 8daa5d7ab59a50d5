package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/recgen/recgen/internal/middleware"
)

// Prints a session cookie value for poking at the API with curl:
//
//	curl -b "recgen_session=$(SESSION_SECRET=... go run scripts/session-token.go)" localhost:8080/api/state
func main() {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: SESSION_SECRET environment variable must be set")
		fmt.Fprintln(os.Stderr, "Usage: SESSION_SECRET=secret go run scripts/session-token.go [session-id]")
		os.Exit(1)
	}

	id := uuid.NewString()
	if len(os.Args) > 1 {
		if _, err := uuid.Parse(os.Args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: session id must be a UUID: %v\n", err)
			os.Exit(1)
		}
		id = os.Args[1]
	}

	token, err := middleware.NewSessionToken([]byte(secret), id, 24*time.Hour, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
