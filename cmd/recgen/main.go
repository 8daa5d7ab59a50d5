package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/recgen/recgen/cmd/recgen/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
