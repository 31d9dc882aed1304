// Command sitecraft generates and manages AI-built websites from a terminal.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/ashureev/sitecraft/internal/cli"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()
	os.Exit(cli.Execute())
}
