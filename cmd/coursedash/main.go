package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"coursedash/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := os.Getenv("COURSEDASH_CONFIG")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	app := &cli.App{ConfigPath: configPath}
	defer app.Close()

	return cli.NewRootCmd(app).ExecuteContext(context.Background())
}
