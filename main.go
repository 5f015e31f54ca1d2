package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"bridge-swap/cmd"
)

func main() {
	// .env is optional; the environment and config file can carry everything
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
