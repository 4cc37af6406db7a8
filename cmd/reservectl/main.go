package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(defaultBackend).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
