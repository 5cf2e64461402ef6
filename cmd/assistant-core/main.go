package main

import (
	"os"

	"github.com/neuraplayapp/assistant-core/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
