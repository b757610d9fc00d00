package main

import (
	"os"

	"github.com/opsight/opsight/cmd/opsight/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
