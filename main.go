package main

import (
	"os"

	"github.com/username/brokerbridge/src/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
